package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/mailrelay/internal/pkg/clock"
	"github.com/shandysiswandi/mailrelay/internal/pkg/config"
	"github.com/shandysiswandi/mailrelay/internal/pkg/goroutine"
	"github.com/shandysiswandi/mailrelay/internal/pkg/idempotency"
	"github.com/shandysiswandi/mailrelay/internal/pkg/instrument"
	"github.com/shandysiswandi/mailrelay/internal/pkg/mail"
	"github.com/shandysiswandi/mailrelay/internal/pkg/messaging"
	"github.com/shandysiswandi/mailrelay/internal/pkg/router"
	"github.com/shandysiswandi/mailrelay/internal/pkg/storage"
	"github.com/shandysiswandi/mailrelay/internal/pkg/uid"
	"github.com/shandysiswandi/mailrelay/internal/pkg/validator"
)

// App owns every long-lived dependency of the relay service. Fields are
// filled by the init steps in New and released by the closers, in order.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	config config.Config
	ins    instrument.Instrumentation

	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID

	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	messaging messaging.Messaging // nil when messaging.driver is empty
	storage   storage.Storage     // nil when storage.driver is empty
	mailPool  *mail.Pool

	router     *router.Router
	httpServer *http.Server

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New builds the application. Any failing step logs and exits the process.
// Storage and messaging come before the mail pool, which builds spool and
// broker transports on top of them.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{ctx: ctx, cancel: cancel}

	steps := []struct {
		name string
		run  func()
	}{
		{"config", a.initConfig},
		{"instrument", a.initInstrument},
		{"libraries", a.initLibraries},
		{"database", a.initDatabase},
		{"cache", a.initCache},
		{"storage", a.initStorage},
		{"messaging", a.initMessaging},
		{"mail", a.initMail},
		{"http server", a.initHTTPServer},
		{"modules", a.initModules},
		{"closers", a.initClosers},
	}
	for _, step := range steps {
		start := time.Now()
		step.run()
		slog.Debug("app step initialized", "step", step.name, "took", time.Since(start))
	}

	return a
}
