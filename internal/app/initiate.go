package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
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
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	defaultConfigPath = "/config/config.yaml"
	localConfigPath   = "./config/config.yaml"
	pingTimeout       = 5 * time.Second
)

// fatal logs a startup failure and exits. Nothing is running yet, so there
// is nothing to drain.
func fatal(msg string, err error, attrs ...any) {
	slog.Error(msg, append([]any{"error", err}, attrs...)...)
	os.Exit(1)
}

// configPath prefers CONFIG_PATH, then the working-directory file when
// LOCAL=true, then the container mount.
func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if os.Getenv("LOCAL") == "true" {
		return localConfigPath
	}
	return defaultConfigPath
}

func (a *App) initConfig() {
	cfg, err := config.NewViper(configPath())
	if err != nil {
		fatal("failed to load config", err)
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // TZ is only read by the time package
		os.Setenv("TZ", tz)
	}
	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		LogLevel:         a.config.GetString("instrument.log_level"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		fatal("failed to init instrumentation", err)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	v, err := validator.NewV10Validator()
	if err != nil {
		fatal("failed to init validator", err)
	}
	a.validator = v

	snow, err := uid.NewSnowflake()
	if err != nil {
		fatal("failed to init snowflake", err)
	}
	a.uid = snow
}

func (a *App) initDatabase() {
	cfg, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		fatal("failed to parse database url", err)
	}

	cfg.MaxConns = a.config.GetInt32("database.pool.max_conns")
	cfg.MinConns = a.config.GetInt32("database.pool.min_conns")
	cfg.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	cfg.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	cfg.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, cfg)
	if err != nil {
		fatal("failed to create database pool", err)
	}

	if err := ping(a.ctx, pool.Ping); err != nil {
		fatal("failed to reach database", err)
	}
	a.dbConn = pool
}

// initCache connects redis, which backs request idempotency.
func (a *App) initCache() {
	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		fatal("failed to parse redis url", err)
	}

	rdb := redis.NewClient(opt)
	if err := ping(a.ctx, func(ctx context.Context) error { return rdb.Ping(ctx).Err() }); err != nil {
		fatal("failed to reach redis", err)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(rdb, a.config.GetString("redis.idempotency_prefix"))
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return fn(ctx)
}

// initStorage connects the object store used by spool transports.
// An empty storage.driver leaves it disabled.
func (a *App) initStorage() {
	driver := strings.TrimSpace(a.config.GetString("storage.driver"))
	if driver == "" {
		slog.Info("storage disabled, spool transports are unavailable")
		return
	}

	opts := storage.FactoryOptions{
		S3: storage.S3Options{
			Region:       a.trimmed("storage.s3.region"),
			Endpoint:     a.trimmed("storage.s3.endpoint"),
			AccessKey:    a.trimmed("storage.s3.access_key"),
			SecretKey:    a.trimmed("storage.s3.secret_key"),
			SessionToken: a.trimmed("storage.s3.session_token"),
			UsePathStyle: a.config.GetBool("storage.s3.use_path_style"),
		},
		MinIO: storage.MinIOOptions{
			Region:       a.trimmed("storage.minio.region"),
			Endpoint:     a.trimmed("storage.minio.endpoint"),
			AccessKey:    a.trimmed("storage.minio.access_key"),
			SecretKey:    a.trimmed("storage.minio.secret_key"),
			SessionToken: a.trimmed("storage.minio.session_token"),
			UseSSL:       a.config.GetBool("storage.minio.use_ssl"),
		},
	}
	if strings.EqualFold(driver, storage.DriverGCS) {
		opts.GCS.Client = a.newGCSClient()
	}

	stg, err := storage.NewFromDriver(a.ctx, driver, opts)
	if err != nil {
		fatal("failed to init storage", err, "driver", driver)
	}
	a.storage = stg
}

func (a *App) trimmed(key string) string { return strings.TrimSpace(a.config.GetString(key)) }

// newGCSClient returns nil when nothing is configured, so the adapter falls
// back to application default credentials.
func (a *App) newGCSClient() *gcs.Client {
	var opts []option.ClientOption
	if a.config.GetBool("storage.gcs.without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	}
	if raw := a.config.GetBinary("storage.gcs.credentials_json"); len(raw) > 0 {
		creds, err := google.CredentialsFromJSON(a.ctx, raw, gcs.ScopeReadWrite)
		if err != nil {
			fatal("failed to parse gcs credentials", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	if endpoint := a.trimmed("storage.gcs.endpoint"); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if len(opts) == 0 {
		return nil
	}

	client, err := gcs.NewClient(a.ctx, opts...)
	if err != nil {
		fatal("failed to init gcs client", err)
	}
	return client
}

// initMessaging connects the broker used for mail_requested consumers and
// broker transports. An empty messaging.driver leaves it disabled.
func (a *App) initMessaging() {
	driver := strings.TrimSpace(a.config.GetString("messaging.driver"))
	if driver == "" {
		slog.Info("messaging disabled, broker transports and consumers are unavailable")
		return
	}

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ:    a.nsqConfig(),
		Kafka:  a.kafkaConfig(),
		NATS:   a.natsConfig(),
		PubSub: a.pubSubConfig(),
	})
	if err != nil {
		fatal("failed to init messaging", err, "driver", driver)
	}
	a.messaging = client
}

func (a *App) nsqConfig() messaging.NSQConfig {
	const prefix = "messaging.nsq."

	producer := nsq.NewConfig()
	producer.DialTimeout = a.config.GetSecond(prefix + "producer_config.dial_timeout_seconds")
	producer.ReadTimeout = a.config.GetSecond(prefix + "producer_config.read_timeout_seconds")
	producer.WriteTimeout = a.config.GetSecond(prefix + "producer_config.write_timeout_seconds")

	consumer := nsq.NewConfig()
	consumer.MaxAttempts = a.config.GetUint16(prefix + "consumer_config.max_attempts")
	consumer.LookupdPollInterval = a.config.GetSecond(prefix + "consumer_config.lookupd_poll_interval_seconds")
	consumer.DefaultRequeueDelay = a.config.GetSecond(prefix + "consumer_config.default_requeue_delay_seconds")
	consumer.MaxRequeueDelay = a.config.GetSecond(prefix + "consumer_config.max_requeue_delay_seconds")

	return messaging.NSQConfig{
		ProducerAddr:         a.config.GetString(prefix + "producer_addr"),
		ConsumerNSQDAddrs:    a.config.GetArray(prefix + "consumer_nsqd_addrs"),
		ConsumerLookupdAddrs: a.config.GetArray(prefix + "consumer_lookupd_addrs"),
		ProducerConfig:       producer,
		ConsumerConfig:       consumer,
	}
}

func (a *App) kafkaConfig() messaging.KafkaConfig {
	return messaging.KafkaConfig{
		Brokers:     a.config.GetArray("messaging.kafka.brokers"),
		ClientID:    a.config.GetString("messaging.kafka.client_id"),
		DialTimeout: a.config.GetSecond("messaging.kafka.dial_timeout_seconds"),
	}
}

func (a *App) natsConfig() messaging.NATSConfig {
	return messaging.NATSConfig{
		URL: a.config.GetString("messaging.nats.url"),
		Options: []nats.Option{
			nats.Name(a.config.GetString("messaging.nats.name")),
			nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
			nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
			nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
			nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
		},
	}
}

// pubSubConfig targets the emulator when messaging.pubsub.endpoint is set.
func (a *App) pubSubConfig() messaging.PubSubConfig {
	cfg := messaging.PubSubConfig{ProjectID: a.config.GetString("messaging.pubsub.project_id")}
	if endpoint := a.trimmed("messaging.pubsub.endpoint"); endpoint != "" {
		cfg.ClientOptions = []option.ClientOption{option.WithEndpoint(endpoint), option.WithoutAuthentication()}
	}
	return cfg
}

func (a *App) initMail() {
	var settings []transportSettings
	if err := a.config.Unmarshal("mail.transports", &settings); err != nil {
		fatal("failed to read mail transports", err)
	}

	var publisher messaging.Publisher
	if a.messaging != nil {
		publisher = a.messaging
	}

	transports, err := buildTransports(settings, a.config.GetString("mail.from"), publisher, a.storage)
	if err != nil {
		fatal("failed to init mail transports", err)
	}

	pool := mail.NewPool(nil,
		mail.WithName(a.config.GetString("mail.pool_name")),
		mail.WithInstrument(a.ins),
		mail.WithAttemptTimeout(a.config.GetSecond("mail.attempt_timeout_seconds")),
	)
	pool.BindListener(mail.NewLogListener())
	pool.Configure(transports)

	slog.Info("mail pool configured", "transports", len(transports))
	a.mailPool = pool
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{router.HeaderCorrelationID},
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           handler,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

// initClosers lists resources in release order. The mail pool goes first so
// open SMTP sessions get their QUIT before the process exits.
func (a *App) initClosers() {
	a.closers = []closer{
		{name: "mail pool", fn: a.mailPool.Stop},
		{name: "instrument", fn: a.ins.Shutdown},
		{name: "messaging", fn: func(context.Context) error {
			if a.messaging == nil {
				return nil
			}
			return a.messaging.Close()
		}},
		{name: "redis", fn: func(context.Context) error { return a.cacheConn.Close() }},
		{name: "database", fn: func(context.Context) error {
			a.dbConn.Close()
			return nil
		}},
		{name: "storage", fn: func(context.Context) error {
			if a.storage == nil {
				return nil
			}
			return a.storage.Close()
		}},
		{name: "config", fn: func(context.Context) error { return a.config.Close() }},
	}
}
