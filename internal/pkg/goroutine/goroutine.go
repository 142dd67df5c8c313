// Package goroutine runs background work (queue consumers, delivery
// bookkeeping) under a shared concurrency cap.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/mailrelay/internal/pkg/stacktrace"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxGoroutine is multiplied by the CPU count when NewManager gets a non-positive limit.
const DefaultMaxGoroutine int = 100

// Manager runs tasks in goroutines and collects their errors until Wait.
// Once Wait has been called, new tasks are dropped.
type Manager struct {
	slots *semaphore.Weighted
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	errs  []error
}

// NewManager creates a Manager running at most limit tasks at once.
func NewManager(limit int) *Manager {
	if limit < 1 {
		limit = runtime.NumCPU() * DefaultMaxGoroutine
	}
	return &Manager{slots: semaphore.NewWeighted(int64(limit))}
}

// Go runs f in a new goroutine. f is dropped, with a warning, when the
// manager is closed or every slot is busy; it is skipped when ctx is already done.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) {
	if g == nil {
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		slog.WarnContext(ctx, "goroutine manager closed, task dropped")
		return
	}
	if !g.slots.TryAcquire(1) {
		slog.WarnContext(ctx, "goroutine limit reached, task dropped")
		return
	}

	g.wg.Go(func() {
		defer g.slots.Release(1)
		defer g.recover(ctx)

		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "goroutine canceled before start", "error", err)
			return
		}
		if err := f(ctx); err != nil {
			g.errMu.Lock()
			g.errs = append(g.errs, err)
			g.errMu.Unlock()
		}
	})
}

func (g *Manager) recover(ctx context.Context) {
	rvr := recover()
	if rvr == nil {
		return
	}

	stack := debug.Stack()
	if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
		slog.ErrorContext(ctx, "panic in goroutine", "panic", rvr, "stack", paths)
		return
	}
	slog.ErrorContext(ctx, "panic in goroutine", "panic", rvr, "stack", string(stack))
}

// Wait closes the manager, blocks until running tasks finish and returns
// their joined errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()

	g.errMu.Lock()
	defer g.errMu.Unlock()
	return errors.Join(g.errs...)
}
