package daemon

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/juju/errors"
	"gopkg.in/tomb.v2"

	"github.com/goldenwitch/coven/scrivener"
	"github.com/goldenwitch/coven/scrivener/memscrivener"
)

var (
	// ErrAlreadyStarted is returned by Start if called more than once.
	ErrAlreadyStarted = errors.New(`daemon: already started`)
)

// Pump is the long-running body of a daemon. It must return promptly once
// ctx is cancelled; a nil return (including ctx.Err() wrapped or bare) is
// treated as clean shutdown, any other error is routed through Fail.
type Pump func(ctx context.Context) error

// Option configures a Base, via NewBase.
type Option func(*Base)

// WithLogger overrides the logger used for lifecycle log lines; the
// default is a stumpy-backed logger writing to stderr.
func WithLogger(logger *logiface.Logger[*stumpy.Event]) Option {
	return func(b *Base) { b.logger = logger }
}

// WithEventJournal supplies an externally-owned event journal, so several
// daemons can share one, or a caller can persist daemon history to disk
// with a filescrivener.Scrivener[Event]. The default is a private
// in-memory journal.
func WithEventJournal(events scrivener.Scrivener[Event]) Option {
	return func(b *Base) { b.events = events }
}

// Base is the supervised lifecycle shared by every daemon in this module.
// Embed it, supply a Pump to Start, and use Shutdown/Fail/WaitFor to
// observe and control it.
type Base struct {
	id   uuid.UUID
	name string

	mu      sync.Mutex
	status  Status
	started bool
	cancel  context.CancelFunc

	pump   Pump
	t      tomb.Tomb
	events scrivener.Scrivener[Event]
	done   chan struct{} // closed once finish() has fully run

	failOnce sync.Once
	logger   *logiface.Logger[*stumpy.Event]
}

// NewBase constructs a Base identified by name (used only in log lines and
// panic messages; it need not be unique). The pump runs once Start is
// called.
func NewBase(name string, pump Pump, opts ...Option) *Base {
	b := &Base{
		id:     uuid.New(),
		name:   name,
		pump:   pump,
		status: StatusStopped,
		events: memscrivener.New[Event](),
		done:   make(chan struct{}),
		logger: stumpy.L.New(stumpy.L.WithStumpy()),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// ID identifies this daemon instance, for correlation in logs and router
// diagnostics.
func (b *Base) ID() uuid.UUID { return b.id }

// Name is the label this daemon was constructed with.
func (b *Base) Name() string { return b.name }

// Events is the append-only log of this daemon's lifecycle transitions.
func (b *Base) Events() scrivener.Scrivener[Event] { return b.events }

// Status is this daemon's current lifecycle state.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Start transitions Stopped -> Running and launches the pump under
// supervision. ctx bounds the pump's lifetime in addition to Shutdown/Fail;
// cancelling it has the same effect as calling Shutdown.
func (b *Base) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.Trace(ErrAlreadyStarted)
	}
	b.started = true
	b.status = StatusRunning
	pumpCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()

	if _, err := b.events.Write(context.Background(), StatusChanged(StatusRunning)); err != nil {
		return errors.Trace(err)
	}
	b.logger.Info().Str(`daemon`, b.name).Log(`daemon started`)

	b.t.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf(`daemon %q: panic in pump: %v`, b.name, r)
			}
		}()
		return b.pump(pumpCtx)
	})

	go b.supervise()

	return nil
}

func (b *Base) supervise() {
	err := b.t.Wait()
	if err != nil && !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded) {
		b.publishFailure(err)
	}
	b.finish()
}

func (b *Base) publishFailure(err error) {
	b.failOnce.Do(func() {
		b.logger.Err().Err(err).Str(`daemon`, b.name).Log(`daemon failed`)
		_, _ = b.events.Write(context.Background(), FailureOccurred(err))
	})
}

func (b *Base) finish() {
	b.mu.Lock()
	b.status = StatusCompleted
	b.mu.Unlock()
	_, _ = b.events.Write(context.Background(), StatusChanged(StatusCompleted))
	b.logger.Info().Str(`daemon`, b.name).Log(`daemon completed`)
	close(b.done)
}

// Shutdown cancels the pump's context and blocks until it has fully
// stopped (status reaches Completed), or ctx expires first. It is safe to
// call more than once and from multiple goroutines.
func (b *Base) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.t.Kill(nil)
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-b.done:
		return nil
	}
}

// Fail forces this daemon into the failed path: it publishes a
// FailureOccurred event (at most once, regardless of how many times Fail
// is called or whether the pump also fails on its own) and cancels the
// pump. Completion still follows once the pump observes cancellation and
// returns.
func (b *Base) Fail(err error) {
	if err == nil {
		return
	}
	b.publishFailure(err)
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.t.Kill(err)
}

// WaitFor blocks until the daemon's status has reached at least status
// (Stopped < Running < Completed), or ctx is cancelled.
func (b *Base) WaitFor(ctx context.Context, status Status) error {
	if b.Status() >= status {
		return nil
	}
	_, _, err := b.events.WaitFor(ctx, scrivener.BeforeFirst, func(e Event) bool {
		return e.Kind == EventStatusChanged && e.Status >= status
	})
	if err != nil {
		return errors.Trace(err)
	}
	return nil
}

// WaitForFailure blocks until a FailureOccurred event is published and
// returns the failure's cause, or returns a non-nil second error if ctx is
// cancelled first.
func (b *Base) WaitForFailure(ctx context.Context) (error, error) {
	_, entry, err := b.events.WaitFor(ctx, scrivener.BeforeFirst, func(e Event) bool {
		return e.Kind == EventFailureOccurred
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return entry.Err, nil
}
