package flusher

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"github.com/goldenwitch/coven/daemon"
	"github.com/goldenwitch/coven/scrivener"
)

// defaultBatchCapacity is just an initial slice capacity hint; batches
// grow past it freely.
const defaultBatchCapacity = 64

// Config wires a flusher daemon to a source journal, a flush Predicate,
// and a destination Sink.
type Config[E any] struct {
	Journal    scrivener.Scrivener[E]
	Predicate  Predicate[E]
	Serializer Serializer[E]
	Sink       Sink[E]

	// QueueCapacity bounds the flush queue between producer and
	// consumer; the buffer pool is sized QueueCapacity+2, so a free
	// buffer is always available once the queue itself is full.
	QueueCapacity int
}

// Daemon is a flusher daemon over a concrete entry type.
type Daemon[E any] struct {
	*daemon.Base
	cfg Config[E]

	pool  chan []scrivener.Record[E]
	queue chan []scrivener.Record[E]

	mu     sync.Mutex
	active []scrivener.Record[E]
}

// New constructs a flusher daemon. The pump does not start until Start is
// called.
func New[E any](name string, cfg Config[E], opts ...daemon.Option) *Daemon[E] {
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = 1
	}
	if cfg.Serializer == nil {
		cfg.Serializer = DefaultSerializer[E]()
	}

	d := &Daemon[E]{
		cfg:   cfg,
		pool:  make(chan []scrivener.Record[E], cfg.QueueCapacity+2),
		queue: make(chan []scrivener.Record[E], cfg.QueueCapacity),
	}
	for i := 0; i < cap(d.pool); i++ {
		d.pool <- make([]scrivener.Record[E], 0, defaultBatchCapacity)
	}
	d.Base = daemon.NewBase(name, d.pump, opts...)
	return d
}

func (d *Daemon[E]) rent() []scrivener.Record[E] {
	select {
	case b := <-d.pool:
		return b[:0]
	default:
		return make([]scrivener.Record[E], 0, defaultBatchCapacity)
	}
}

func (d *Daemon[E]) release(b []scrivener.Record[E]) {
	select {
	case d.pool <- b[:0]:
	default:
		// pool is full (shouldn't happen given the +2 sizing, but a
		// caller-supplied batch slipping in is harmless to drop)
	}
}

func (d *Daemon[E]) pump(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.produce(gctx) })
	g.Go(func() error { return d.consume(ctx) })
	return g.Wait()
}

// produce tails the source journal, accumulating records into the active
// batch and enqueuing it whenever the predicate trips. On ctx cancellation
// it detaches whatever remains in the active batch and enqueues it exactly
// once before closing the queue.
func (d *Daemon[E]) produce(ctx context.Context) (err error) {
	defer func() {
		d.drainActive()
		close(d.queue)
	}()

	start := scrivener.BeforeFirst
	for pos := range d.cfg.Journal.ReadBackward(ctx, scrivener.MaxPosition) {
		start = pos
		break
	}

	d.mu.Lock()
	d.active = d.rent()
	d.mu.Unlock()

	for pos, entry := range d.cfg.Journal.Tail(ctx, start) {
		if err := ctx.Err(); err != nil {
			return nil
		}

		d.mu.Lock()
		if d.active == nil {
			d.active = d.rent()
		}
		d.active = append(d.active, scrivener.Record[E]{Pos: pos, Entry: entry})
		var retired []scrivener.Record[E]
		if d.cfg.Predicate.ShouldFlush(d.active) {
			retired = d.active
			d.active = d.rent()
		}
		d.mu.Unlock()

		if retired == nil {
			continue
		}

		select {
		case d.queue <- retired:
		case <-ctx.Done():
			d.mu.Lock()
			d.active = retired
			d.mu.Unlock()
			return nil
		}
	}

	return nil
}

// drainActive atomically detaches whatever is left in the active batch
// and enqueues it, once, if non-empty.
func (d *Daemon[E]) drainActive() {
	d.mu.Lock()
	batch := d.active
	d.active = nil
	d.mu.Unlock()
	if len(batch) > 0 {
		d.queue <- batch
	}
}

// consume is the flush queue's single reader. It always runs to queue
// closure regardless of ctx, using context.Background() for the sink
// write itself, so a batch enqueued right before shutdown is still
// delivered.
func (d *Daemon[E]) consume(_ context.Context) error {
	for batch := range d.queue {
		if err := d.cfg.Sink.AppendSnapshot(context.Background(), batch); err != nil {
			return errors.Trace(err)
		}
		d.release(batch)
	}
	return nil
}
