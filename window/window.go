package window

import (
	"context"
	"time"

	"github.com/juju/errors"
	"golang.org/x/exp/slices"

	"github.com/goldenwitch/coven/daemon"
	"github.com/goldenwitch/coven/policy"
	"github.com/goldenwitch/coven/scrivener"
)

// Config wires a windowing daemon to a concrete journal and a concrete
// set of subtypes. E is the journal's base entry type; C is the chunk
// subtype; O is the output subtype; X is the completion-marker subtype.
type Config[E, C, O, X any] struct {
	Journal scrivener.Scrivener[E]

	// AsChunk reports whether entry is a chunk, and if so, the chunk
	// value. AsCompletion does the same for completion markers. Exactly
	// one should match for any entry this daemon cares about; entries
	// matching neither are ignored.
	AsChunk      func(entry E) (C, bool)
	AsCompletion func(entry E) (X, bool)

	Policy     policy.WindowPolicy[C]
	Transmuter policy.BatchTransmuter[C, O]

	// Shatter, if set, explodes each emitted output into the entries
	// actually appended to the journal. If nil, ToEntry wraps the output
	// directly as a single entry.
	Shatter policy.ShatterPolicy[O, E]
	ToEntry func(O) E

	// Now defaults to time.Now; overridable for deterministic tests.
	Now func() time.Time
}

// Daemon is a windowing daemon over a concrete entry/chunk/output/marker
// type set.
type Daemon[E, C, O, X any] struct {
	*daemon.Base
	cfg Config[E, C, O, X]
}

// New constructs a windowing daemon. The pump does not start until Start
// is called.
func New[E, C, O, X any](name string, cfg Config[E, C, O, X], opts ...daemon.Option) *Daemon[E, C, O, X] {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	d := &Daemon[E, C, O, X]{cfg: cfg}
	d.Base = daemon.NewBase(name, d.pump, opts...)
	return d
}

func (d *Daemon[E, C, O, X]) pump(ctx context.Context) error {
	start := scrivener.BeforeFirst
	for pos := range d.cfg.Journal.ReadBackward(ctx, scrivener.MaxPosition) {
		start = pos
		break
	}

	var buffer []C
	totalSeen := 0
	windowStart := d.cfg.Now()
	lastEmit := windowStart

	for _, entry := range d.cfg.Journal.Tail(ctx, start) {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if chunk, ok := d.cfg.AsChunk(entry); ok {
			buffer = append(buffer, chunk)
			totalSeen++

			lookback := d.cfg.Policy.MinLookback()
			if lookback < 1 {
				lookback = 1
			}
			windowed := buffer
			if len(windowed) > lookback {
				windowed = windowed[len(windowed)-lookback:]
			}

			w := policy.Window[C]{
				// Cloned so a policy cannot observe a later mutation of
				// buffer through the snapshot it was handed.
				Chunks:    slices.Clone(windowed),
				TotalSeen: totalSeen,
				Start:     windowStart,
				LastEmit:  lastEmit,
			}
			if d.cfg.Policy.ShouldEmit(w) {
				if err := d.emit(ctx, &buffer); err != nil {
					return errors.Trace(err)
				}
				lastEmit = d.cfg.Now()
				totalSeen = len(buffer)
			}
			continue
		}

		if _, ok := d.cfg.AsCompletion(entry); ok {
			for len(buffer) > 0 {
				before := len(buffer)
				if err := d.emit(ctx, &buffer); err != nil {
					return errors.Trace(err)
				}
				if len(buffer) >= before {
					break
				}
			}
			windowStart = d.cfg.Now()
			lastEmit = windowStart
			totalSeen = 0
			continue
		}
	}

	return nil
}

// emit transmutes buffer into one output, appends it (shattered or whole),
// and replaces buffer with either the declared remainder or nothing.
func (d *Daemon[E, C, O, X]) emit(ctx context.Context, buffer *[]C) error {
	out, remainder := d.cfg.Transmuter.Transmute(*buffer)

	var entries []E
	if d.cfg.Shatter != nil {
		entries = d.cfg.Shatter.Shatter(out)
	}
	if len(entries) == 0 {
		entries = []E{d.cfg.ToEntry(out)}
	}

	for _, e := range entries {
		if _, err := d.cfg.Journal.Write(ctx, e); err != nil {
			return err
		}
	}

	if remainder != nil {
		*buffer = []C{*remainder}
	} else {
		*buffer = nil
	}
	return nil
}
