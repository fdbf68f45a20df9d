package shatter

import (
	"context"

	"github.com/juju/errors"

	"github.com/goldenwitch/coven/daemon"
	"github.com/goldenwitch/coven/policy"
	"github.com/goldenwitch/coven/scrivener"
)

// Config wires a shattering daemon to a concrete journal and subtype set.
// E is the journal's base entry type; S is the source subtype this daemon
// explodes; C is the chunk subtype it produces; X is the completion
// marker subtype appended after each source's chunks.
type Config[E, S, C, X any] struct {
	Journal scrivener.Scrivener[E]

	// AsSource reports whether entry is a source entry this daemon
	// should explode. Entries for which it returns false are ignored.
	AsSource func(entry E) (S, bool)

	Shatter           policy.ShatterPolicy[S, C]
	ToChunkEntry      func(C) E
	CompletionFactory func(S) X
	ToCompletionEntry func(X) E
}

// Daemon is a shattering daemon over a concrete entry/source/chunk/marker
// type set.
type Daemon[E, S, C, X any] struct {
	*daemon.Base
	cfg Config[E, S, C, X]
}

// New constructs a shattering daemon. The pump does not start until Start
// is called.
func New[E, S, C, X any](name string, cfg Config[E, S, C, X], opts ...daemon.Option) *Daemon[E, S, C, X] {
	d := &Daemon[E, S, C, X]{cfg: cfg}
	d.Base = daemon.NewBase(name, d.pump, opts...)
	return d
}

func (d *Daemon[E, S, C, X]) pump(ctx context.Context) error {
	start := scrivener.BeforeFirst
	for pos := range d.cfg.Journal.ReadBackward(ctx, scrivener.MaxPosition) {
		start = pos
		break
	}

	for _, entry := range d.cfg.Journal.Tail(ctx, start) {
		if err := ctx.Err(); err != nil {
			return nil
		}

		source, ok := d.cfg.AsSource(entry)
		if !ok {
			continue
		}

		for _, chunk := range d.cfg.Shatter.Shatter(source) {
			if _, err := d.cfg.Journal.Write(ctx, d.cfg.ToChunkEntry(chunk)); err != nil {
				return errors.Trace(err)
			}
		}

		marker := d.cfg.CompletionFactory(source)
		if _, err := d.cfg.Journal.Write(ctx, d.cfg.ToCompletionEntry(marker)); err != nil {
			return errors.Trace(err)
		}
	}

	return nil
}
