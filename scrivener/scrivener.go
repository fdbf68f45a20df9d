package scrivener

import (
	"context"
	"iter"
	"math"

	"github.com/juju/errors"
)

type (
	// Position is a journal position: a dense, monotonic, strictly positive
	// integer assigned by a Scrivener on Write. Zero is the sentinel "before
	// the first record".
	Position int64

	// Record is a single envelope: the position a Write returned, and the
	// entry that was written at that position.
	Record[E any] struct {
		Pos   Position
		Entry E
	}

	// Predicate reports whether an entry matches some condition, for use
	// with WaitFor. It must be pure and side-effect free.
	Predicate[E any] func(entry E) bool

	// Codec bridges a Scrivener's declared entry type E to an external
	// tagged representation (a closed tagged union: each scrivener is
	// parameterized by a tag-to-type mapping). Implementations back the
	// file-backed variant's on-disk envelope.
	Codec[E any] interface {
		// TypeTag returns the discriminator to store alongside the entry.
		TypeTag(entry E) string

		// Encode returns the entry's payload, as raw (non-enveloped) JSON.
		Encode(entry E) ([]byte, error)

		// Decode reconstructs an entry from a previously-encoded payload and
		// its discriminator. Unknown tags must be rejected.
		Decode(tag string, payload []byte) (E, error)
	}

	// Scrivener is the append/tail/backward/wait contract for a single
	// logical stream of entries of type E. Implementations must satisfy the
	// invariants of spec §3/§8: dense monotonic positions, total write
	// ordering, immutable entries, gapless tailing.
	Scrivener[E any] interface {
		// Write appends entry, returning its assigned position. Returns
		// ErrInvalidArgument if entry is nil (for nil-able E), ErrCancelled
		// on cooperative cancellation, ErrUnsupported if the journal has
		// reached MaxPosition.
		Write(ctx context.Context, entry E) (Position, error)

		// Tail yields (position, entry) pairs strictly ordered by position,
		// starting at after+1, indefinitely, until ctx is cancelled. The
		// returned iterator never skips a not-yet-visible position; calling
		// Tail again (even concurrently) yields an independent, equivalent
		// sequence. after == MaxPosition yields an empty sequence.
		Tail(ctx context.Context, after Position) iter.Seq2[Position, E]

		// ReadBackward snapshots the journal at call time and yields
		// records with position < before, in strictly decreasing order.
		// Records appended after the call are never observed.
		ReadBackward(ctx context.Context, before Position) iter.Seq2[Position, E]

		// WaitFor returns the first entry strictly after 'after' for which
		// pred holds, silently skipping non-matching entries. Returns
		// ErrInvalidArgument if after == MaxPosition.
		WaitFor(ctx context.Context, after Position, pred Predicate[E]) (Position, E, error)
	}
)

const (
	// BeforeFirst is the sentinel position meaning "before the first
	// record"; it is the correct anchor for a Tail/WaitFor call that should
	// observe every record ever written.
	BeforeFirst Position = 0

	// MaxPosition is the sentinel upper bound; Tail(MaxPosition) yields an
	// empty sequence, and WaitFor rejects it as ErrInvalidArgument.
	MaxPosition Position = math.MaxInt64
)

var (
	// ErrInvalidArgument is returned for a nil entry, a MaxPosition anchor
	// where it isn't accepted, or a nil predicate/handler.
	ErrInvalidArgument = errors.New(`scrivener: invalid argument`)

	// ErrCancelled is returned when an operation observes cooperative
	// cancellation (ctx.Done, or an analogous internal signal).
	ErrCancelled = errors.New(`scrivener: cancelled`)

	// ErrIOFailure is returned by the file-backed variant when a write or
	// rename fails after exhausting retries.
	ErrIOFailure = errors.New(`scrivener: io failure`)

	// ErrUnsupported is returned when an operation would violate a
	// structural invariant, e.g. writing past MaxPosition, or decoding an
	// unrecognised type tag.
	ErrUnsupported = errors.New(`scrivener: unsupported`)
)

// WaitForType is a typed convenience over Scrivener.WaitFor: it returns the
// first entry strictly after 'after' whose dynamic type is (or implements)
// T.
func WaitForType[E any, T any](ctx context.Context, s Scrivener[E], after Position) (Position, T, error) {
	var zero T
	pos, entry, err := s.WaitFor(ctx, after, func(e E) bool {
		_, ok := any(e).(T)
		return ok
	})
	if err != nil {
		return 0, zero, err
	}
	v, _ := any(entry).(T)
	return pos, v, nil
}

// IsNil reports whether v holds a nil pointer, interface, slice, map, chan
// or func value - the values a Scrivener must reject as invalid entries.
// It is exported so the memory and file variants share one definition.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	return reflectIsNil(v)
}
