package flusher

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"

	"github.com/goldenwitch/coven/scrivener"
)

// Predicate decides whether the producer's active batch should be
// flushed. ShouldFlush is consulted exactly once per append, so an
// implementation may hold state of its own (a rate limiter, a counter)
// without its answer being asked twice in immediate succession for the
// same decision.
type Predicate[E any] interface {
	ShouldFlush(active []scrivener.Record[E]) bool
}

type predicateFunc[E any] func([]scrivener.Record[E]) bool

func (f predicateFunc[E]) ShouldFlush(active []scrivener.Record[E]) bool { return f(active) }

// NewPredicate adapts a plain function into a Predicate.
func NewPredicate[E any](f func([]scrivener.Record[E]) bool) Predicate[E] {
	return predicateFunc[E](f)
}

// CountThreshold flushes once the active batch reaches n records.
func CountThreshold[E any](n int) Predicate[E] {
	if n < 1 {
		n = 1
	}
	return NewPredicate(func(active []scrivener.Record[E]) bool { return len(active) >= n })
}

// Or composes predicates: flush as soon as any would.
func Or[E any](preds ...Predicate[E]) Predicate[E] {
	return NewPredicate(func(active []scrivener.Record[E]) bool {
		for _, p := range preds {
			if p.ShouldFlush(active) {
				return true
			}
		}
		return false
	})
}

// RateLimited is a time-based ceiling: it flushes whenever the batch is
// non-empty and catrate's sliding-window limiter still has budget for the
// given category. Composed via Or with CountThreshold, a slow trickle of
// records is flushed at a bounded cadence instead of waiting indefinitely
// for the count to trip.
func RateLimited[E any](limiter *catrate.Limiter, category any) Predicate[E] {
	return NewPredicate(func(active []scrivener.Record[E]) bool {
		if len(active) == 0 {
			return false
		}
		_, allowed := limiter.Allow(category)
		return allowed
	})
}

// NewRateLimiter is a convenience constructor matching the common case: at
// most one flush per interval.
func NewRateLimiter(interval time.Duration) *catrate.Limiter {
	return catrate.NewLimiter(map[time.Duration]int{interval: 1})
}
