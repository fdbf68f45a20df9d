package policy

import "time"

// Window is the snapshot a WindowPolicy is asked to judge: the chunks
// currently pending (length bounded by the policy's own MinLookback),
// how many chunks have been observed in total since the last emission,
// and the timestamps bracketing the current accumulation.
type Window[C any] struct {
	Chunks    []C
	TotalSeen int
	Start     time.Time
	LastEmit  time.Time
}

// WindowPolicy decides when an accumulating window of chunks should be
// flushed into an output. Implementations must be pure and side-effect
// free - the windowing daemon may call ShouldEmit more than once per
// chunk (e.g. when composed via Or).
type WindowPolicy[C any] interface {
	// MinLookback is the number of trailing chunks ShouldEmit is shown;
	// it must be >= 1.
	MinLookback() int
	ShouldEmit(w Window[C]) bool
}

type windowPolicyFunc[C any] struct {
	minLookback int
	shouldEmit  func(Window[C]) bool
}

func (p windowPolicyFunc[C]) MinLookback() int            { return p.minLookback }
func (p windowPolicyFunc[C]) ShouldEmit(w Window[C]) bool { return p.shouldEmit(w) }

// NewWindowPolicy adapts a plain function into a WindowPolicy. minLookback
// below 1 is clamped to 1.
func NewWindowPolicy[C any](minLookback int, shouldEmit func(Window[C]) bool) WindowPolicy[C] {
	if minLookback < 1 {
		minLookback = 1
	}
	return windowPolicyFunc[C]{minLookback: minLookback, shouldEmit: shouldEmit}
}

// Or composes window policies: the result emits as soon as any child
// would, and its MinLookback is the maximum across all children, so every
// child sees a window at least as large as it asked for.
func Or[C any](policies ...WindowPolicy[C]) WindowPolicy[C] {
	lookback := 1
	for _, p := range policies {
		if p.MinLookback() > lookback {
			lookback = p.MinLookback()
		}
	}
	return NewWindowPolicy(lookback, func(w Window[C]) bool {
		for _, p := range policies {
			if p.ShouldEmit(w) {
				return true
			}
		}
		return false
	})
}

// OnCompletionOnly never emits on its own; it only flushes in response to
// a completion marker, as in scenario S3 (buffer the whole stream, emit
// once, on completion).
func OnCompletionOnly[C any]() WindowPolicy[C] {
	return NewWindowPolicy[C](1, func(Window[C]) bool { return false })
}

// CountThreshold emits once at least n chunks are pending in the current
// window. n below 1 is clamped to 1.
func CountThreshold[C any](n int) WindowPolicy[C] {
	if n < 1 {
		n = 1
	}
	return NewWindowPolicy(n, func(w Window[C]) bool { return len(w.Chunks) >= n })
}

// IdleTimeout emits once at least d has passed since the window's last
// emission and at least one chunk is pending, regardless of size - useful
// composed via Or with a count or completion-only policy, so a slow
// trickle still flushes eventually.
func IdleTimeout[C any](minLookback int, d time.Duration, now func() time.Time) WindowPolicy[C] {
	return NewWindowPolicy(minLookback, func(w Window[C]) bool {
		return len(w.Chunks) > 0 && now().Sub(w.LastEmit) >= d
	})
}
