package policy

// ShatterPolicy explodes one entry into zero or more smaller entries. Used
// both by the shattering daemon (exploding a source entry into chunks)
// and optionally by the windowing daemon (exploding an output before it
// is appended).
type ShatterPolicy[In, Out any] interface {
	Shatter(in In) []Out
}

type shatterPolicyFunc[In, Out any] func(In) []Out

func (f shatterPolicyFunc[In, Out]) Shatter(in In) []Out { return f(in) }

// NewShatterPolicy adapts a plain function into a ShatterPolicy.
func NewShatterPolicy[In, Out any](f func(In) []Out) ShatterPolicy[In, Out] {
	return shatterPolicyFunc[In, Out](f)
}

// BatchTransmuter converts an accumulated batch of chunks into a single
// output, optionally leaving one chunk behind to seed the next window.
type BatchTransmuter[C, O any] interface {
	Transmute(chunks []C) (out O, remainder *C)
}

type batchTransmuterFunc[C, O any] func([]C) (O, *C)

func (f batchTransmuterFunc[C, O]) Transmute(chunks []C) (O, *C) { return f(chunks) }

// NewBatchTransmuter adapts a plain function into a BatchTransmuter.
func NewBatchTransmuter[C, O any](f func([]C) (O, *C)) BatchTransmuter[C, O] {
	return batchTransmuterFunc[C, O](f)
}
