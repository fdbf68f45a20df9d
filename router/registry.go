package router

import (
	"context"
	"fmt"
	"reflect"

	"github.com/juju/errors"
)

// Block is one immutable registry entry: its declared input/output types,
// its name (used for by:/to: tag matching), its advertised capability
// tags, and the invoker the router calls to run it.
type Block struct {
	Index      int
	Name       string
	InputType  reflect.Type
	OutputType reflect.Type
	Tags       []string

	invoke func(ctx context.Context, in any) (any, error)
}

// Registry is an append-only, immutable-after-construction list of
// blocks. Index reflects registration order and is the canonical
// forward-only / tie-break ordering.
type Registry struct {
	blocks []Block
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Blocks returns a snapshot of the registered blocks, in registry order.
func (r *Registry) Blocks() []Block {
	out := make([]Block, len(r.blocks))
	copy(out, r.blocks)
	return out
}

func (r *Registry) register(name string, tags []string, in, out reflect.Type, invoke func(context.Context, any) (any, error)) int {
	index := len(r.blocks)
	r.blocks = append(r.blocks, Block{
		Index:      index,
		Name:       name,
		InputType:  in,
		OutputType: out,
		Tags:       append([]string(nil), tags...),
		invoke:     invoke,
	})
	return index
}

// RegisterFunc registers a block backed by a plain function - the "pure
// function" invoker variant from the block capability contract. It
// returns the block's registry index.
func RegisterFunc[In, Out any](r *Registry, name string, tags []string, fn func(ctx context.Context, in In) (Out, error)) int {
	inType := reflect.TypeOf((*In)(nil)).Elem()
	outType := reflect.TypeOf((*Out)(nil)).Elem()

	return r.register(name, tags, inType, outType, func(ctx context.Context, in any) (any, error) {
		typed, ok := in.(In)
		if !ok {
			return nil, errors.Trace(fmt.Errorf(`router: block %q: input %T is not assignable to %s`, name, in, inType))
		}
		return fn(ctx, typed)
	})
}

// Magiker is the "class instance" invoker variant: any type exposing the
// block capability directly.
type Magiker[In, Out any] interface {
	DoMagik(ctx context.Context, in In) (Out, error)
}

// RegisterInstance registers a block backed by a Magiker instance.
func RegisterInstance[In, Out any](r *Registry, name string, tags []string, instance Magiker[In, Out]) int {
	return RegisterFunc[In, Out](r, name, tags, instance.DoMagik)
}
