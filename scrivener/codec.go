package scrivener

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/juju/errors"
)

// TaggedCodec is a ready-made Codec for the common case: E is an interface,
// and the closed set of concrete types it can hold is known up front. This
// is the "closed tagged union" shape described for the file-backed variant's
// runtime-type discriminator: the envelope stores a tag, and readers reject
// unknown tags rather than guessing at a type.
type TaggedCodec[E any] struct {
	tagOf func(E) string
	types map[string]reflect.Type
}

// NewTaggedCodec builds a TaggedCodec. tagOf must return a stable,
// non-empty tag for every concrete type the codec will ever be asked to
// encode; types maps each such tag to the concrete (non-pointer) struct
// type it decodes to.
func NewTaggedCodec[E any](tagOf func(E) string, types map[string]reflect.Type) *TaggedCodec[E] {
	cp := make(map[string]reflect.Type, len(types))
	for k, v := range types {
		cp[k] = v
	}
	return &TaggedCodec[E]{tagOf: tagOf, types: cp}
}

func (c *TaggedCodec[E]) TypeTag(entry E) string { return c.tagOf(entry) }

func (c *TaggedCodec[E]) Encode(entry E) ([]byte, error) {
	b, err := json.Marshal(entry)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return b, nil
}

func (c *TaggedCodec[E]) Decode(tag string, payload []byte) (E, error) {
	var zero E
	rt, ok := c.types[tag]
	if !ok {
		return zero, errors.Trace(fmt.Errorf(`scrivener: unknown type tag %q: %w`, tag, ErrUnsupported))
	}

	ptr := reflect.New(rt)
	if err := json.Unmarshal(payload, ptr.Interface()); err != nil {
		return zero, errors.Trace(err)
	}

	if v, ok := ptr.Interface().(E); ok {
		return v, nil
	}
	if v, ok := ptr.Elem().Interface().(E); ok {
		return v, nil
	}

	return zero, errors.Trace(fmt.Errorf(`scrivener: decoded type %s does not implement target type`, rt))
}
