package flusher

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/juju/errors"

	"github.com/goldenwitch/coven/internal/jsonline"
	"github.com/goldenwitch/coven/scrivener"
)

// Serializer renders a single (position, entry) pair for persistence.
type Serializer[E any] interface {
	Serialize(pos scrivener.Position, entry E) (string, error)
}

type jsonSerializer[E any] struct{}

// DefaultSerializer produces a single-line JSON envelope
// {"schemaVersion","position","entry"}. encoding/json.Marshal dispatches
// on entry's runtime type, so fields of whatever concrete type E actually
// holds are preserved even when E is an interface.
func DefaultSerializer[E any]() Serializer[E] { return jsonSerializer[E]{} }

func (jsonSerializer[E]) Serialize(pos scrivener.Position, entry E) (string, error) {
	env := struct {
		SchemaVersion string `json:"schemaVersion"`
		Position      int64  `json:"position"`
		Entry         E      `json:"entry"`
	}{
		SchemaVersion: jsonline.SchemaVersion,
		Position:      int64(pos),
		Entry:         entry,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return ``, errors.Trace(err)
	}
	return string(b), nil
}

// Sink appends a batch of records to durable storage, in order, as a
// single atomic-looking operation from the caller's point of view.
type Sink[E any] interface {
	AppendSnapshot(ctx context.Context, batch []scrivener.Record[E]) error
}

// fileSink is the default Sink: a single append-only UTF-8 file, one
// serialized record per line.
type fileSink[E any] struct {
	path       string
	serializer Serializer[E]
	mu         sync.Mutex
}

// NewFileSink opens (creating parent directories as needed) an append-only
// NDJSON sink at path.
func NewFileSink[E any](path string, serializer Serializer[E]) (Sink[E], error) {
	if serializer == nil {
		serializer = DefaultSerializer[E]()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Trace(err)
	}
	return &fileSink[E]{path: path, serializer: serializer}, nil
}

func (s *fileSink[E]) AppendSnapshot(_ context.Context, batch []scrivener.Record[E]) error {
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()

	for _, rec := range batch {
		line, err := s.serializer.Serialize(rec.Pos, rec.Entry)
		if err != nil {
			return errors.Trace(err)
		}
		if _, err := f.WriteString(line + "\n"); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(f.Sync())
}
