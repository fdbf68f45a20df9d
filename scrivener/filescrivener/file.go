package filescrivener

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/juju/errors"

	"github.com/goldenwitch/coven/internal/jsonline"
	"github.com/goldenwitch/coven/internal/wake"
	"github.com/goldenwitch/coven/scrivener"
)

const (
	pollInterval = 250 * time.Millisecond
	recordDigits = 20
	lockFile     = `journal.lock`
	headFile     = `head.txt`
)

// Scrivener is the file-backed scrivener.Scrivener implementation: one JSON
// file per record, under dir.
type Scrivener[E any] struct {
	dir   string
	codec scrivener.Codec[E]

	writeMu sync.Mutex // in-process write serialization, alongside the cross-process flock
	counter int64
	initErr error
	initted bool
	initMu  sync.Mutex

	gate    *wake.Gate
	watcher interface{ Close() error }
	closed  chan struct{}
	once    sync.Once

	logger *logiface.Logger[*stumpy.Event]
}

var _ scrivener.Scrivener[int] = (*Scrivener[int])(nil)

// Option configures a Scrivener, via Open.
type Option[E any] func(*Scrivener[E])

// WithLogger overrides the logger used for warnings (unreadable records,
// lock/watch failures); the default is a stumpy-backed logger writing to
// stderr.
func WithLogger[E any](logger *logiface.Logger[*stumpy.Event]) Option[E] {
	return func(s *Scrivener[E]) { s.logger = logger }
}

// Open prepares a file-backed journal rooted at dir, creating it if
// necessary. codec must be able to encode/decode every concrete type the
// caller intends to Write.
func Open[E any](dir string, codec scrivener.Codec[E], opts ...Option[E]) (*Scrivener[E], error) {
	if codec == nil {
		return nil, errors.Trace(scrivener.ErrInvalidArgument)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Trace(err)
	}

	s := &Scrivener[E]{
		dir:    dir,
		codec:  codec,
		gate:   wake.New(),
		closed: make(chan struct{}),
		logger: stumpy.L.New(stumpy.L.WithStumpy()),
	}
	for _, o := range opts {
		o(s)
	}

	s.startWatch()

	return s, nil
}

// Close stops the background directory watch. It does not affect data on
// disk, and is not required before the process exits.
func (s *Scrivener[E]) Close() error {
	s.once.Do(func() { close(s.closed) })
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func formatName(pos scrivener.Position) string {
	return fmt.Sprintf(`%0*d.json`, recordDigits, pos)
}

func parsePositionFromName(name string) (scrivener.Position, bool) {
	name = strings.TrimSuffix(name, `.json`)
	if len(name) != recordDigits {
		return 0, false
	}
	n, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return 0, false
	}
	return scrivener.Position(n), true
}

// ensureCounter performs the cold-start seed described in spec §4.1b: read
// head.txt, falling back to a directory scan for the maximum filename.
func (s *Scrivener[E]) ensureCounter() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initted {
		return s.initErr
	}
	s.initted = true

	if data, err := os.ReadFile(filepath.Join(s.dir, headFile)); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); err == nil {
			s.counter = n
			return nil
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.initErr = errors.Trace(err)
		return s.initErr
	}
	var max int64
	for _, e := range entries {
		if pos, ok := parsePositionFromName(e.Name()); ok && int64(pos) > max {
			max = int64(pos)
		}
	}
	s.counter = max
	return nil
}

func (s *Scrivener[E]) persistHeadBestEffort(pos int64) {
	_ = os.WriteFile(filepath.Join(s.dir, headFile), []byte(strconv.FormatInt(pos, 10)), 0o644)
}

func (s *Scrivener[E]) syncDirBestEffort() {
	f, err := os.Open(s.dir)
	if err != nil {
		return
	}
	defer f.Close()
	_ = f.Sync()
}

func (s *Scrivener[E]) Write(ctx context.Context, entry E) (scrivener.Position, error) {
	if scrivener.IsNil(entry) {
		return 0, errors.Trace(scrivener.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.Trace(scrivener.ErrCancelled)
	}
	if err := s.ensureCounter(); err != nil {
		return 0, errors.Trace(scrivener.ErrIOFailure)
	}

	payload, err := s.codec.Encode(entry)
	if err != nil {
		return 0, errors.Trace(err)
	}
	tag := s.codec.TypeTag(entry)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	lock, err := acquireLock(filepath.Join(s.dir, lockFile))
	if err != nil {
		return 0, errors.Trace(fmt.Errorf(`%w: acquiring journal lock: %v`, scrivener.ErrIOFailure, err))
	}
	defer lock.Release()

	candidate := s.counter + 1
	var data []byte

	const maxAttempts = 64
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, errors.Trace(scrivener.ErrCancelled)
		}
		if candidate >= int64(scrivener.MaxPosition) {
			return 0, errors.Trace(scrivener.ErrUnsupported)
		}

		path := filepath.Join(s.dir, formatName(scrivener.Position(candidate)))
		if _, err := os.Stat(path); err == nil {
			candidate++
			continue
		}

		if data == nil {
			data = jsonline.AppendEnvelope(nil, candidate, tag, payload)
		}

		tmp := path + `.tmp`
		if werr := writeFileSynced(tmp, data); werr != nil {
			s.logger.Warning().Err(werr).Log(`filescrivener: write temp file failed, retrying`)
			candidate++
			continue
		}
		if rerr := os.Rename(tmp, path); rerr != nil {
			_ = os.Remove(tmp)
			s.logger.Warning().Err(rerr).Log(`filescrivener: rename collision, retrying`)
			candidate++
			continue
		}

		s.counter = candidate
		s.persistHeadBestEffort(candidate)
		s.syncDirBestEffort()
		s.gate.Broadcast()
		return scrivener.Position(candidate), nil
	}

	return 0, errors.Trace(fmt.Errorf(`%w: exhausted retries allocating a position`, scrivener.ErrIOFailure))
}

func writeFileSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// readRecord returns (entry, true, nil) if pos is currently readable,
// (zero, false, nil) if the file does not exist yet, or (zero, false, err)
// if it exists but failed to decode - the "unreadable" state tailers await
// and backward reads skip (spec §4.1b).
func (s *Scrivener[E]) readRecord(pos scrivener.Position) (E, bool, error) {
	var zero E
	path := filepath.Join(s.dir, formatName(pos))

	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, false, nil
		}
		return zero, false, err
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return zero, false, err
	}

	gotPos, tag, payload, err := jsonline.ParseEnvelope(data)
	if err != nil {
		return zero, false, err
	}
	if scrivener.Position(gotPos) != pos {
		return zero, false, fmt.Errorf(`filescrivener: envelope position %d does not match filename position %d`, gotPos, pos)
	}

	entry, err := s.codec.Decode(tag, payload)
	if err != nil {
		return zero, false, err
	}
	return entry, true, nil
}

func (s *Scrivener[E]) Tail(ctx context.Context, after scrivener.Position) iter.Seq2[scrivener.Position, E] {
	return func(yield func(scrivener.Position, E) bool) {
		if after >= scrivener.MaxPosition {
			return
		}

		cursor := after
		for {
			for {
				entry, ok, err := s.readRecord(cursor + 1)
				if err != nil {
					s.logger.Warning().Err(err).Int64(`pos`, int64(cursor+1)).Log(`filescrivener: unreadable record, awaiting`)
				}
				if !ok {
					break
				}
				if !yield(cursor+1, entry) {
					return
				}
				cursor++
			}

			select {
			case <-ctx.Done():
				return
			case <-s.gate.Wait():
			case <-time.After(pollInterval):
			}
			if err := ctx.Err(); err != nil {
				return
			}
		}
	}
}

func (s *Scrivener[E]) ReadBackward(ctx context.Context, before scrivener.Position) iter.Seq2[scrivener.Position, E] {
	return func(yield func(scrivener.Position, E) bool) {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return
		}

		var positions []scrivener.Position
		for _, e := range entries {
			if pos, ok := parsePositionFromName(e.Name()); ok && pos < before {
				positions = append(positions, pos)
			}
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i] > positions[j] })

		for _, pos := range positions {
			if err := ctx.Err(); err != nil {
				return
			}
			entry, ok, err := s.readRecord(pos)
			if err != nil {
				s.logger.Warning().Err(err).Int64(`pos`, int64(pos)).Log(`filescrivener: skipping unreadable record in backward read`)
			}
			if !ok {
				continue
			}
			if !yield(pos, entry) {
				return
			}
		}
	}
}

func (s *Scrivener[E]) WaitFor(ctx context.Context, after scrivener.Position, pred scrivener.Predicate[E]) (scrivener.Position, E, error) {
	var zero E
	if after >= scrivener.MaxPosition {
		return 0, zero, errors.Trace(scrivener.ErrInvalidArgument)
	}
	if pred == nil {
		return 0, zero, errors.Trace(scrivener.ErrInvalidArgument)
	}

	for pos, entry := range s.Tail(ctx, after) {
		if pred(entry) {
			return pos, entry, nil
		}
	}

	return 0, zero, errors.Trace(scrivener.ErrCancelled)
}
