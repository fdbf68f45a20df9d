package router

import (
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

// TagScope is the ambient, per-ritual tag state consulted during block
// selection. Tags are case-insensitive. Two layers exist: persistent
// tags, supplied once at construction and never expiring, and epoch
// tags, added by a step and visible only starting the following step's
// selection (the "epoch-only" model per the simpler of the two designs
// this was generalized from).
type TagScope struct {
	mu          sync.Mutex
	epoch       int
	persistent  map[string]struct{}
	epochTags   map[string]struct{}
	pendingNext map[string]struct{}
}

// NewTagScope constructs a tag scope seeded with persistent initial tags.
func NewTagScope(initial ...string) *TagScope {
	s := &TagScope{
		persistent:  make(map[string]struct{}, len(initial)),
		epochTags:   make(map[string]struct{}),
		pendingNext: make(map[string]struct{}),
	}
	for _, t := range initial {
		s.persistent[strings.ToLower(t)] = struct{}{}
	}
	return s
}

// Current returns a sorted snapshot of every tag visible to this epoch:
// the persistent set union the tags promoted from the prior step.
func (s *TagScope) Current() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.persistent)+len(s.epochTags))
	for t := range s.persistent {
		seen[t] = struct{}{}
	}
	for t := range s.epochTags {
		seen[t] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Has reports whether tag (case-insensitively) is currently visible.
func (s *TagScope) Has(tag string) bool {
	tag = strings.ToLower(tag)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persistent[tag]; ok {
		return true
	}
	_, ok := s.epochTags[tag]
	return ok
}

// Epoch is the current step number.
func (s *TagScope) Epoch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Add schedules tag to become visible starting the next step's selection.
// It has no effect on the step currently being selected.
func (s *TagScope) Add(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingNext[strings.ToLower(tag)] = struct{}{}
}

// promote replaces the current epoch's tags with the tags added since the
// previous promotion, and must be called before each selection.
func (s *TagScope) promote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochTags = s.pendingNext
	s.pendingNext = make(map[string]struct{})
}

// bumpEpoch increments the epoch counter; called immediately before a
// selected block runs, so any tags it adds are attributed to the step
// that is about to begin.
func (s *TagScope) bumpEpoch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}
