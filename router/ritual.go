package router

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// ErrNoProgress is returned when no forward candidate exists and the
// current value does not already satisfy the target type.
var ErrNoProgress = errors.New(`router: no progress`)

// Ritual is one end-to-end pipeline execution: a registry, a tag scope,
// and an optional fence restricting which blocks may be considered.
type Ritual struct {
	registry  *Registry
	tags      *TagScope
	fence     map[int]struct{}
	lastIndex int
}

// NewRitual starts a ritual over registry, using tags as its tag scope.
// If tags is nil, a fresh empty TagScope is used.
func NewRitual(registry *Registry, tags *TagScope) *Ritual {
	if tags == nil {
		tags = NewTagScope()
	}
	return &Ritual{registry: registry, tags: tags, lastIndex: -1}
}

// Fence restricts subsequent selection to the given registry indices.
// Passing no indices clears any existing fence.
func (rt *Ritual) Fence(indices ...int) *Ritual {
	if len(indices) == 0 {
		rt.fence = nil
		return rt
	}
	fence := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		fence[i] = struct{}{}
	}
	rt.fence = fence
	return rt
}

// Tags exposes this ritual's tag scope, so a caller can add forward-next
// hints after inspecting a result, or across multiple Run calls.
func (rt *Ritual) Tags() *TagScope { return rt.tags }

// LastIndex is the registry index of the most recently executed block,
// or -1 if none has run yet.
func (rt *Ritual) LastIndex() int { return rt.lastIndex }

// Run walks the registry forward from the ritual's current position,
// starting from value start, until no further candidate exists. It then
// returns the accumulated value if it is assignable to target, and
// ErrNoProgress otherwise.
func (rt *Ritual) Run(ctx context.Context, start any, target reflect.Type) (any, error) {
	current := start

	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}

		rt.tags.promote()
		candidates := rt.candidates(current)
		block, ok := rt.selectBlock(candidates)
		if !ok {
			currentType := reflect.TypeOf(current)
			if currentType != nil && currentType.AssignableTo(target) {
				return current, nil
			}
			return nil, errors.Trace(fmt.Errorf(
				`%w: last index %d, current type %T, target %s`,
				ErrNoProgress, rt.lastIndex, current, target,
			))
		}

		rt.tags.bumpEpoch()
		out, err := block.invoke(ctx, current)
		if err != nil {
			return nil, errors.Trace(err)
		}

		rt.tags.Add(`by:` + block.Name)
		rt.lastIndex = block.Index
		current = out
	}
}

// candidates applies the forward-only, type-filter and fence rules.
func (rt *Ritual) candidates(current any) []Block {
	currentType := reflect.TypeOf(current)
	if currentType == nil {
		return nil
	}

	var out []Block
	for _, b := range rt.registry.blocks {
		if b.Index <= rt.lastIndex {
			continue
		}
		if !currentType.AssignableTo(b.InputType) {
			continue
		}
		if rt.fence != nil {
			if _, ok := rt.fence[b.Index]; !ok {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// selectBlock applies the explicit-override and capability-overlap rules
// to an already-filtered candidate set.
func (rt *Ritual) selectBlock(candidates []Block) (Block, bool) {
	if len(candidates) == 0 {
		return Block{}, false
	}

	tags := rt.tags.Current()

	for _, tag := range tags {
		idxStr, ok := strings.CutPrefix(tag, `to:#`)
		if !ok {
			continue
		}
		if idx, err := strconv.Atoi(idxStr); err == nil {
			for _, c := range candidates {
				if c.Index == idx {
					return c, true
				}
			}
		}
	}

	for _, tag := range tags {
		if strings.HasPrefix(tag, `to:#`) {
			continue
		}
		name, ok := strings.CutPrefix(tag, `to:`)
		if !ok {
			continue
		}
		for _, c := range candidates {
			if strings.EqualFold(c.Name, name) {
				return c, true
			}
		}
	}

	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	best := candidates[0]
	bestScore := overlapScore(best, tagSet)
	for _, c := range candidates[1:] {
		if score := overlapScore(c, tagSet); score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best, true
}

func overlapScore(b Block, tagSet map[string]struct{}) int {
	score := 0
	for _, capability := range b.Tags {
		if _, ok := tagSet[strings.ToLower(capability)]; ok {
			score++
		}
	}
	return score
}
