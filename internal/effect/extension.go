package effect

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/l1jgo/skillsys/internal/tags"
)

// ModCallbackData is handed to extensions while an aggregator evaluates.
// Value and Tags are the running result and may be changed in place.
type ModCallbackData struct {
	Value float64
	Tags  tags.Set
	Level float64
	// Magnitude and Handle describe the callback entry being run.
	Magnitude float64
	Handle    Handle
}

// Extension hooks custom logic into aggregator evaluation.
type Extension interface {
	ID() string
	PreEvaluate(d *ModCallbackData)
	PostEvaluate(d *ModCallbackData)
}

// StackingCandidate describes one member of a stacking group.
type StackingCandidate struct {
	Handle         Handle
	Effect         string
	Magnitude      float64
	StartWorldTime float64
}

// StackingExtension picks the contributing member of a Callback stacking
// group. Returning a handle outside the candidates falls back to Replaces.
type StackingExtension interface {
	ID() string
	SelectStackingWinner(candidates []StackingCandidate) Handle
}

// Registry resolves extensions by their stable IDs. Data loaders bind IDs
// found in effect definitions through it.
type Registry struct {
	mu         sync.RWMutex
	extensions map[string]Extension
	stacking   map[string]StackingExtension
}

func NewRegistry() *Registry {
	return &Registry{
		extensions: make(map[string]Extension),
		stacking:   make(map[string]StackingExtension),
	}
}

func (r *Registry) RegisterExtension(ext Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.extensions[ext.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateExtension, ext.ID())
	}
	r.extensions[ext.ID()] = ext
	return nil
}

func (r *Registry) RegisterStacking(ext StackingExtension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stacking[ext.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateExtension, ext.ID())
	}
	r.stacking[ext.ID()] = ext
	return nil
}

func (r *Registry) Extension(id string) (Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.extensions[id]
	return ext, ok
}

func (r *Registry) Stacking(id string) (StackingExtension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.stacking[id]
	return ext, ok
}

// IDs lists registered extension and stacking IDs, sorted.
func (r *Registry) IDs() (extensions, stacking []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.extensions {
		extensions = append(extensions, id)
	}
	for id := range r.stacking {
		stacking = append(stacking, id)
	}
	sort.Strings(extensions)
	sort.Strings(stacking)
	return extensions, stacking
}

// RegisterBuiltins adds the extensions implemented in Go.
func RegisterBuiltins(r *Registry) error {
	for _, ext := range []Extension{
		ClampExtension{Name: "clamp_non_negative", Min: 0, Max: math.Inf(1)},
		ClampExtension{Name: "clamp_percent", Min: 0, Max: 100},
	} {
		if err := r.RegisterExtension(ext); err != nil {
			return err
		}
	}
	return r.RegisterStacking(OldestWins{})
}

// ClampExtension bounds the final value after all other hooks ran.
type ClampExtension struct {
	Name     string
	Min, Max float64
}

func (c ClampExtension) ID() string { return c.Name }

func (c ClampExtension) PreEvaluate(*ModCallbackData) {}

func (c ClampExtension) PostEvaluate(d *ModCallbackData) {
	d.Value = math.Max(c.Min, math.Min(c.Max, d.Value))
}

// OldestWins keeps the earliest applied member of a stacking group.
type OldestWins struct{}

func (OldestWins) ID() string { return "oldest_wins" }

func (OldestWins) SelectStackingWinner(cs []StackingCandidate) Handle {
	if len(cs) == 0 {
		return InvalidHandle
	}
	best := slices.MinFunc(cs, func(a, b StackingCandidate) int {
		switch {
		case a.StartWorldTime != b.StartWorldTime:
			if a.StartWorldTime < b.StartWorldTime {
				return -1
			}
			return 1
		case a.Handle < b.Handle:
			return -1
		case a.Handle > b.Handle:
			return 1
		}
		return 0
	})
	return best.Handle
}
