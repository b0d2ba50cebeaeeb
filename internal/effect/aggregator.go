package effect

import (
	"fmt"
	"strings"

	"github.com/l1jgo/skillsys/internal/tags"
)

// ModifierData is the authored payload an aggregator starts from.
type ModifierData struct {
	Magnitude   ScalableFloat
	OwnedTags   tags.Set
	RequireTags tags.Set
	IgnoreTags  tags.Set
	// Callbacks run when this aggregator sits in another one's callback slot.
	Callbacks []Extension
}

// EvaluatedData is the result of evaluating an aggregator.
type EvaluatedData struct {
	Magnitude float64
	Tags      tags.Set
	Handle    Handle
	Valid     bool
}

// Aggregator computes a value from a base magnitude and stacked modifier
// references. Results are memoised until the aggregator, or anything it
// reads, is marked dirty.
//
// Aggregators are not safe for concurrent mutation; a container and every
// aggregator reachable from it belong to one simulation goroutine.
type Aggregator struct {
	base       ModifierData
	level      *LevelResolver
	mods       [numModOps][]AggregatorRef
	dependants []AggregatorRef
	handle     Handle
	onDirty    func(*Aggregator)
	unwatch    func()

	cached EvaluatedData
	dirty  bool
	owners int
	dead   bool
}

// NewAggregator creates an unowned aggregator. Wrap it with NewAggregatorRef
// to keep it alive. A nil level evaluates at level 1.
func NewAggregator(base ModifierData, level *LevelResolver) *Aggregator {
	if level == nil {
		level = NewConstantLevel(1)
	}
	a := &Aggregator{base: base, level: level, dirty: true}
	if level.IsDynamic() {
		a.unwatch = level.Watch(a.MarkDirty)
	}
	return a
}

func (a *Aggregator) Handle() Handle     { return a.handle }
func (a *Aggregator) SetHandle(h Handle) { a.handle = h }
func (a *Aggregator) Base() ModifierData { return a.base }
func (a *Aggregator) Level() float64     { return a.level.Level() }
func (a *Aggregator) IsDirty() bool      { return a.dirty }
func (a *Aggregator) IsAlive() bool      { return !a.dead }

// SetOnDirty installs a hook that runs every time the aggregator is invalidated.
func (a *Aggregator) SetOnDirty(fn func(*Aggregator)) { a.onDirty = fn }

func (a *Aggregator) SetBase(base ModifierData) {
	a.base = base
	a.MarkDirty()
}

// SnapshotLevel freezes this aggregator's level and stops following the source.
func (a *Aggregator) SnapshotLevel() {
	a.level.Snapshot()
	if a.unwatch != nil {
		a.unwatch()
		a.unwatch = nil
	}
}

// NumMods counts the reachable entries stored under op.
func (a *Aggregator) NumMods(op ModOp) int {
	n := 0
	for _, r := range a.mods[op] {
		if r.Get() != nil {
			n++
		}
	}
	return n
}

// NumDependants counts live aggregators that read this one.
func (a *Aggregator) NumDependants() int {
	n := 0
	for _, d := range a.dependants {
		if d.Get() != nil {
			n++
		}
	}
	return n
}

// Evaluate returns the aggregated value:
// (base + Σadd) × Πmul ÷ Πdiv, then the last override, then callbacks.
func (a *Aggregator) Evaluate() EvaluatedData {
	if a.dead {
		return EvaluatedData{}
	}
	if !a.dirty {
		return a.cached
	}

	level := a.level.Level()
	owned := a.base.OwnedTags
	each := func(op ModOp, fn func(EvaluatedData)) {
		for _, r := range a.mods[op] {
			t := r.Get()
			if t == nil {
				continue
			}
			ev := t.Evaluate()
			owned = owned.Union(ev.Tags)
			fn(ev)
		}
	}

	sum := a.base.Magnitude.At(level)
	each(OpAdditive, func(ev EvaluatedData) { sum += ev.Magnitude })
	product := 1.0
	each(OpMultiplicative, func(ev EvaluatedData) { product *= ev.Magnitude })
	divisor := 1.0
	each(OpDivision, func(ev EvaluatedData) {
		if ev.Magnitude != 0 {
			divisor *= ev.Magnitude
		}
	})
	value := sum * product / divisor
	each(OpOverride, func(ev EvaluatedData) { value = ev.Magnitude })

	data := ModCallbackData{Value: value, Tags: owned, Level: level}
	a.runCallbacks(&data)

	a.cached = EvaluatedData{Magnitude: data.Value, Tags: data.Tags, Handle: a.handle, Valid: true}
	a.dirty = false
	return a.cached
}

type callbackEntry struct {
	exts []Extension
	ev   EvaluatedData
}

// runCallbacks gives every reachable callback entry a pre pass, then a post
// pass, in insertion order.
func (a *Aggregator) runCallbacks(data *ModCallbackData) {
	var entries []callbackEntry
	for _, r := range a.mods[OpCallback] {
		t := r.Get()
		if t == nil {
			continue
		}
		ev := t.Evaluate()
		data.Tags = data.Tags.Union(ev.Tags)
		if len(t.base.Callbacks) > 0 {
			entries = append(entries, callbackEntry{exts: t.base.Callbacks, ev: ev})
		}
	}
	for _, e := range entries {
		data.Magnitude, data.Handle = e.ev.Magnitude, e.ev.Handle
		for _, ext := range e.exts {
			ext.PreEvaluate(data)
		}
	}
	for _, e := range entries {
		data.Magnitude, data.Handle = e.ev.Magnitude, e.ev.Handle
		for _, ext := range e.exts {
			ext.PostEvaluate(data)
		}
	}
}

// ApplyMod stores the aggregator behind ref under op. With Snapshot an
// independent owned copy is stored; with Link an observing reference is
// stored and this aggregator is invalidated whenever the target changes.
// Linking something that already reads this aggregator panics with
// ErrCyclicDependency.
func (a *Aggregator) ApplyMod(op ModOp, ref AggregatorRef, sem CopySemantics) {
	src := ref.Get()
	if src == nil || a.dead {
		return
	}
	var entry AggregatorRef
	if sem == Snapshot {
		entry = NewAggregatorRef(src.deepCopy(true, true))
	} else {
		if src == a || src.readsFrom(a) {
			panic(fmt.Errorf("%w: %s linked into %s", ErrCyclicDependency, src, a))
		}
		entry = src.soft()
	}
	a.attach(op, entry)
	a.MarkDirty()
}

// ExecuteMod bakes ev into the base value permanently.
func (a *Aggregator) ExecuteMod(op ModOp, ev EvaluatedData) {
	if a.dead || !ev.Valid {
		return
	}
	cur := a.base.Magnitude.At(a.level.Level())
	switch op {
	case OpAdditive:
		cur += ev.Magnitude
	case OpMultiplicative:
		cur *= ev.Magnitude
	case OpDivision:
		if ev.Magnitude != 0 {
			cur /= ev.Magnitude
		}
	case OpOverride:
		cur = ev.Magnitude
	}
	a.base.Magnitude = Constant(cur)
	a.base.OwnedTags = a.base.OwnedTags.Union(ev.Tags)
	a.MarkDirty()
}

// RemoveModsFrom drops every entry that belongs to the active effect h,
// along with entries whose target is gone. It returns how many entries of h
// were removed.
func (a *Aggregator) RemoveModsFrom(h Handle) int {
	if !h.IsValid() || a.dead {
		return 0
	}
	removed := 0
	for op := range a.mods {
		kept := a.mods[op][:0]
		for _, r := range a.mods[op] {
			t := r.Get()
			if t != nil && t.handle != h {
				kept = append(kept, r)
				continue
			}
			if t != nil {
				t.dropDependant(a)
				removed++
			}
			r.Release()
		}
		clear(a.mods[op][len(kept):])
		a.mods[op] = kept
	}
	if removed > 0 {
		a.MarkDirty()
	}
	return removed
}

// MarkDirty invalidates this aggregator and, depth first, everything that
// reads it. Each aggregator is visited once per call.
func (a *Aggregator) MarkDirty() {
	a.markDirty(make(map[*Aggregator]struct{}))
}

func (a *Aggregator) markDirty(seen map[*Aggregator]struct{}) {
	if a.dead {
		return
	}
	if _, ok := seen[a]; ok {
		return
	}
	seen[a] = struct{}{}
	a.dirty = true
	if a.onDirty != nil {
		a.onDirty(a)
	}

	live := a.dependants[:0]
	for _, d := range a.dependants {
		if d.Get() != nil {
			live = append(live, d)
		}
	}
	clear(a.dependants[len(live):])
	a.dependants = live
	for _, d := range live {
		d.agg.markDirty(seen)
	}
}

func (a *Aggregator) attach(op ModOp, entry AggregatorRef) {
	a.mods[op] = append(a.mods[op], entry)
	t := entry.Get()
	t.dependants = append(t.dependants, a.soft())
}

func (a *Aggregator) dropDependant(d *Aggregator) {
	for i, r := range a.dependants {
		if r.agg == d {
			a.dependants = append(a.dependants[:i], a.dependants[i+1:]...)
			return
		}
	}
}

// readsFrom reports whether target is reachable through a's entries.
func (a *Aggregator) readsFrom(target *Aggregator) bool {
	seen := make(map[*Aggregator]struct{})
	var walk func(*Aggregator) bool
	walk = func(n *Aggregator) bool {
		if n == target {
			return true
		}
		if _, ok := seen[n]; ok {
			return false
		}
		seen[n] = struct{}{}
		for op := range n.mods {
			for _, r := range n.mods[op] {
				if t := r.Get(); t != nil && walk(t) {
					return true
				}
			}
		}
		return false
	}
	return walk(a)
}

func (a *Aggregator) soft() AggregatorRef {
	return AggregatorRef{agg: a, kind: refSoft}
}

// shallowCopy copies the base and level and shares the entries. Shared
// owned entries gain an owner.
func (a *Aggregator) shallowCopy() *Aggregator {
	cp := NewAggregator(a.base, a.level.clone())
	cp.handle = a.handle
	for op := range a.mods {
		for _, r := range a.mods[op] {
			t := r.Get()
			if t == nil {
				continue
			}
			entry := t.soft()
			if r.kind == refHard {
				entry = NewAggregatorRef(t)
			}
			cp.attach(ModOp(op), entry)
		}
	}
	return cp
}

// deepCopy clones the whole entry chain into owned copies, each with its own
// level resolver. Dead observers are dropped. Handles are cleared unless
// keepHandle is set; freeze fixes every level at its current value.
func (a *Aggregator) deepCopy(keepHandle, freeze bool) *Aggregator {
	level := a.level.clone()
	if freeze {
		level = a.level.frozen()
	}
	cp := NewAggregator(a.base, level)
	if keepHandle {
		cp.handle = a.handle
	}
	for op := range a.mods {
		for _, r := range a.mods[op] {
			if t := r.Get(); t != nil {
				cp.attach(ModOp(op), NewAggregatorRef(t.deepCopy(keepHandle, freeze)))
			}
		}
	}
	return cp
}

// destroy runs when the last owner lets go.
func (a *Aggregator) destroy() {
	if a.dead {
		return
	}
	a.dead = true
	if a.unwatch != nil {
		a.unwatch()
		a.unwatch = nil
	}
	for _, d := range a.dependants {
		if t := d.Get(); t != nil {
			t.MarkDirty()
		}
	}
	a.dependants = nil
	for op := range a.mods {
		for i := range a.mods[op] {
			if t := a.mods[op][i].Get(); t != nil {
				t.dropDependant(a)
			}
			a.mods[op][i].Release()
		}
		a.mods[op] = nil
	}
	a.onDirty = nil
	a.cached = EvaluatedData{}
}

func (a *Aggregator) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "agg(h=%d base=%s", a.handle, a.base.Magnitude)
	for op := range a.mods {
		if n := a.NumMods(ModOp(op)); n > 0 {
			fmt.Fprintf(&b, " %s=%d", ModOp(op), n)
		}
	}
	b.WriteByte(')')
	return b.String()
}
