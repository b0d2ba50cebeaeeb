package effect

type refKind uint8

const (
	refNone refKind = iota
	refHard
	refSoft
)

// AggregatorRef points at an aggregator either as an owner (hard) or as an
// observer (soft). An aggregator lives while it has at least one hard
// reference; soft references to a released aggregator resolve to nil.
// The zero value is an empty reference.
type AggregatorRef struct {
	agg  *Aggregator
	kind refKind
}

// NewAggregatorRef takes ownership of a.
func NewAggregatorRef(a *Aggregator) AggregatorRef {
	if a == nil || a.dead {
		return AggregatorRef{}
	}
	a.owners++
	return AggregatorRef{agg: a, kind: refHard}
}

// Get returns the target, or nil when the reference is empty or the target
// has been released.
func (r AggregatorRef) Get() *Aggregator {
	if r.agg == nil || r.agg.dead {
		return nil
	}
	return r.agg
}

func (r AggregatorRef) IsValid() bool { return r.Get() != nil }
func (r AggregatorRef) IsHard() bool  { return r.kind == refHard && r.Get() != nil }
func (r AggregatorRef) IsSoft() bool  { return r.kind == refSoft }

// Soft returns an observing reference to the same target.
func (r AggregatorRef) Soft() AggregatorRef {
	if t := r.Get(); t != nil {
		return t.soft()
	}
	return AggregatorRef{}
}

// MakeHard upgrades an observer to an owner. It reports false when the
// target is already gone.
func (r *AggregatorRef) MakeHard() bool {
	t := r.Get()
	if t == nil {
		*r = AggregatorRef{}
		return false
	}
	if r.kind != refHard {
		t.owners++
		r.kind = refHard
	}
	return true
}

// MakeSoft downgrades an owner to an observer. Downgrading the last owner
// releases the target.
func (r *AggregatorRef) MakeSoft() {
	if r.kind != refHard || r.agg == nil {
		return
	}
	r.kind = refSoft
	r.agg.release()
}

// Release drops this reference. Releasing the last owner destroys the target.
func (r *AggregatorRef) Release() {
	if r.kind == refHard && r.agg != nil {
		r.agg.release()
	}
	*r = AggregatorRef{}
}

// MakeUnique replaces the target with an owned shallow copy: the base is
// copied and the entries are shared.
func (r *AggregatorRef) MakeUnique() {
	t := r.Get()
	if t == nil {
		return
	}
	cp := NewAggregatorRef(t.shallowCopy())
	r.Release()
	*r = cp
}

// MakeUniqueDeep replaces the target with an owned copy of its whole entry
// chain that shares nothing mutable with the original.
func (r *AggregatorRef) MakeUniqueDeep() {
	r.makeUniqueDeep(true)
}

func (r *AggregatorRef) makeUniqueDeep(keepHandle bool) {
	t := r.Get()
	if t == nil {
		return
	}
	cp := NewAggregatorRef(t.deepCopy(keepHandle, false))
	r.Release()
	*r = cp
}

func (a *Aggregator) release() {
	if a.dead {
		return
	}
	a.owners--
	if a.owners <= 0 {
		a.destroy()
	}
}
