package effect

// ModifierSpec is the runtime instance of a ModifierInfo inside a spec.
type ModifierSpec struct {
	Info       *ModifierInfo
	Aggregator AggregatorRef
	// TargetEffectSpec is the spec a LinkedEffect modifier attaches.
	TargetEffectSpec *EffectSpec
}

// Handle is the active effect this modifier belongs to, if any.
func (m *ModifierSpec) Handle() Handle {
	if a := m.Aggregator.Get(); a != nil {
		return a.Handle()
	}
	return InvalidHandle
}

func (m *ModifierSpec) Evaluate() EvaluatedData {
	if a := m.Aggregator.Get(); a != nil {
		return a.Evaluate()
	}
	return EvaluatedData{}
}

// CanModifyInContext reports whether m applies in the context q describes
// and passes q's handle restrictions.
func (m *ModifierSpec) CanModifyInContext(q Qualifier) bool {
	return m.Info.Type == q.Type() && q.TestTarget(m.Handle())
}

// CanModifyModifier reports whether m may stack onto other. Only attribute
// modifiers of the same attribute are valid targets, which keeps modifier
// flow one-directional. Tag requirements of other must be met by m's
// owned tags, and other's handle must pass q as well.
func (m *ModifierSpec) CanModifyModifier(other *ModifierSpec, q Qualifier) bool {
	if !m.CanModifyInContext(q) || !q.TestTarget(other.Handle()) {
		return false
	}
	if other.Info.Type != TargetAttribute || other.Info.Attribute != m.Info.Attribute {
		return false
	}
	return m.Info.OwnedTags.HasAll(other.Info.RequiredTags) &&
		!m.Info.OwnedTags.HasAny(other.Info.IgnoreTags)
}

// ShouldApplyAsSnapshot decides how m is placed into another spec in the
// context of q. Outgoing modifiers are always snapshotted so later changes
// on the instigator do not follow the spec.
func (m *ModifierSpec) ShouldApplyAsSnapshot(q Qualifier) CopySemantics {
	if q.Type() == TargetOutgoing || m.Info.CopyPolicy == CopyAlwaysSnapshot {
		return Snapshot
	}
	return Link
}

// attributeSemantics is how m is wired into its target's attribute aggregator.
func (m *ModifierSpec) attributeSemantics() CopySemantics {
	if m.Info.CopyPolicy == CopyAlwaysSnapshot {
		return Snapshot
	}
	return Link
}

func (m *ModifierSpec) ApplyModTo(other *ModifierSpec, sem CopySemantics) {
	if a := other.Aggregator.Get(); a != nil {
		a.ApplyMod(m.Info.Op, m.Aggregator, sem)
	}
}

func (m *ModifierSpec) ExecuteModOn(other *ModifierSpec) {
	if a := other.Aggregator.Get(); a != nil {
		a.ExecuteMod(m.Info.Op, m.Evaluate())
	}
}
