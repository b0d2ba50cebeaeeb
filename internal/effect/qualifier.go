package effect

// Qualifier narrows where a modifier may apply: the context type, an
// active effect to skip, and an active effect that is the only one allowed.
// Qualifiers are values; the With methods return modified copies.
type Qualifier struct {
	typ       ModTarget
	ignore    Handle
	exclusive Handle
}

// NewQualifier returns a qualifier for the Attribute context with no handle
// restrictions.
func NewQualifier() Qualifier { return Qualifier{typ: TargetAttribute} }

func (q Qualifier) WithType(t ModTarget) Qualifier {
	q.typ = t
	return q
}

func (q Qualifier) WithIgnoreHandle(h Handle) Qualifier {
	q.ignore = h
	return q
}

func (q Qualifier) WithExclusiveTarget(h Handle) Qualifier {
	q.exclusive = h
	return q
}

func (q Qualifier) Type() ModTarget         { return q.typ }
func (q Qualifier) IgnoreHandle() Handle    { return q.ignore }
func (q Qualifier) ExclusiveTarget() Handle { return q.exclusive }

// TestTarget reports whether h passes both handle restrictions.
func (q Qualifier) TestTarget(h Handle) bool {
	if q.exclusive.IsValid() && q.exclusive != h {
		return false
	}
	if q.ignore.IsValid() && q.ignore == h {
		return false
	}
	return true
}
