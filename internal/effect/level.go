package effect

import (
	"go.uber.org/zap"

	"github.com/l1jgo/skillsys/internal/attribute"
)

// LevelDef is the authored description of where a level comes from.
type LevelDef struct {
	// InheritFromOwner makes a modifier share its spec's level.
	InheritFromOwner bool
	// Attribute reads the level off the instigator's attribute.
	Attribute attribute.Attribute
	// SnapshotOnInit freezes an attribute-driven level at creation.
	SnapshotOnInit bool
}

// LevelResolver yields the level a magnitude is evaluated at. It is either
// a constant or a live read of an attribute on a weakly held source. A
// source that has gone away leaves the last read value in place.
type LevelResolver struct {
	constant    float64
	hasConstant bool
	attr        attribute.Attribute
	source      attribute.Source
	cached      float64
	staleLogged bool
	log         *zap.Logger
}

func NewConstantLevel(level float64) *LevelResolver {
	return &LevelResolver{constant: level, hasConstant: true, cached: level, log: zap.NewNop()}
}

// NewLevelResolver builds a resolver for def. Without an attribute or a
// source the level is the constant fallback.
func NewLevelResolver(fallback float64, def LevelDef, source attribute.Source, log *zap.Logger) *LevelResolver {
	if log == nil {
		log = zap.NewNop()
	}
	if def.Attribute == "" || source == nil {
		l := NewConstantLevel(fallback)
		l.log = log
		return l
	}
	l := &LevelResolver{attr: def.Attribute, source: source, cached: fallback, log: log}
	if def.SnapshotOnInit {
		l.Snapshot()
	}
	return l
}

func (l *LevelResolver) IsValid() bool   { return l.hasConstant || l.attr != "" }
func (l *LevelResolver) IsDynamic() bool { return !l.hasConstant && l.attr != "" }

func (l *LevelResolver) Level() float64 {
	if l.hasConstant {
		return l.constant
	}
	if l.source != nil {
		if v, ok := l.source.Value(l.attr); ok {
			l.cached = v
			return v
		}
	}
	if !l.staleLogged {
		l.staleLogged = true
		l.log.Debug("level source gone, using cached level",
			zap.String("attribute", string(l.attr)),
			zap.Float64("level", l.cached))
	}
	return l.cached
}

// Snapshot freezes the current level. There is no way back to dynamic.
func (l *LevelResolver) Snapshot() {
	if l.hasConstant {
		return
	}
	l.constant = l.Level()
	l.hasConstant = true
	l.source = nil
}

// clone returns an independent resolver reading the same source.
func (l *LevelResolver) clone() *LevelResolver {
	cp := *l
	return &cp
}

// frozen returns an independent constant resolver at the current level.
func (l *LevelResolver) frozen() *LevelResolver {
	cp := l.clone()
	cp.Snapshot()
	return cp
}

// Watch calls fn whenever the level attribute changes on the source.
func (l *LevelResolver) Watch(fn func()) (cancel func()) {
	if !l.IsDynamic() || l.source == nil {
		return func() {}
	}
	return l.source.Watch(l.attr, func(attribute.Attribute) { fn() })
}

// forModifier returns the resolver a modifier defined by def should use.
// Inheriting (or unspecified) modifiers share the spec resolver; others read
// their own attribute off the same source.
func (l *LevelResolver) forModifier(def LevelDef, source attribute.Source) *LevelResolver {
	if def.InheritFromOwner || def.Attribute == "" {
		return l
	}
	return NewLevelResolver(l.cached, def, source, l.log)
}
