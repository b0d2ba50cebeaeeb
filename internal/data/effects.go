package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/skillsys/internal/attribute"
	"github.com/l1jgo/skillsys/internal/effect"
	"github.com/l1jgo/skillsys/internal/tags"
)

// EffectTable holds all effect definitions indexed by name.
type EffectTable struct {
	effects map[string]*effect.Definition
	curves  map[string]*effect.Curve
}

// Get returns a definition by name, or nil if not found.
func (t *EffectTable) Get(name string) *effect.Definition {
	return t.effects[name]
}

// Curve returns a level curve by name, or nil if not found.
func (t *EffectTable) Curve(name string) *effect.Curve {
	return t.curves[name]
}

// Count returns total loaded effects.
func (t *EffectTable) Count() int {
	return len(t.effects)
}

// Names returns all effect names, sorted.
func (t *EffectTable) Names() []string {
	names := make([]string, 0, len(t.effects))
	for n := range t.effects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// --- YAML loading ---

type curveEntry struct {
	Name string `yaml:"name"`
	Keys []struct {
		Level float64 `yaml:"level"`
		Value float64 `yaml:"value"`
	} `yaml:"keys"`
}

type levelEntry struct {
	Inherit   bool   `yaml:"inherit"`
	Attribute string `yaml:"attribute"`
	Snapshot  bool   `yaml:"snapshot"`
}

type modifierEntry struct {
	Attribute    string      `yaml:"attribute"`
	Op           string      `yaml:"op"`
	Type         string      `yaml:"type"`
	Facet        string      `yaml:"facet"`
	Magnitude    float64     `yaml:"magnitude"`
	Curve        string      `yaml:"curve"`
	Copy         string      `yaml:"copy"`
	TargetEffect string      `yaml:"target_effect"`
	Level        *levelEntry `yaml:"level"`
	OwnedTags    []string    `yaml:"owned_tags"`
	RequiredTags []string    `yaml:"required_tags"`
	IgnoreTags   []string    `yaml:"ignore_tags"`
	Callbacks    []string    `yaml:"callbacks"`
}

type stackingEntry struct {
	Policy    string `yaml:"policy"`
	Name      string `yaml:"name"`
	Extension string `yaml:"extension"`
}

type effectEntry struct {
	Name                   string          `yaml:"name"`
	Duration               float64         `yaml:"duration"` // -1 = infinite, 0 = instant
	DurationCurve          string          `yaml:"duration_curve"`
	Period                 float64         `yaml:"period"`
	PeriodCurve            string          `yaml:"period_curve"`
	Chance                 float64         `yaml:"chance"` // 0 = always
	ChanceCurve            string          `yaml:"chance_curve"`
	Level                  *levelEntry     `yaml:"level"`
	EffectTags             []string        `yaml:"effect_tags"`
	OwnedTags              []string        `yaml:"owned_tags"`
	ClearTags              []string        `yaml:"clear_tags"`
	EffectRequiredTags     []string        `yaml:"effect_required_tags"`
	EffectIgnoreTags       []string        `yaml:"effect_ignore_tags"`
	RequiredTargetTags     []string        `yaml:"required_target_tags"`
	RequiredInstigatorTags []string        `yaml:"required_instigator_tags"`
	TargetEffects          []string        `yaml:"target_effects"`
	Stacking               *stackingEntry  `yaml:"stacking"`
	Modifiers              []modifierEntry `yaml:"modifiers"`
}

type effectFile struct {
	Curves  []curveEntry  `yaml:"curves"`
	Effects []effectEntry `yaml:"effects"`
}

// LoadEffectTable loads curves and effect definitions from YAML. Callback
// and stacking extension IDs are resolved through reg.
func LoadEffectTable(path string, reg *effect.Registry) (*EffectTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read effects: %w", err)
	}
	var f effectFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse effects: %w", err)
	}
	if reg == nil {
		reg = effect.NewRegistry()
	}

	t := &EffectTable{
		effects: make(map[string]*effect.Definition, len(f.Effects)),
		curves:  make(map[string]*effect.Curve, len(f.Curves)),
	}
	for _, c := range f.Curves {
		if _, dup := t.curves[c.Name]; dup {
			return nil, fmt.Errorf("curve %q defined twice", c.Name)
		}
		keys := make([]effect.CurveKey, len(c.Keys))
		for i, k := range c.Keys {
			keys[i] = effect.CurveKey{Level: k.Level, Value: k.Value}
		}
		t.curves[c.Name] = effect.NewCurve(c.Name, keys)
	}

	// First pass builds every definition, the second resolves references
	// between them.
	for i := range f.Effects {
		e := &f.Effects[i]
		if e.Name == "" {
			return nil, fmt.Errorf("effect #%d has no name", i)
		}
		if _, dup := t.effects[e.Name]; dup {
			return nil, fmt.Errorf("effect %q defined twice", e.Name)
		}
		def, err := t.buildDefinition(e, reg)
		if err != nil {
			return nil, fmt.Errorf("effect %q: %w", e.Name, err)
		}
		t.effects[e.Name] = def
	}
	for i := range f.Effects {
		e := &f.Effects[i]
		if err := t.resolveTargets(e); err != nil {
			return nil, fmt.Errorf("effect %q: %w", e.Name, err)
		}
	}
	if err := t.checkCycles(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *EffectTable) buildDefinition(e *effectEntry, reg *effect.Registry) (*effect.Definition, error) {
	def := &effect.Definition{
		Name:                              e.Name,
		EffectTags:                        tags.NewSet(e.EffectTags...),
		OwnedTags:                         tags.NewSet(e.OwnedTags...),
		ClearTags:                         tags.NewSet(e.ClearTags...),
		EffectRequiredTags:                tags.NewSet(e.EffectRequiredTags...),
		EffectIgnoreTags:                  tags.NewSet(e.EffectIgnoreTags...),
		ApplicationRequiredTargetTags:     tags.NewSet(e.RequiredTargetTags...),
		ApplicationRequiredInstigatorTags: tags.NewSet(e.RequiredInstigatorTags...),
		Level:                             levelDef(e.Level),
	}
	var err error
	if def.Duration, err = t.scalable(e.Duration, e.DurationCurve); err != nil {
		return nil, fmt.Errorf("duration: %w", err)
	}
	if def.Period, err = t.scalable(e.Period, e.PeriodCurve); err != nil {
		return nil, fmt.Errorf("period: %w", err)
	}
	if def.ChanceToApply, err = t.scalable(e.Chance, e.ChanceCurve); err != nil {
		return nil, fmt.Errorf("chance: %w", err)
	}
	if e.Duration < effect.InfiniteDuration {
		return nil, fmt.Errorf("duration %v: want -1, 0 or a positive number", e.Duration)
	}
	if e.Period < 0 {
		return nil, fmt.Errorf("negative period %v", e.Period)
	}

	if s := e.Stacking; s != nil {
		if def.StackingPolicy, err = effect.ParseStackingPolicy(s.Policy); err != nil {
			return nil, err
		}
		def.StackedName = s.Name
		if s.Extension != "" {
			ext, ok := reg.Stacking(s.Extension)
			if !ok {
				return nil, fmt.Errorf("unknown stacking extension %q", s.Extension)
			}
			def.StackingExtension = ext
		}
	}

	def.Modifiers = make([]effect.ModifierInfo, len(e.Modifiers))
	for i := range e.Modifiers {
		m, err := t.buildModifier(&e.Modifiers[i], reg)
		if err != nil {
			return nil, fmt.Errorf("modifier #%d: %w", i, err)
		}
		def.Modifiers[i] = m
	}
	return def, nil
}

func (t *EffectTable) buildModifier(m *modifierEntry, reg *effect.Registry) (effect.ModifierInfo, error) {
	info := effect.ModifierInfo{
		Attribute:    attribute.Attribute(m.Attribute),
		Level:        levelDef(m.Level),
		OwnedTags:    tags.NewSet(m.OwnedTags...),
		RequiredTags: tags.NewSet(m.RequiredTags...),
		IgnoreTags:   tags.NewSet(m.IgnoreTags...),
	}
	if m.Level == nil {
		info.Level.InheritFromOwner = true
	}
	var err error
	if info.Op, err = effect.ParseModOp(m.Op); err != nil {
		return info, err
	}
	if info.Type, err = effect.ParseModTarget(m.Type); err != nil {
		return info, err
	}
	if info.Facet, err = effect.ParseFacet(m.Facet); err != nil {
		return info, err
	}
	if info.CopyPolicy, err = effect.ParseCopyPolicy(m.Copy); err != nil {
		return info, err
	}
	if info.Magnitude, err = t.scalable(m.Magnitude, m.Curve); err != nil {
		return info, err
	}
	if info.Facet == effect.FacetMagnitude && info.Attribute == "" {
		return info, fmt.Errorf("magnitude modifier needs an attribute")
	}
	if info.Facet == effect.FacetLinkedEffect && m.TargetEffect == "" {
		return info, fmt.Errorf("linked_effect modifier needs a target_effect")
	}
	for _, id := range m.Callbacks {
		ext, ok := reg.Extension(id)
		if !ok {
			return info, fmt.Errorf("unknown extension %q", id)
		}
		info.Callbacks = append(info.Callbacks, ext)
	}
	return info, nil
}

func (t *EffectTable) scalable(v float64, curve string) (effect.ScalableFloat, error) {
	if curve == "" {
		return effect.Constant(v), nil
	}
	c, ok := t.curves[curve]
	if !ok {
		return effect.ScalableFloat{}, fmt.Errorf("unknown curve %q", curve)
	}
	return effect.ScalableFloat{Value: v, Curve: c}, nil
}

func levelDef(e *levelEntry) effect.LevelDef {
	if e == nil {
		return effect.LevelDef{}
	}
	return effect.LevelDef{
		InheritFromOwner: e.Inherit,
		Attribute:        attribute.Attribute(e.Attribute),
		SnapshotOnInit:   e.Snapshot,
	}
}

func (t *EffectTable) resolveTargets(e *effectEntry) error {
	def := t.effects[e.Name]
	for _, name := range e.TargetEffects {
		target, ok := t.effects[name]
		if !ok {
			return fmt.Errorf("unknown target effect %q", name)
		}
		def.TargetEffects = append(def.TargetEffects, target)
	}
	for i := range e.Modifiers {
		name := e.Modifiers[i].TargetEffect
		if name == "" {
			continue
		}
		target, ok := t.effects[name]
		if !ok {
			return fmt.Errorf("modifier #%d: unknown target effect %q", i, name)
		}
		def.Modifiers[i].TargetEffect = target
	}
	return nil
}

// checkCycles rejects definitions that reach themselves through target
// effects; specs are built eagerly and would never finish.
func (t *EffectTable) checkCycles() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*effect.Definition]int, len(t.effects))
	var visit func(d *effect.Definition, path []string) error
	visit = func(d *effect.Definition, path []string) error {
		switch state[d] {
		case visiting:
			return fmt.Errorf("effect target cycle: %v", append(path, d.Name))
		case done:
			return nil
		}
		state[d] = visiting
		path = append(path, d.Name)
		for _, next := range referencedDefs(d) {
			if err := visit(next, path); err != nil {
				return err
			}
		}
		state[d] = done
		return nil
	}
	for _, name := range t.Names() {
		if err := visit(t.effects[name], nil); err != nil {
			return err
		}
	}
	return nil
}

func referencedDefs(d *effect.Definition) []*effect.Definition {
	out := append([]*effect.Definition(nil), d.TargetEffects...)
	for i := range d.Modifiers {
		if td := d.Modifiers[i].TargetEffect; td != nil {
			out = append(out, td)
		}
	}
	return out
}
