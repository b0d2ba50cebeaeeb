package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/skillsys/internal/attribute"
	"github.com/l1jgo/skillsys/internal/tags"
)

// Actor is an entity the simulation spawns at start.
type Actor struct {
	Name       string
	Tags       tags.Set
	Attributes map[attribute.Attribute]float64
}

// ActionKind says what a scheduled action does.
type ActionKind int

const (
	ActionApply ActionKind = iota
	ActionRemove
	ActionDestroy
)

func (k ActionKind) String() string {
	switch k {
	case ActionRemove:
		return "remove"
	case ActionDestroy:
		return "destroy"
	}
	return "apply"
}

// Action is one scheduled scenario step.
type Action struct {
	At         float64 // seconds since start
	Kind       ActionKind
	Effect     string
	Instigator string
	Target     string
	Level      float64
}

// Scenario is the list of actors and their time-ordered actions.
type Scenario struct {
	Actors  []Actor
	Actions []Action
}

// Actor returns an actor by name, or nil if not found.
func (s *Scenario) Actor(name string) *Actor {
	for i := range s.Actors {
		if s.Actors[i].Name == name {
			return &s.Actors[i]
		}
	}
	return nil
}

// Validate checks that every effect an action names exists in t.
func (s *Scenario) Validate(t *EffectTable) error {
	for i, a := range s.Actions {
		if a.Kind == ActionDestroy {
			continue
		}
		if t.Get(a.Effect) == nil {
			return fmt.Errorf("action #%d: unknown effect %q", i, a.Effect)
		}
	}
	return nil
}

// --- YAML loading ---

type actorEntry struct {
	Name       string             `yaml:"name"`
	Tags       []string           `yaml:"tags"`
	Attributes map[string]float64 `yaml:"attributes"`
}

type actionEntry struct {
	At         float64 `yaml:"at"`
	Effect     string  `yaml:"effect"`
	Remove     string  `yaml:"remove"` // effect name whose instances are removed
	Instigator string  `yaml:"instigator"`
	Target     string  `yaml:"target"`
	Level      float64 `yaml:"level"`
	Destroy    string  `yaml:"destroy"`
}

type scenarioFile struct {
	Actors  []actorEntry  `yaml:"actors"`
	Actions []actionEntry `yaml:"actions"`
}

// LoadScenario loads a scenario from YAML. Actions are returned ordered by
// time; actions at the same time keep file order.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var f scenarioFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	s := &Scenario{
		Actors:  make([]Actor, 0, len(f.Actors)),
		Actions: make([]Action, 0, len(f.Actions)),
	}
	for _, e := range f.Actors {
		if e.Name == "" {
			return nil, fmt.Errorf("actor without a name")
		}
		if s.Actor(e.Name) != nil {
			return nil, fmt.Errorf("actor %q defined twice", e.Name)
		}
		attrs := make(map[attribute.Attribute]float64, len(e.Attributes))
		for k, v := range e.Attributes {
			attrs[attribute.Attribute(k)] = v
		}
		s.Actors = append(s.Actors, Actor{Name: e.Name, Tags: tags.NewSet(e.Tags...), Attributes: attrs})
	}

	for i, e := range f.Actions {
		a, err := s.buildAction(e)
		if err != nil {
			return nil, fmt.Errorf("action #%d: %w", i, err)
		}
		s.Actions = append(s.Actions, a)
	}
	sort.SliceStable(s.Actions, func(i, j int) bool { return s.Actions[i].At < s.Actions[j].At })
	return s, nil
}

func (s *Scenario) buildAction(e actionEntry) (Action, error) {
	if e.At < 0 {
		return Action{}, fmt.Errorf("negative time %v", e.At)
	}
	a := Action{At: e.At, Instigator: e.Instigator, Target: e.Target, Level: e.Level}
	set := 0
	if e.Effect != "" {
		a.Kind, a.Effect = ActionApply, e.Effect
		set++
	}
	if e.Remove != "" {
		a.Kind, a.Effect = ActionRemove, e.Remove
		set++
	}
	if e.Destroy != "" {
		a.Kind, a.Target = ActionDestroy, e.Destroy
		set++
	}
	if set != 1 {
		return Action{}, fmt.Errorf("want exactly one of effect, remove or destroy")
	}

	if a.Kind == ActionApply {
		if a.Level == 0 {
			a.Level = 1
		}
		if a.Instigator == "" {
			a.Instigator = a.Target
		}
		if s.Actor(a.Instigator) == nil {
			return Action{}, fmt.Errorf("unknown instigator %q", a.Instigator)
		}
	}
	if s.Actor(a.Target) == nil {
		return Action{}, fmt.Errorf("unknown target %q", a.Target)
	}
	return a, nil
}
