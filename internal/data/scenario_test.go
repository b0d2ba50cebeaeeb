package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/skillsys/internal/attribute"
	"github.com/l1jgo/skillsys/internal/tags"
)

const scenarioYAML = `
actors:
  - name: hero
    tags: [player, alive]
    attributes: {health: 100, level: 3}
  - name: goblin
    tags: [alive]
    attributes: {health: 40}
actions:
  - {at: 5, destroy: goblin}
  - {at: 0, effect: poison, instigator: goblin, target: hero}
  - {at: 0, effect: chill, target: hero, level: 2}
  - {at: 3, remove: chill, target: hero}
`

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(writeYAML(t, "scenario.yaml", scenarioYAML))
	require.NoError(t, err)

	require.Len(t, s.Actors, 2)
	hero := s.Actor("hero")
	require.NotNil(t, hero)
	assert.True(t, hero.Tags.HasAll(tags.NewSet("player", "alive")))
	assert.Equal(t, 100.0, hero.Attributes[attribute.Attribute("health")])
	assert.Nil(t, s.Actor("dragon"))

	require.Len(t, s.Actions, 4)
	assert.Equal(t, Action{At: 0, Kind: ActionApply, Effect: "poison", Instigator: "goblin", Target: "hero", Level: 1}, s.Actions[0])
	assert.Equal(t, Action{At: 0, Kind: ActionApply, Effect: "chill", Instigator: "hero", Target: "hero", Level: 2}, s.Actions[1])
	assert.Equal(t, ActionRemove, s.Actions[2].Kind)
	assert.Equal(t, "chill", s.Actions[2].Effect)
	assert.Equal(t, Action{At: 5, Kind: ActionDestroy, Target: "goblin"}, s.Actions[3])
	assert.Equal(t, "destroy", s.Actions[3].Kind.String())
}

func TestScenario_Validate(t *testing.T) {
	s, err := LoadScenario(writeYAML(t, "scenario.yaml", scenarioYAML))
	require.NoError(t, err)
	tbl, err := LoadEffectTable(writeYAML(t, "effects.yaml", effectsYAML), builtins(t))
	require.NoError(t, err)
	assert.NoError(t, s.Validate(tbl))

	s.Actions = append(s.Actions, Action{Kind: ActionApply, Effect: "meteor", Target: "hero"})
	assert.Error(t, s.Validate(tbl))
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown target": `
actors: [{name: hero}]
actions: [{at: 0, effect: poison, target: ogre}]`,
		"unknown instigator": `
actors: [{name: hero}]
actions: [{at: 0, effect: poison, target: hero, instigator: ogre}]`,
		"two kinds": `
actors: [{name: hero}]
actions: [{at: 0, effect: poison, destroy: hero}]`,
		"no kind": `
actors: [{name: hero}]
actions: [{at: 0, target: hero}]`,
		"negative time": `
actors: [{name: hero}]
actions: [{at: -1, destroy: hero}]`,
		"duplicate actor": `
actors: [{name: hero}, {name: hero}]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadScenario(writeYAML(t, "scenario.yaml", body))
			assert.Error(t, err)
		})
	}
}
