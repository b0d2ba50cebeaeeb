package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Data       DataConfig       `toml:"data"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Effects    EffectsConfig    `toml:"effects"`
	Logging    LoggingConfig    `toml:"logging"`
}

type SimulationConfig struct {
	TickRate    time.Duration `toml:"tick_rate"`
	Ticks       int           `toml:"ticks"`        // 0 = run until interrupted
	Realtime    bool          `toml:"realtime"`     // false = run ticks back to back
	Seed        int64         `toml:"seed"`         // 0 = seed from the clock
	ReportEvery int           `toml:"report_every"` // ticks between attribute reports, 0 = off
}

type DataConfig struct {
	Effects  string `toml:"effects"`
	Scenario string `toml:"scenario"`
}

type ScriptingConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type EffectsConfig struct {
	TimeEpsilon    float64 `toml:"time_epsilon"`     // seconds
	MaxFlushPasses int     `toml:"max_flush_passes"` // per container flush
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Simulation.TickRate <= 0 {
		return fmt.Errorf("simulation.tick_rate must be positive, got %s", c.Simulation.TickRate)
	}
	if c.Simulation.Ticks < 0 {
		return fmt.Errorf("simulation.ticks must not be negative")
	}
	if c.Effects.TimeEpsilon < 0 {
		return fmt.Errorf("effects.time_epsilon must not be negative")
	}
	if c.Data.Effects == "" {
		return fmt.Errorf("data.effects is required")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Simulation: SimulationConfig{
			TickRate:    100 * time.Millisecond,
			Ticks:       600,
			Realtime:    false,
			ReportEvery: 50,
		},
		Data: DataConfig{
			Effects:  "data/yaml/effects.yaml",
			Scenario: "data/yaml/scenario.yaml",
		},
		Scripting: ScriptingConfig{
			Enabled: true,
			Dir:     "scripts",
		},
		Effects: EffectsConfig{
			TimeEpsilon:    1e-6,
			MaxFlushPasses: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
