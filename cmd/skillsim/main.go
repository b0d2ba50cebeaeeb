package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/skillsys/internal/config"
	"github.com/l1jgo/skillsys/internal/core/event"
	coresys "github.com/l1jgo/skillsys/internal/core/system"
	"github.com/l1jgo/skillsys/internal/data"
	"github.com/l1jgo/skillsys/internal/effect"
	"github.com/l1jgo/skillsys/internal/scripting"
	"github.com/l1jgo/skillsys/internal/system"
	"github.com/l1jgo/skillsys/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m          skillsim  effect simulator       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

// ── Simulation ────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/skillsim.toml"
	if p := os.Getenv("SKILLSYS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	// 3. Extensions: built-ins first, then Lua scripts
	printSection("Extensions")
	reg := effect.NewRegistry()
	if err := effect.RegisterBuiltins(reg); err != nil {
		return fmt.Errorf("builtin extensions: %w", err)
	}
	exts, stacking := reg.IDs()
	printStat("built-in", len(exts)+len(stacking))

	if cfg.Scripting.Enabled {
		lua, err := scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer lua.Close()
		n, err := lua.Register(reg)
		if err != nil {
			return fmt.Errorf("lua register: %w", err)
		}
		printStat("lua", n)
	}
	fmt.Println()

	// 4. Load data
	printSection("Data")
	effects, err := data.LoadEffectTable(cfg.Data.Effects, reg)
	if err != nil {
		return fmt.Errorf("load effects: %w", err)
	}
	printStat("effects", effects.Count())

	scenario, err := data.LoadScenario(cfg.Data.Scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	if err := scenario.Validate(effects); err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	printStat("actors", len(scenario.Actors))
	printStat("actions", len(scenario.Actions))
	fmt.Println()

	// 5. World and systems
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ws := world.NewState(event.NewBus(), rand.New(rand.NewSource(seed)), world.ContainerConfig{
		TimeEpsilon:    cfg.Effects.TimeEpsilon,
		MaxFlushPasses: cfg.Effects.MaxFlushPasses,
	}, log)

	scenarioSys, err := system.NewScenarioSystem(ws, effects, scenario, cfg.Effects.TimeEpsilon, log)
	if err != nil {
		return err
	}
	report := system.NewReportSystem(ws, cfg.Simulation.ReportEvery, log)

	runner := coresys.NewRunner()
	runner.Register(scenarioSys)
	runner.Register(system.NewEventDispatchSystem(ws.Bus))
	runner.Register(system.NewEffectTickSystem(ws))
	runner.Register(report)
	runner.Register(system.NewCleanupSystem(ws.ECS))

	printOK(fmt.Sprintf("seed %d", seed))
	printOK(fmt.Sprintf("tick %s", cfg.Simulation.TickRate))
	fmt.Println()

	// 6. Loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	finished := func() bool {
		if cfg.Simulation.Ticks > 0 {
			return runner.Ticks() >= uint64(cfg.Simulation.Ticks)
		}
		// without a tick budget a batch run ends once nothing is left to do
		return !cfg.Simulation.Realtime && scenarioSys.Done() && ws.EffectCount() == 0
	}

	var tickC <-chan time.Time
	if cfg.Simulation.Realtime {
		ticker := time.NewTicker(cfg.Simulation.TickRate)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for !finished() {
		if tickC != nil {
			select {
			case <-tickC:
			case sig := <-shutdownCh:
				log.Info("shutdown signal", zap.String("signal", sig.String()))
				return summarize(report, runner, log)
			}
		} else {
			select {
			case sig := <-shutdownCh:
				log.Info("shutdown signal", zap.String("signal", sig.String()))
				return summarize(report, runner, log)
			default:
			}
		}
		runner.Tick(cfg.Simulation.TickRate)
	}
	return summarize(report, runner, log)
}

func summarize(report *system.ReportSystem, runner *coresys.Runner, log *zap.Logger) error {
	report.Report()
	st := report.Stats()
	log.Info("simulation finished",
		zap.Uint64("ticks", runner.Ticks()),
		zap.Int("applied", st.Applied),
		zap.Int("executed", st.Executed),
		zap.Int("removed", st.Removed),
		zap.Int("expired", st.Expired),
		zap.Int("stacking_changes", st.StackingFlips))
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
