package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/worldcore/internal/component"
	"github.com/l1jgo/worldcore/internal/config"
	"github.com/l1jgo/worldcore/internal/core/event"
	"github.com/l1jgo/worldcore/internal/core/resource"
	"github.com/l1jgo/worldcore/internal/core/system"
	"github.com/l1jgo/worldcore/internal/core/world"
	"github.com/l1jgo/worldcore/internal/persist"
	"github.com/l1jgo/worldcore/internal/scene"
	"github.com/l1jgo/worldcore/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(worldName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             worldsim  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mworld:\033[0m %s\n\n", worldName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/worldsim.toml"
	if p := os.Getenv("WORLDSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.World.Name)

	if opt := profileMode(cfg.Profiling.Mode); opt != nil {
		defer profile.Start(opt, profile.ProfilePath(cfg.Profiling.Path), profile.NoShutdownHook, profile.Quiet).Stop()
		log.Info("profiling enabled", zap.String("mode", cfg.Profiling.Mode), zap.String("path", cfg.Profiling.Path))
	}

	// 3. Snapshot storage
	var snapshots *persist.SnapshotRepo
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(ctx, db.Pool, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		snapshots = persist.NewSnapshotRepo(db, cfg.Snapshot.Keep)
		fmt.Println()
	}

	// 4. Resources and scripting
	printSection("runtime")
	resources := resource.NewManager(resource.FileLoader{Root: cfg.Resources.Root}, log.Named("resource"))
	defer resources.Close()

	engine := scripting.NewEngine(resources, log.Named("lua"))
	defer engine.Close()
	if err := engine.LoadDir(cfg.Resources.ScriptsDir); err != nil {
		return fmt.Errorf("lua scripts: %w", err)
	}

	reg := world.NewRegistry()
	if err := component.Register(reg, cfg.World.TickRate); err != nil {
		return err
	}
	if _, err := scripting.Register(reg, engine, cfg.World.TickRate); err != nil {
		return fmt.Errorf("register script: %w", err)
	}
	printStat("component types", reg.Len())

	pool := system.NewWorkerPool(cfg.World.Workers)
	defer pool.Close()
	printStat("async workers", pool.Size())

	w := world.New(cfg.World.Name, reg, pool, log)
	event.Subscribe(w.Events(), func(e event.ObjectDeleted) {
		log.Debug("object deleted", zap.String("name", e.Name), zap.Stringer("handle", e.Object))
	})
	fmt.Println()

	// 5. Populate the world
	printSection("world")
	restored, err := restore(w, snapshots, cfg.Snapshot.RestoreOn, log)
	if err != nil {
		return err
	}
	if !restored && cfg.World.Scene != "" {
		sc, err := scene.Load(cfg.World.Scene)
		if err != nil {
			return err
		}
		if _, err := sc.Instantiate(w, log); err != nil {
			return fmt.Errorf("instantiate scene: %w", err)
		}
		printOK(fmt.Sprintf("scene %s", sc.Name))
	}
	printStat("objects", w.ObjectCount())
	fmt.Println()

	// 6. Start frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.World.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("frame loop started (tick: %s)", cfg.World.TickRate))
	fmt.Println()

	lastSnapshot := time.Now()
	for {
		select {
		case <-ticker.C:
			// Faults are already logged by the runner; the frame completed.
			_ = w.Update()

			if cfg.Snapshot.Interval > 0 && time.Since(lastSnapshot) >= cfg.Snapshot.Interval {
				lastSnapshot = time.Now()
				saveSnapshot(w, snapshots, log)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			saveSnapshot(w, snapshots, log)
			log.Info("world stopped", zap.Uint64("frames", w.Frame()))
			return nil
		}
	}
}

func restore(w *world.World, repo *persist.SnapshotRepo, enabled bool, log *zap.Logger) (bool, error) {
	if repo == nil || !enabled {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	row, err := repo.Latest(ctx, w.Name())
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if row == nil {
		return false, nil
	}
	if _, err := w.Load(row.Data); err != nil {
		return false, fmt.Errorf("restore snapshot %d: %w", row.ID, err)
	}
	printOK(fmt.Sprintf("restored snapshot %d (frame %d)", row.ID, row.Frame))
	log.Info("snapshot restored", zap.Int64("id", row.ID), zap.Uint64("frame", row.Frame))
	return true, nil
}

func saveSnapshot(w *world.World, repo *persist.SnapshotRepo, log *zap.Logger) {
	if repo == nil {
		return
	}
	row := &persist.SnapshotRow{
		World:   w.Name(),
		Frame:   w.Frame(),
		Objects: w.ObjectCount(),
		Version: world.StreamVersion,
		Data:    w.Save(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.Save(ctx, row); err != nil {
		log.Error("world snapshot failed", zap.Error(err))
		return
	}
	log.Info("world snapshot saved",
		zap.Int64("id", row.ID),
		zap.Uint64("frame", row.Frame),
		zap.Int("bytes", len(row.Data)),
		zap.Int("objects", row.Objects),
	)
}

func profileMode(mode string) func(*profile.Profile) {
	switch mode {
	case "cpu":
		return profile.CPUProfile
	case "mem":
		return profile.MemProfileAllocs
	case "block":
		return profile.BlockProfile
	case "mutex":
		return profile.MutexProfile
	case "goroutine":
		return profile.GoroutineProfile
	case "trace":
		return profile.TraceProfile
	}
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
