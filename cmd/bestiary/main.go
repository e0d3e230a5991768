package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/bestiary/internal/async"
	"github.com/l1jgo/bestiary/internal/battle"
	"github.com/l1jgo/bestiary/internal/bestiary"
	"github.com/l1jgo/bestiary/internal/cache"
	"github.com/l1jgo/bestiary/internal/config"
	"github.com/l1jgo/bestiary/internal/data"
	"github.com/l1jgo/bestiary/internal/handler"
	gonet "github.com/l1jgo/bestiary/internal/net"
	"github.com/l1jgo/bestiary/internal/persist"
	"github.com/l1jgo/bestiary/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             Bestiary  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      cached creature records service      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
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

// ── Main service logic ────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	optional := true
	if p := os.Getenv("BESTIARY_CONFIG"); p != "" {
		cfgPath = p
		optional = false
	}
	cfg, err := config.Load(cfgPath, optional)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Open the store and run migrations
	printSection("Storage")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// 4. Lua battle hook
	var reward battle.RewardFunc
	if cfg.Battle.ScriptsDir != "" {
		engine, err := scripting.NewEngine(cfg.Battle.ScriptsDir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		reward = engine.RewardFunc()
		if reward != nil {
			printOK("battle reward script loaded")
		}
	}
	fmt.Println()

	// 5. Cache, worker pool and service
	printSection("Service")

	pool := async.NewPool(cfg.Async.Name, cfg.Async.Workers, cfg.Async.QueueSize, log)
	pool.Start()
	printOK(fmt.Sprintf("worker pool %q started", pool.Name()))
	printStat("async workers", cfg.Async.Workers)
	printStat("async queue", cfg.Async.QueueSize)

	svc := bestiary.New(bestiary.Deps{
		Store:   store,
		Cache:   cache.New(log),
		Pool:    pool,
		Reward:  reward,
		Latency: cfg.Backend.Latency,
		Log:     log,
	})

	// 6. Seed an empty store
	if cfg.Seed.Path != "" {
		list, err := data.LoadCreatureList(cfg.Seed.Path)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		n, err := svc.Seed(ctx, list.Creatures())
		if err != nil {
			return err
		}
		printStat("seeded creatures", n)
	}
	fmt.Println()

	// 7. HTTP server
	mux := http.NewServeMux()
	handler.RegisterAll(mux, &handler.Deps{
		Bestiary:  svc,
		Log:       log,
		StartTime: time.Unix(cfg.Server.StartTime, 0),
	})
	httpServer, err := gonet.NewServer(cfg.HTTP, mux, log)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	go httpServer.Serve()

	printReady(fmt.Sprintf("listening on %s", httpServer.Addr()))
	fmt.Println()

	// 8. Wait for a shutdown signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stopCancel()
	if err := httpServer.Shutdown(stopCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := pool.Shutdown(stopCtx); err != nil {
		log.Warn("async pool shutdown", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

// openStore opens the store named by cfg.Driver and brings its schema up
// to date.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (persist.Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := persist.NewDB(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		printOK("PostgreSQL connected")
		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		return persist.NewCreatureRepo(db), nil
	case "sqlite":
		s, err := persist.OpenSQLite(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		printOK("SQLite opened")
		if err := persist.RunSQLiteMigrations(ctx, s.DB()); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		return s, nil
	default:
		printOK("in-memory store")
		return persist.NewMemoryStore(), nil
	}
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
