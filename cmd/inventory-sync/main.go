package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/inventory"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var (
		direction string
		envFile   string
		status    bool
	)
	flag.StringVar(&direction, "direction", "pull", "pull|push")
	flag.StringVar(&envFile, "env", "", "optional .env file to load before reading config")
	flag.BoolVar(&status, "status", false, "print migration status and exit")
	flag.Parse()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "load %s: %v\n", envFile, err)
			os.Exit(2)
		}
	}

	cfg := config.Load()

	level := zapcore.InfoLevel
	if cfg.Server.LogLevel != "" {
		parsed, err := zapcore.ParseLevel(cfg.Server.LogLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL %q: %v\n", cfg.Server.LogLevel, err)
			os.Exit(2)
		}
		level = parsed
	}
	log := logger.NewJSON(os.Stderr, level)
	defer log.Sync()

	if status {
		direction = "status"
	}
	if err := run(direction, cfg, log); err != nil {
		log.Error("Inventory sync failed", zap.String("direction", direction), zap.Error(err))
		os.Exit(1)
	}
}

func run(direction string, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbService, err := database.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbService.Close()

	if direction == "status" {
		return database.GetMigrationStatus(dbService.DB())
	}

	if err := database.RunMigrations(dbService.DB(), log); err != nil {
		return err
	}

	store := repository.NewStore(dbService.DB(), cfg.Database.LockTimeout)
	syncer := service.NewSyncService(
		inventory.NewClient(cfg.Inventory, log),
		store,
		store.Repositories().Products,
		metrics.NewRegistry(),
		log,
	)

	var result interface{}
	switch direction {
	case "pull":
		result, err = syncer.Pull(ctx)
	case "push":
		result, err = syncer.Push(ctx)
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
