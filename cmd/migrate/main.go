package main

// Apply or inspect the database schema:
//   go run ./cmd/migrate            # up
//   go run ./cmd/migrate status

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/config"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/storage/db"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, err := commandFromArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(ctx, cfg.DatabaseURL, command); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, command string) error {
	sqlDB, err := db.Connect(ctx, databaseURL, db.OptionsFromEnv(db.DefaultOptions(db.ProfileMigrate)))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer sqlDB.Close()

	return db.Migrate(ctx, sqlDB, command)
}

func commandFromArgs(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "up", nil
	case 1:
		return strings.TrimSpace(args[0]), nil
	default:
		return "", fmt.Errorf("usage: migrate [%s]", strings.Join(db.MigrateCommands, "|"))
	}
}
