package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateCommands lists the goose commands the migrate binary exposes.
var MigrateCommands = []string{"up", "up-by-one", "down", "status", "version", "redo"}

// ErrUnknownMigrateCommand is returned by Migrate for commands outside
// MigrateCommands.
var ErrUnknownMigrateCommand = errors.New("unknown migrate command")

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	telemetry.Info("db.migrate", map[string]any{"message": strings.TrimSpace(fmt.Sprintf(format, v...))})
}

func (gooseLogger) Fatalf(format string, v ...any) {
	telemetry.Error("db.migrate_fatal", map[string]any{"message": strings.TrimSpace(fmt.Sprintf(format, v...))})
}

// RunMigrations applies every pending migration of the embedded schema. A nil
// database is a no-op so memory-backed dev builds can call it.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	return Migrate(ctx, database, "up")
}

// Migrate runs one goose command against the embedded schema.
func Migrate(ctx context.Context, database *sql.DB, command string) error {
	if !slices.Contains(MigrateCommands, command) {
		return fmt.Errorf("%w %q", ErrUnknownMigrateCommand, command)
	}
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, database, "migrations"); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}
