package db

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"
)

// Schema lives in migrations/<backend>/, one goose file per change.
// The two directories describe the same tables in each backend's types.
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Migrate applies every pending migration for the active backend.
// It is safe to run on every start: goose records what it has applied.
//
// goose keeps its settings in package globals, so Migrate must not run
// concurrently with itself.
func Migrate(ctx context.Context, p *Provider, logger *slog.Logger) error {
	dir, err := setupGoose(p, logger)
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, p.DB(), dir); err != nil {
		return fmt.Errorf("db: applying migrations: %w", err)
	}
	return nil
}

// MigrationStatus logs every migration and whether it has been applied.
func MigrationStatus(ctx context.Context, p *Provider, logger *slog.Logger) error {
	dir, err := setupGoose(p, logger)
	if err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, p.DB(), dir); err != nil {
		return fmt.Errorf("db: reading migration status: %w", err)
	}
	return nil
}

func setupGoose(p *Provider, logger *slog.Logger) (string, error) {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: logger})

	if err := goose.SetDialect(p.Dialect().GooseDialect()); err != nil {
		return "", fmt.Errorf("db: setting migration dialect: %w", err)
	}
	return "migrations/" + p.Dialect().Name(), nil
}

// gooseLogger sends goose's printf-style output to slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	// goose only calls Fatalf from its own CLI helpers, which we do not use.
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}
