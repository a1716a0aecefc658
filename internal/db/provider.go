// Package db is the portable persistence layer.
//
// TWO BACKENDS, ONE CODE PATH:
// The dashboard runs on SQLite in development and PostgreSQL in production.
// Repositories are written once, with "?" placeholders, against the Conn type
// in this package. At startup Open picks a Dialect from configuration and
// that choice is fixed for the life of the process:
//
//	DATABASE_URL=postgres://...   → PostgreSQL via pgx, "?" rewritten to $1, $2...
//	DATABASE_URL unset            → SQLite file at DEAL_TRACKER_DB
//
// SCOPED CONNECTIONS:
// Every logical operation runs inside Provider.WithConn, which checks one
// connection out of the pool and always gives it back, even if the callback
// returns an error or panics. Results are read into Row values before the
// connection is released, so nothing handed to callers depends on it.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	// Driver registrations: "pgx" for PostgreSQL, "sqlite" for SQLite.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Pool tuning. SQLite ignores most of it.
const (
	defaultPingTimeout  = 5 * time.Second
	defaultConnMaxIdle  = 2 * time.Minute
	defaultConnMaxLife  = 30 * time.Minute
	defaultMaxIdleConns = 5
	defaultMaxOpenConns = 25
)

// Config selects and locates the backend.
type Config struct {
	// URL is a postgres:// or postgresql:// connection string.
	// Empty means "use SQLite".
	URL string
	// SQLitePath is the database file used when URL is empty.
	SQLitePath string
}

// Provider hands out scoped connections for the configured backend.
type Provider struct {
	db      *sql.DB
	dialect Dialect
}

// NewProvider wraps an already opened pool. Open is the normal entry point;
// this exists so tests can plug in sqlmock or a fixture database.
func NewProvider(sqlDB *sql.DB, d Dialect) *Provider {
	return &Provider{db: sqlDB, dialect: d}
}

// Open resolves cfg to a backend family, opens its pool and pings it.
// An unreachable backend is reported as a *ConnectionError.
func Open(ctx context.Context, cfg Config) (*Provider, error) {
	d, dsn, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	if d.Name() == BackendSQLite {
		// Make sure the directory exists, like `mkdir -p`.
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("db: creating database directory %s: %w", dir, err)
			}
		}
	}

	sqlDB, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("db: opening %s: %w", d.Name(), err)
	}

	sqlDB.SetConnMaxIdleTime(defaultConnMaxIdle)
	sqlDB.SetConnMaxLifetime(defaultConnMaxLife)
	sqlDB.SetMaxIdleConns(defaultMaxIdleConns)
	sqlDB.SetMaxOpenConns(defaultMaxOpenConns)

	p := NewProvider(sqlDB, d)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return p, nil
}

// resolve maps configuration to a dialect and a driver DSN.
func resolve(cfg Config) (Dialect, string, error) {
	if cfg.URL == "" {
		if cfg.SQLitePath == "" {
			return nil, "", fmt.Errorf("db: neither DATABASE_URL nor a SQLite path is configured")
		}
		// modernc.org/sqlite reads pragmas from the query string.
		// busy_timeout lets concurrent writers wait instead of failing with SQLITE_BUSY.
		dsn := cfg.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		return sqliteDialect{}, dsn, nil
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, "", fmt.Errorf("db: parsing DATABASE_URL: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return postgresDialect{}, cfg.URL, nil
	default:
		return nil, "", fmt.Errorf("db: unsupported DATABASE_URL scheme %q", u.Scheme)
	}
}

// Dialect returns the active backend's dialect.
func (p *Provider) Dialect() Dialect {
	return p.dialect
}

// DB exposes the pool for tooling that needs a *sql.DB (migrations).
// Query code should go through WithConn.
func (p *Provider) DB() *sql.DB {
	return p.db
}

// Ping checks that the backend is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return &ConnectionError{Backend: p.dialect.Name(), Err: err}
	}
	return nil
}

// Close closes the pool. Call it once, at shutdown.
func (p *Provider) Close() error {
	return p.db.Close()
}

// WithConn acquires one connection, runs fn with it and releases it on every
// exit path: normal return, error return, panic, or context cancellation
// while fn is waiting on the backend.
//
// There is no retry here. If acquisition fails the caller gets a
// *ConnectionError and decides for itself, because only the caller knows
// whether its statements are safe to repeat.
func (p *Provider) WithConn(ctx context.Context, fn func(c *Conn) error) error {
	raw, err := p.db.Conn(ctx)
	if err != nil {
		return &ConnectionError{Backend: p.dialect.Name(), Err: err}
	}
	defer raw.Close()

	return fn(&Conn{raw: raw, dialect: p.dialect})
}
