// Package sqlstore implements the repository interfaces on top of db.Provider.
//
// ONE IMPLEMENTATION, TWO BACKENDS:
// Every statement here is written once, with "?" placeholders, and runs on
// both SQLite and PostgreSQL. The rules that make that work:
//
//   - Only "?" placeholders; the dialect rewrites them for PostgreSQL.
//   - Times go in as time.Time arguments and come out through Row.Time.
//     Never call NOW() or datetime('now'): they differ per backend and would
//     make expiry depend on the database clock instead of ours.
//   - Booleans are INTEGER 0/1 so "is_active = 1" means the same everywhere.
//   - No RETURNING, no upserts, no backend-specific functions.
//
// Each method is one WithConn scope: acquire, run, read out, release.
package sqlstore

import (
	"context"

	"github.com/sakif/dealbot/internal/db"
	"github.com/sakif/dealbot/internal/repository"
)

// Store is the SQL-backed repository. It is safe for concurrent use; each
// call checks its own connection out of the pool.
type Store struct {
	db *db.Provider
}

// compile-time checks that *Store implements every repository interface
var (
	_ repository.UserRepository        = (*Store)(nil)
	_ repository.ProductRepository     = (*Store)(nil)
	_ repository.AccessTokenRepository = (*Store)(nil)
)

// New returns a Store using p for every query.
func New(p *db.Provider) *Store {
	return &Store{db: p}
}

// queryOne runs a single-row read in its own connection scope.
func (s *Store) queryOne(ctx context.Context, query string, args ...any) (*db.Row, error) {
	var row *db.Row
	err := s.db.WithConn(ctx, func(c *db.Conn) error {
		var err error
		row, err = c.QueryOne(ctx, query, args...)
		return err
	})
	return row, err
}

// queryAll runs a multi-row read in its own connection scope.
func (s *Store) queryAll(ctx context.Context, query string, args ...any) ([]db.Row, error) {
	var rows []db.Row
	err := s.db.WithConn(ctx, func(c *db.Conn) error {
		var err error
		rows, err = c.QueryAll(ctx, query, args...)
		return err
	})
	return rows, err
}

// exec runs a single write in its own connection scope.
func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := s.db.WithConn(ctx, func(c *db.Conn) error {
		var err error
		n, err = c.Exec(ctx, query, args...)
		return err
	})
	return n, err
}
