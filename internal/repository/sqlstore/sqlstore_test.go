package sqlstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/dealbot/internal/db"
)

// newTestStore opens a migrated SQLite database in a temp directory.
// A temp file rather than ":memory:" so every pooled connection sees
// the same tables.
func newTestStore(t *testing.T) (*Store, *db.Provider) {
	t.Helper()
	ctx := context.Background()

	p, err := db.Open(ctx, db.Config{SQLitePath: filepath.Join(t.TempDir(), "store.db")})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.Migrate(ctx, p, logger))

	return New(p), p
}

// seedUser inserts a user the way the bot's ingestion would and returns its ID.
func seedUser(t *testing.T, p *db.Provider, phone string) int64 {
	t.Helper()
	ctx := context.Background()

	var id int64
	err := p.WithConn(ctx, func(c *db.Conn) error {
		if _, err := c.Exec(ctx, `INSERT INTO users (phone_number) VALUES (?)`, phone); err != nil {
			return err
		}
		row, err := c.QueryOne(ctx, `SELECT id FROM users WHERE phone_number = ?`, phone)
		if err != nil {
			return err
		}
		id = row.Int64("id")
		return nil
	})
	require.NoError(t, err)
	return id
}

// seedProduct inserts an active product. Pass nil prices for "unknown".
func seedProduct(t *testing.T, p *db.Provider, userID int64, title string, current, target *float64, createdAt time.Time) int64 {
	t.Helper()
	ctx := context.Background()

	var id int64
	err := p.WithConn(ctx, func(c *db.Conn) error {
		if _, err := c.Exec(ctx,
			`INSERT INTO tracked_products (user_id, title, url, current_price, target_price, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			userID, title, "https://www.amazon.com/dp/"+title, nullable(current), nullable(target), createdAt,
		); err != nil {
			return err
		}
		row, err := c.QueryOne(ctx, `SELECT MAX(id) AS id FROM tracked_products`)
		if err != nil {
			return err
		}
		id = row.Int64("id")
		return nil
	})
	require.NoError(t, err)
	return id
}

func seedPrice(t *testing.T, p *db.Provider, productID int64, price float64, at time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.WithConn(ctx, func(c *db.Conn) error {
		_, err := c.Exec(ctx,
			`INSERT INTO price_history (product_id, price, recorded_at) VALUES (?, ?, ?)`,
			productID, price, at)
		return err
	}))
}

func fp(f float64) *float64 { return &f }

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
