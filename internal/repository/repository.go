// Package repository declares the storage interfaces the services depend on.
//
// Services only see these interfaces. The one real implementation,
// repository/sqlstore, runs unchanged on SQLite and PostgreSQL; tests use
// in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/dealbot/internal/model"
)

// UserRepository reads users. Users are written by the bot, not by us.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// ProductRepository reads and edits tracked products.
type ProductRepository interface {
	ListActiveByUser(ctx context.Context, userID int64) ([]model.TrackedProduct, error)
	GetProduct(ctx context.Context, id int64) (*model.TrackedProduct, error)
	PriceHistory(ctx context.Context, productID int64, limit int) ([]model.PricePoint, error)
	UpdateTargetPrice(ctx context.Context, id int64, target float64) error
	Deactivate(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int64, error)
}

// AccessTokenRepository persists magic-link tokens.
//
// now is always passed in rather than read from the database clock, so
// expiry is decided by the application's clock on both backends.
type AccessTokenRepository interface {
	// CreateToken stores a new token with used_at NULL.
	CreateToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	// FindValidToken returns the token if it exists and expires after now,
	// or (nil, nil) otherwise. Expired and unknown look the same.
	FindValidToken(ctx context.Context, token string, now time.Time) (*model.AccessToken, error)
	// MarkTokenUsed sets used_at = now where it is still NULL and reports
	// whether this call was the one that set it.
	MarkTokenUsed(ctx context.Context, token string, now time.Time) (bool, error)
}
