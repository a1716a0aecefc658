package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/dealbot/internal/model"
)

// CreateToken inserts a new access token. used_at starts NULL.
//
// A duplicate token string would violate the UNIQUE constraint and come back
// as a *db.QueryError. With 256 random bits that does not happen in practice,
// so there is no retry.
func (s *Store) CreateToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := s.exec(ctx,
		`INSERT INTO access_tokens (user_id, token, expires_at)
		 VALUES (?, ?, ?)`,
		userID, token, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: creating access token for user %d: %w", userID, err)
	}
	return nil
}

// FindValidToken looks the token up by exact match and filters out expired
// rows in the same statement, so an expired token is indistinguishable from
// one that never existed. Returns (nil, nil) in both cases.
func (s *Store) FindValidToken(ctx context.Context, token string, now time.Time) (*model.AccessToken, error) {
	row, err := s.queryOne(ctx,
		`SELECT id, user_id, token, expires_at, used_at, created_at
		 FROM access_tokens
		 WHERE token = ? AND expires_at > ?`,
		token, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: looking up access token: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	t := &model.AccessToken{
		ID:        row.Int64("id"),
		UserID:    row.Int64("user_id"),
		Token:     row.String("token"),
		ExpiresAt: row.Time("expires_at"),
		CreatedAt: row.Time("created_at"),
	}
	if usedAt, ok := row.NullTime("used_at"); ok {
		t.UsedAt = &usedAt
	}
	return t, nil
}

// MarkTokenUsed records the first use of a token.
//
// The "used_at IS NULL" guard makes it idempotent: the first call sets the
// timestamp, later calls match zero rows and change nothing. When two calls
// race, the backend's row lock lets exactly one of them match.
func (s *Store) MarkTokenUsed(ctx context.Context, token string, now time.Time) (bool, error) {
	n, err := s.exec(ctx,
		`UPDATE access_tokens SET used_at = ?
		 WHERE token = ? AND used_at IS NULL`,
		now, token,
	)
	if err != nil {
		return false, fmt.Errorf("sqlstore: marking access token used: %w", err)
	}
	return n == 1, nil
}
