package sqlstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sakif/dealbot/internal/apperror"
	"github.com/sakif/dealbot/internal/db"
	"github.com/sakif/dealbot/internal/model"
)

// GetUserByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row, err := s.queryOne(ctx,
		`SELECT id, phone_number, created_at FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting user %d: %w", id, err)
	}
	if row == nil {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return scanUser(row), nil
}

// GetUserByPhone looks a user up by phone number, exactly as stored.
func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	row, err := s.queryOne(ctx,
		`SELECT id, phone_number, created_at FROM users WHERE phone_number = ?`, phone)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting user by phone: %w", err)
	}
	if row == nil {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: fmt.Sprintf("no user found with phone number %s", phone),
			Field:   "phone",
		}
	}
	return scanUser(row), nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	row, err := s.queryOne(ctx, `SELECT COUNT(*) AS cnt FROM users`)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: counting users: %w", err)
	}
	if row == nil {
		return 0, nil
	}
	return row.Int64("cnt"), nil
}

func scanUser(r *db.Row) *model.User {
	return &model.User{
		ID:          r.Int64("id"),
		PhoneNumber: r.String("phone_number"),
		CreatedAt:   r.Time("created_at"),
	}
}
