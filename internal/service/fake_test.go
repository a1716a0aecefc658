package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sakif/dealbot/internal/apperror"
	"github.com/sakif/dealbot/internal/model"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements all three repository interfaces in memory, with the
// same semantics the SQL store has: FindValidToken filters on expiry,
// MarkTokenUsed only writes while used_at is NULL. A mutex stands in for the
// database's row-level write serialization.

type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]*model.User
	products map[int64]*model.TrackedProduct
	history  map[int64][]model.PricePoint
	tokens   map[string]*model.AccessToken
	nextID   int64

	// failWith, when set, is returned by every method.
	failWith error
	// lookups counts FindValidToken calls.
	lookups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*model.User),
		products: make(map[int64]*model.TrackedProduct),
		history:  make(map[int64][]model.PricePoint),
		tokens:   make(map[string]*model.AccessToken),
	}
}

func (f *fakeStore) addUser(id int64, phone string) {
	f.users[id] = &model.User{ID: id, PhoneNumber: phone, CreatedAt: time.Now().UTC()}
}

func (f *fakeStore) addProduct(p model.TrackedProduct) {
	stored := p
	f.products[p.ID] = &stored
}

// --- users ---

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	out := *u
	return &out, nil
}

func (f *fakeStore) GetUserByPhone(_ context.Context, phone string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.PhoneNumber == phone {
			out := *u
			return &out, nil
		}
	}
	return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "no user found with phone number " + phone, Field: "phone"}
}

func (f *fakeStore) CountUsers(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	return int64(len(f.users)), nil
}

// --- products ---

func (f *fakeStore) ListActiveByUser(_ context.Context, userID int64) ([]model.TrackedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []model.TrackedProduct{}
	for _, p := range f.products {
		if p.UserID == userID && p.IsActive {
			out = append(out, *p)
		}
	}
	// newest first, like the SQL ORDER BY
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID > out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id int64) (*model.TrackedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.products[id]
	if !ok {
		return nil, apperror.NotFound("product", strconv.FormatInt(id, 10))
	}
	out := *p
	return &out, nil
}

func (f *fakeStore) PriceHistory(_ context.Context, productID int64, limit int) ([]model.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	h := f.history[productID]
	if len(h) > limit {
		h = h[:limit]
	}
	return append([]model.PricePoint{}, h...), nil
}

func (f *fakeStore) UpdateTargetPrice(_ context.Context, id int64, target float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	p, ok := f.products[id]
	if !ok {
		return apperror.NotFound("product", strconv.FormatInt(id, 10))
	}
	p.TargetPrice = &target
	return nil
}

func (f *fakeStore) Deactivate(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	p, ok := f.products[id]
	if !ok {
		return apperror.NotFound("product", strconv.FormatInt(id, 10))
	}
	p.IsActive = false
	return nil
}

func (f *fakeStore) CountActive(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	var n int64
	for _, p := range f.products {
		if p.IsActive {
			n++
		}
	}
	return n, nil
}

// --- tokens ---

var errDuplicateToken = errors.New("UNIQUE constraint failed: access_tokens.token")

func (f *fakeStore) CreateToken(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, dup := f.tokens[token]; dup {
		return errDuplicateToken
	}
	f.nextID++
	f.tokens[token] = &model.AccessToken{
		ID:        f.nextID,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (f *fakeStore) FindValidToken(_ context.Context, token string, now time.Time) (*model.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.failWith != nil {
		return nil, f.failWith
	}
	t, ok := f.tokens[token]
	if !ok || !t.ExpiresAt.After(now) {
		return nil, nil
	}
	out := *t
	if t.UsedAt != nil {
		u := *t.UsedAt
		out.UsedAt = &u
	}
	return &out, nil
}

func (f *fakeStore) MarkTokenUsed(_ context.Context, token string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, f.failWith
	}
	t, ok := f.tokens[token]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	ts := now
	t.UsedAt = &ts
	return true, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ptr(f float64) *float64 { return &f }
