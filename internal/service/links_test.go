package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/dealbot/internal/apperror"
	"github.com/sakif/dealbot/internal/auth"
	"github.com/sakif/dealbot/internal/model"
)

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLinkService(t *testing.T) (*LinkService, *fakeStore, *clock) {
	t.Helper()
	store := newFakeStore()
	store.addUser(42, "+15550000042")
	clk := &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}

	svc := NewLinkService(store, store, store, "https://deals.example.com/", quietLogger())
	svc.now = clk.Now
	return svc, store, clk
}

// =========================================================================
// ISSUE
// =========================================================================

func TestIssue_TokenShapeAndExpiry(t *testing.T) {
	svc, store, clk := newTestLinkService(t)

	token, err := svc.Issue(context.Background(), 42)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(token), 43)
	assert.True(t, auth.PlausibleLinkToken(token), "token must be URL-safe: %q", token)

	stored := store.tokens[token]
	require.NotNil(t, stored)
	assert.Equal(t, int64(42), stored.UserID)
	assert.Equal(t, clk.Now().Add(24*time.Hour), stored.ExpiresAt)
	assert.Nil(t, stored.UsedAt)
}

func TestIssue_Unique(t *testing.T) {
	svc, _, _ := newTestLinkService(t)

	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		token, err := svc.Issue(context.Background(), 42)
		require.NoError(t, err)
		require.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

func TestIssue_InvalidUser(t *testing.T) {
	svc, _, _ := newTestLinkService(t)

	_, err := svc.Issue(context.Background(), 0)
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
}

func TestIssue_DuplicateSurfacesStoreError(t *testing.T) {
	svc, _, _ := newTestLinkService(t)
	svc.newToken = func() (string, error) { return "fixed-token", nil }

	_, err := svc.Issue(context.Background(), 42)
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), 42)
	assert.ErrorIs(t, err, errDuplicateToken)
}

func TestIssue_RandomSourceFailure(t *testing.T) {
	svc, store, _ := newTestLinkService(t)
	svc.newToken = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := svc.Issue(context.Background(), 42)
	require.Error(t, err)
	assert.Empty(t, store.tokens)
}

func TestIssueForPhone(t *testing.T) {
	svc, store, _ := newTestLinkService(t)

	link, err := svc.IssueForPhone(context.Background(), "  +15550000042 ")
	require.NoError(t, err)

	assert.Equal(t, "24h", link.ExpiresIn)
	assert.Equal(t, "+15550000042", link.Phone)
	require.True(t, strings.HasPrefix(link.URL, "https://deals.example.com/d/"), link.URL)

	token := strings.TrimPrefix(link.URL, "https://deals.example.com/d/")
	assert.Contains(t, store.tokens, token)
}

func TestIssueForPhone_Errors(t *testing.T) {
	svc, _, _ := newTestLinkService(t)

	_, err := svc.IssueForPhone(context.Background(), "   ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.IssueForPhone(context.Background(), "+19999999999")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// VALIDATE / MARK USED
// =========================================================================

func TestValidate_FreshToken(t *testing.T) {
	svc, _, _ := newTestLinkService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, 42)
	require.NoError(t, err)

	tok, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, int64(42), tok.UserID)
	assert.Nil(t, tok.UsedAt)
}

func TestValidate_Nonexistent(t *testing.T) {
	svc, _, _ := newTestLinkService(t)

	tok, err := svc.Validate(context.Background(), "nonexistent-token")
	assert.NoError(t, err)
	assert.Nil(t, tok)
}

func TestValidate_ImplausibleSkipsStore(t *testing.T) {
	svc, store, _ := newTestLinkService(t)

	for _, in := range []string{"", strings.Repeat("a", 500), "../../etc/passwd"} {
		tok, err := svc.Validate(context.Background(), in)
		assert.NoError(t, err)
		assert.Nil(t, tok)
	}
	assert.Zero(t, store.lookups)
}

func TestValidate_ExpiredInStore(t *testing.T) {
	svc, store, clk := newTestLinkService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, 42)
	require.NoError(t, err)
	store.tokens[token].ExpiresAt = clk.Now().Add(-time.Minute)

	tok, err := svc.Validate(ctx, token)
	assert.NoError(t, err)
	assert.Nil(t, tok)
}

// unfilteredTokens returns tokens without looking at expires_at, like a
// backend whose stored timestamps lost precision.
type unfilteredTokens struct {
	*fakeStore
}

func (u unfilteredTokens) FindValidToken(_ context.Context, token string, _ time.Time) (*model.AccessToken, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tokens[token], nil
}

func TestValidate_RechecksExpiryOfStoreResult(t *testing.T) {
	svc, store, clk := newTestLinkService(t)
	ctx := context.Background()
	svc.tokens = unfilteredTokens{store}

	token, err := svc.Issue(ctx, 42)
	require.NoError(t, err)

	tok, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, tok)

	// exactly at expiry the link is dead
	clk.Advance(LinkTTL)
	tok, err = svc.Validate(ctx, token)
	assert.NoError(t, err)
	assert.Nil(t, tok)

	dash, err := svc.Open(ctx, token)
	assert.NoError(t, err)
	assert.Nil(t, dash)
	assert.Nil(t, store.tokens[token].UsedAt, "a dead link must not be marked used")
}

func TestValidate_StoreError(t *testing.T) {
	svc, store, _ := newTestLinkService(t)
	boom := errors.New("backend down")
	store.failWith = boom

	_, err := svc.Validate(context.Background(), "abcdef")
	assert.ErrorIs(t, err, boom)
}

func TestMarkUsed_Idempotent(t *testing.T) {
	svc, store, clk := newTestLinkService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, 42)
	require.NoError(t, err)

	first, err := svc.MarkUsed(ctx, token)
	require.NoError(t, err)
	assert.True(t, first)
	usedAt := *store.tokens[token].UsedAt

	clk.Advance(time.Hour)
	again, err := svc.MarkUsed(ctx, token)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, usedAt, *store.tokens[token].UsedAt)
}

func TestMarkUsed_UnknownIsNoop(t *testing.T) {
	svc, _, _ := newTestLinkService(t)

	first, err := svc.MarkUsed(context.Background(), "never-issued")
	assert.NoError(t, err)
	assert.False(t, first)
}

func TestMarkUsed_ConcurrentSingleWinner(t *testing.T) {
	svc, store, _ := newTestLinkService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, 42)
	require.NoError(t, err)

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := svc.MarkUsed(ctx, token)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if first {
				wins++
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, wins)
	assert.NotNil(t, store.tokens[token].UsedAt)
}

// Issue for user 42, open it, open it again, then let it expire.
func TestLinkLifecycle(t *testing.T) {
	svc, _, clk := newTestLinkService(t)
	ctx := context.Background()

	token, err := svc.Issue(ctx, 42)
	require.NoError(t, err)

	tok, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, int64(42), tok.UserID)
	assert.Nil(t, tok.UsedAt)

	_, err = svc.MarkUsed(ctx, token)
	require.NoError(t, err)

	// Used but not expired: still valid.
	tok, err = svc.Validate(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.NotNil(t, tok.UsedAt)

	clk.Advance(LinkTTL - time.Second)
	tok, err = svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.NotNil(t, tok, "token must still be valid one second before expiry")

	clk.Advance(time.Second)
	tok, err = svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, tok, "token must be invalid at expires_at")
}

// =========================================================================
// OPEN
// =========================================================================

func TestOpen_ReturnsDashboardAndMarksUsed(t *testing.T) {
	svc, store, _ := newTestLinkService(t)
	store.addProduct(model42Product(1, true))
	store.addProduct(model42Product(2, false))
	ctx := context.Background()

	token, err := svc.Issue(ctx, 42)
	require.NoError(t, err)

	dash, err := svc.Open(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, dash)
	assert.Equal(t, int64(42), dash.User.ID)
	require.Len(t, dash.Products, 1)
	assert.Equal(t, int64(1), dash.Products[0].ID)
	assert.NotNil(t, store.tokens[token].UsedAt)

	// Second open still works.
	dash, err = svc.Open(ctx, token)
	require.NoError(t, err)
	assert.NotNil(t, dash)
}

func TestOpen_InvalidIsNil(t *testing.T) {
	svc, _, clk := newTestLinkService(t)
	ctx := context.Background()

	dash, err := svc.Open(ctx, "nonexistent-token")
	assert.NoError(t, err)
	assert.Nil(t, dash)

	token, err := svc.Issue(ctx, 42)
	require.NoError(t, err)
	clk.Advance(25 * time.Hour)

	dash, err = svc.Open(ctx, token)
	assert.NoError(t, err)
	assert.Nil(t, dash)
}

func TestOpen_BackendErrorPropagates(t *testing.T) {
	svc, store, _ := newTestLinkService(t)
	token, err := svc.Issue(context.Background(), 42)
	require.NoError(t, err)

	boom := errors.New("connection refused")
	store.failWith = boom
	_, err = svc.Open(context.Background(), token)
	assert.ErrorIs(t, err, boom)
}

func TestOpen_MissingUserIsNil(t *testing.T) {
	svc, store, _ := newTestLinkService(t)
	token, err := svc.Issue(context.Background(), 42)
	require.NoError(t, err)

	delete(store.users, 42)
	dash, err := svc.Open(context.Background(), token)
	assert.NoError(t, err)
	assert.Nil(t, dash)
}
