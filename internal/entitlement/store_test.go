// AngelaMos | 2026
// store_test.go

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/course-portal/internal/catalog"
	"github.com/carterperez-dev/course-portal/internal/config"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/events"
)

type memRepo struct {
	mu      sync.Mutex
	rows    map[string]*Entitlement
	log     []ChangeEvent
	users   map[string]bool
	failErr error
	clock   time.Time
}

func newMemRepo(users ...string) *memRepo {
	r := &memRepo{
		rows:  map[string]*Entitlement{},
		users: map[string]bool{},
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		r.users[u] = true
	}
	return r
}

func key(userID, productID string) string { return userID + "/" + productID }

func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Minute)
	return r.clock
}

func (r *memRepo) Grant(_ context.Context, p GrantParams) (*Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return nil, r.failErr
	}
	if !r.users[p.UserID] {
		return nil, fmt.Errorf("grant entitlement: %w", core.ErrForeignKey)
	}

	now := r.tick()
	ent, ok := r.rows[key(p.UserID, p.ProductID)]
	if !ok {
		ent = &Entitlement{
			ID:        fmt.Sprintf("e%d", len(r.rows)+1),
			UserID:    p.UserID,
			ProductID: p.ProductID,
			CreatedAt: now,
		}
		r.rows[key(p.UserID, p.ProductID)] = ent
	}
	ent.Status = StatusActive
	ent.PurchasedAt = now
	ent.PaymentID = p.PaymentID
	ent.PaymentPlatform = PlatformAdmin
	ent.Notes = p.Notes
	ent.UpdatedAt = now

	r.log = append(r.log, ChangeEvent{
		UserID: p.UserID, ProductID: p.ProductID, Action: ActionGranted, Status: StatusActive,
	})

	cp := *ent
	return &cp, nil
}

func (r *memRepo) SetStatus(_ context.Context, userID, productID, status string, _ *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return false, r.failErr
	}
	ent, ok := r.rows[key(userID, productID)]
	if !ok {
		return false, nil
	}
	ent.Status = status
	r.log = append(r.log, ChangeEvent{
		UserID: userID, ProductID: productID, Action: ActionRevoked, Status: status,
	})
	return true, nil
}

func (r *memRepo) GetStatus(_ context.Context, userID, productID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return "", r.failErr
	}
	ent, ok := r.rows[key(userID, productID)]
	if !ok {
		return "", fmt.Errorf("get entitlement status: %w", core.ErrNotFound)
	}
	return ent.Status, nil
}

func (r *memRepo) ListActiveProducts(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return nil, r.failErr
	}
	var out []string
	for _, ent := range r.rows {
		if ent.UserID == userID && ent.Status == StatusActive {
			out = append(out, ent.ProductID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memRepo) ListForUser(_ context.Context, userID string) ([]Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entitlement
	for _, ent := range r.rows {
		if ent.UserID == userID {
			out = append(out, *ent)
		}
	}
	return out, nil
}

func (r *memRepo) ListAll(_ context.Context) ([]Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entitlement, 0, len(r.rows))
	for _, ent := range r.rows {
		out = append(out, *ent)
	}
	return out, nil
}

func (r *memRepo) CountActiveByProduct(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := map[string]int{}
	for _, ent := range r.rows {
		if ent.Status == StatusActive {
			counts[ent.ProductID]++
		}
	}
	return counts, nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newStore(repo Repository, failOpen bool) *AdminStore {
	return NewAdminStore(
		repo,
		catalog.Default(),
		events.Nop{},
		config.EntitlementConfig{FailOpenOnMissingSchema: failOpen},
	)
}

func TestGrantIsIdempotent(t *testing.T) {
	repo := newMemRepo("u1")
	store := newStore(repo, false)
	ctx := context.Background()

	first, err := store.Grant(ctx, GrantInput{UserID: "u1", ProductID: "tmbc"})
	require.NoError(t, err)

	second, err := store.Grant(ctx, GrantInput{UserID: "u1", ProductID: "tmbc"})
	require.NoError(t, err)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, StatusActive, second.Status)
	assert.True(t, second.PurchasedAt.After(first.PurchasedAt))
	assert.Equal(t, PlatformAdmin, second.PaymentPlatform)
}

func TestGrantReactivatesRevokedRow(t *testing.T) {
	repo := newMemRepo("u1")
	store := newStore(repo, false)
	ctx := context.Background()

	_, err := store.Grant(ctx, GrantInput{UserID: "u1", ProductID: "ese"})
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, "u1", "ese", "refunded", "admin1"))

	ok, err := store.HasActiveGrant(ctx, "u1", "ese")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Grant(ctx, GrantInput{UserID: "u1", ProductID: "ese"})
	require.NoError(t, err)

	ok, err = store.HasActiveGrant(ctx, "u1", "ese")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Len(t, repo.log, 3)
}

func TestGrantRejectsUnknownProduct(t *testing.T) {
	store := newStore(newMemRepo("u1"), false)

	_, err := store.Grant(context.Background(), GrantInput{UserID: "u1", ProductID: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestGrantUnknownUserIsNotFound(t *testing.T) {
	store := newStore(newMemRepo(), false)

	_, err := store.Grant(context.Background(), GrantInput{UserID: "ghost", ProductID: "tmbc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRevokeReasonCoercion(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{reason: "refunded", want: StatusRefunded},
		{reason: "expired", want: StatusExpired},
		{reason: "revoked", want: StatusRevoked},
		{reason: "chargeback", want: StatusRevoked},
		{reason: "", want: StatusRevoked},
		{reason: "active", want: StatusRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			repo := newMemRepo("u1")
			store := newStore(repo, false)
			ctx := context.Background()

			_, err := store.Grant(ctx, GrantInput{UserID: "u1", ProductID: "tmbc"})
			require.NoError(t, err)
			require.NoError(t, store.Revoke(ctx, "u1", "tmbc", tt.reason, ""))

			status, err := repo.GetStatus(ctx, "u1", "tmbc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestRevokeMissingRowIsNoop(t *testing.T) {
	repo := newMemRepo("u1")
	pub := &mockPublisher{}
	store := NewAdminStore(repo, catalog.Default(), pub, config.EntitlementConfig{})

	err := store.Revoke(context.Background(), "u1", "bidcap", "revoked", "")
	require.NoError(t, err)

	assert.Empty(t, repo.rows)
	assert.Empty(t, repo.log)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestHasActiveGrantOnlyForActive(t *testing.T) {
	repo := newMemRepo("u1")
	store := newStore(repo, false)
	ctx := context.Background()

	ok, err := store.HasActiveGrant(ctx, "u1", "tmbc")
	require.NoError(t, err)
	assert.False(t, ok, "missing row")

	_, err = store.Grant(ctx, GrantInput{UserID: "u1", ProductID: "tmbc"})
	require.NoError(t, err)

	for _, status := range []string{StatusRevoked, StatusRefunded, StatusExpired} {
		repo.rows[key("u1", "tmbc")].Status = status
		ok, err = store.HasActiveGrant(ctx, "u1", "tmbc")
		require.NoError(t, err)
		assert.False(t, ok, status)
	}

	repo.rows[key("u1", "tmbc")].Status = StatusActive
	ok, err = store.HasActiveGrant(ctx, "u1", "tmbc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasActiveGrantMissingSchema(t *testing.T) {
	missing := fmt.Errorf("get entitlement status: %w", fmt.Errorf("%w: user_products", core.ErrUndefinedTable))

	t.Run("fails closed by default", func(t *testing.T) {
		repo := newMemRepo("u1")
		repo.failErr = missing
		store := newStore(repo, false)

		ok, err := store.HasActiveGrant(context.Background(), "u1", "tmbc")
		require.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("fails open when enabled", func(t *testing.T) {
		repo := newMemRepo("u1")
		repo.failErr = missing
		store := newStore(repo, true)

		ok, err := store.HasActiveGrant(context.Background(), "u1", "tmbc")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("other errors fail closed even when enabled", func(t *testing.T) {
		repo := newMemRepo("u1")
		repo.failErr = errors.New("connection reset")
		store := newStore(repo, true)

		ok, err := store.HasActiveGrant(context.Background(), "u1", "tmbc")
		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestScopedStoreIsBoundToUser(t *testing.T) {
	repo := newMemRepo("u1", "u2")
	store := newStore(repo, false)
	ctx := context.Background()

	_, err := store.Grant(ctx, GrantInput{UserID: "u1", ProductID: "tmbc"})
	require.NoError(t, err)
	_, err = store.Grant(ctx, GrantInput{UserID: "u1", ProductID: "bidcap"})
	require.NoError(t, err)

	mine := store.Scoped("u1")
	theirs := store.Scoped("u2")

	ok, err := mine.HasActiveGrant(ctx, "tmbc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = theirs.HasActiveGrant(ctx, "tmbc")
	require.NoError(t, err)
	assert.False(t, ok)

	products, err := mine.ListActiveProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bidcap", "tmbc"}, products)

	products, err = theirs.ListActiveProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NotNil(t, products)
}

func TestGrantPublishesEvent(t *testing.T) {
	repo := newMemRepo("u1")
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.EntitlementGranted &&
			e.Payload["product_id"] == "ese" &&
			e.Payload["user_id"] == "u1"
	})).Return(nil).Once()

	store := NewAdminStore(repo, catalog.Default(), pub, config.EntitlementConfig{})

	_, err := store.Grant(context.Background(), GrantInput{UserID: "u1", ProductID: "ese", ActorID: "a1"})
	require.NoError(t, err)

	pub.AssertExpectations(t)
}

func TestPublishFailureDoesNotFailGrant(t *testing.T) {
	repo := newMemRepo("u1")
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	store := NewAdminStore(repo, catalog.Default(), pub, config.EntitlementConfig{})

	_, err := store.Grant(context.Background(), GrantInput{UserID: "u1", ProductID: "tmbc"})
	require.NoError(t, err)
}

func TestBonusUnlock(t *testing.T) {
	purchased := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	ent := Entitlement{PurchasedAt: purchased, Status: StatusActive}

	assert.Equal(t, purchased.Add(7*24*time.Hour), ent.BonusUnlocksAt())
	assert.False(t, ent.BonusUnlocked(purchased.Add(6*24*time.Hour)))
	assert.True(t, ent.BonusUnlocked(purchased.Add(7*24*time.Hour)))
}
