// AngelaMos | 2026
// directory_test.go

package admin

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

	"github.com/carterperez-dev/course-portal/internal/auth"
	"github.com/carterperez-dev/course-portal/internal/catalog"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/entitlement"
	"github.com/carterperez-dev/course-portal/internal/profile"
	"github.com/carterperez-dev/course-portal/internal/progress"
)

const (
	adminID  = "11111111-1111-1111-1111-111111111111"
	memberID = "22222222-2222-2222-2222-222222222222"
	otherID  = "33333333-3333-3333-3333-333333333333"
	newID    = "44444444-4444-4444-4444-444444444444"
)

type mockIdP struct {
	mock.Mock
}

func (m *mockIdP) CreateAccount(ctx context.Context, email, password string, fullName *string) (string, error) {
	args := m.Called(ctx, email, password, fullName)
	return args.String(0), args.Error(1)
}

func (m *mockIdP) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	return m.Called(ctx, userID, newPassword).Error(0)
}

func (m *mockIdP) DeleteAccount(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type memProfiles struct {
	mu        sync.Mutex
	rows      map[string]*profile.Profile
	updateErr error
}

func newMemProfiles(ps ...profile.Profile) *memProfiles {
	m := &memProfiles{rows: map[string]*profile.Profile{}}
	for i := range ps {
		p := ps[i]
		m.rows[p.ID] = &p
	}
	return m
}

func (m *memProfiles) Get(_ context.Context, id string) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) GetRole(ctx context.Context, id string) (string, error) {
	p, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

func (m *memProfiles) Upsert(
	_ context.Context,
	id, email string,
	fullName *string,
	role string,
) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &profile.Profile{
		ID:        id,
		Email:     email,
		FullName:  fullName,
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	m.rows[id] = p
	return p, nil
}

func (m *memProfiles) Update(_ context.Context, id string, c profile.Changes) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}

	p, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("update profile: %w", core.ErrNotFound)
	}
	if c.FullName != nil {
		p.FullName = c.FullName
	}
	if c.ClearFullName {
		p.FullName = nil
	}
	if c.Role != nil {
		p.Role = *c.Role
	}
	if c.IsActive != nil {
		p.IsActive = *c.IsActive
	}
	if c.Notes != nil {
		p.Notes = c.Notes
	}
	if c.ClearNotes {
		p.Notes = nil
	}
	return nil
}

func (m *memProfiles) List(_ context.Context) ([]profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]profile.Profile, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memProfiles) CountByRole(_ context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]int{}
	for _, p := range m.rows {
		out[p.Role]++
	}
	return out, nil
}

type memGrants struct {
	mu   sync.Mutex
	rows []entitlement.Entitlement
}

func (m *memGrants) Grant(_ context.Context, in entitlement.GrantInput) (*entitlement.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for i := range m.rows {
		if m.rows[i].UserID == in.UserID && m.rows[i].ProductID == in.ProductID {
			m.rows[i].Status = entitlement.StatusActive
			m.rows[i].PurchasedAt = now
			return &m.rows[i], nil
		}
	}

	m.rows = append(m.rows, entitlement.Entitlement{
		UserID:      in.UserID,
		ProductID:   in.ProductID,
		Status:      entitlement.StatusActive,
		PurchasedAt: now,
		PaymentID:   in.PaymentID,
		Notes:       in.Notes,
	})
	return &m.rows[len(m.rows)-1], nil
}

func (m *memGrants) Revoke(_ context.Context, userID, productID, reason, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, _ := entitlement.NormalizeRevokeReason(reason)
	for i := range m.rows {
		if m.rows[i].UserID == userID && m.rows[i].ProductID == productID {
			m.rows[i].Status = status
		}
	}
	return nil
}

func (m *memGrants) ListForUser(_ context.Context, userID string) ([]entitlement.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []entitlement.Entitlement
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memGrants) ListAll(_ context.Context) ([]entitlement.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]entitlement.Entitlement(nil), m.rows...), nil
}

func (m *memGrants) CountActiveByProduct(_ context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]int{}
	for _, r := range m.rows {
		if r.IsActive() {
			out[r.ProductID]++
		}
	}
	return out, nil
}

type fixedSummaries map[string]progress.Summary

func (f fixedSummaries) SummaryForUser(_ context.Context, userID string) (progress.Summary, error) {
	return f[userID], nil
}

func (f fixedSummaries) SummaryByUser(_ context.Context) (map[string]progress.Summary, error) {
	return f, nil
}

type fixture struct {
	dir      *Directory
	idp      *mockIdP
	profiles *memProfiles
	grants   *memGrants
}

func newFixture() *fixture {
	now := time.Now()
	profiles := newMemProfiles(
		profile.Profile{ID: adminID, Email: "admin@example.com", Role: profile.RoleAdmin, IsActive: true, CreatedAt: now.Add(-48 * time.Hour)},
		profile.Profile{ID: memberID, Email: "member@example.com", Role: profile.RoleMember, IsActive: true, CreatedAt: now.Add(-24 * time.Hour)},
		profile.Profile{ID: otherID, Email: "other@example.com", Role: profile.RoleAdmin, IsActive: true, CreatedAt: now.Add(-72 * time.Hour)},
	)
	grants := &memGrants{}
	idp := &mockIdP{}
	summaries := fixedSummaries{
		memberID: {UserID: memberID, TotalWatchSeconds: 95, CompletedVideos: 1},
	}

	return &fixture{
		dir:      NewDirectory(idp, profiles, grants, summaries, catalog.Default(), 6),
		idp:      idp,
		profiles: profiles,
		grants:   grants,
	}
}

func TestCreateUserWithProducts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	name := "Ana"

	f.idp.On("CreateAccount", mock.Anything, "ana@example.com", "secret1", &name).
		Return(newID, nil).Once()

	id, err := f.dir.Create(ctx, CreateInput{
		Email:    "ana@example.com",
		Password: "secret1",
		FullName: &name,
		Products: []string{"tmbc"},
		ActorID:  adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, newID, id)
	f.idp.AssertExpectations(t)

	row, err := f.dir.Get(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, profile.RoleMember, row.Role)
	require.Len(t, row.Products, 1)
	assert.Equal(t, "tmbc", row.Products[0].ProductID)
	assert.Equal(t, "TMBC", row.Products[0].ProductName)
	assert.Equal(t, entitlement.StatusActive, row.Products[0].Status)
	assert.Equal(t,
		row.Products[0].PurchasedAt.Add(7*24*time.Hour),
		row.Products[0].BonusUnlocksAt,
	)
}

func TestCreateUserPasswordLengthBoundary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.dir.Create(ctx, CreateInput{Email: "short@example.com", Password: "12345"})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
	f.idp.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f.idp.On("CreateAccount", mock.Anything, "ok@example.com", "123456", (*string)(nil)).
		Return(newID, nil).Once()

	_, err = f.dir.Create(ctx, CreateInput{Email: "ok@example.com", Password: "123456"})
	assert.NoError(t, err)
	f.idp.AssertExpectations(t)
}

func TestCreateUserRejectsBeforeIdentityProvider(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.dir.Create(ctx, CreateInput{Email: "x@example.com", Password: "secret1", Role: "owner"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.dir.Create(ctx, CreateInput{Email: "x@example.com", Password: "secret1", Products: []string{"nope"}})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	f.idp.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newFixture()

	f.idp.On("CreateAccount", mock.Anything, "member@example.com", "secret1", (*string)(nil)).
		Return("", auth.ErrEmailExists).Once()

	_, err := f.dir.Create(context.Background(), CreateInput{Email: "member@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdatePasswordFailureShortCircuits(t *testing.T) {
	f := newFixture()
	name := "Renamed"
	pw := "newpass1"

	f.idp.On("UpdatePassword", mock.Anything, memberID, pw).
		Return(errors.New("idp down")).Once()

	err := f.dir.Update(context.Background(), memberID, UpdateInput{FullName: &name, NewPassword: &pw})
	require.Error(t, err)

	p, _ := f.profiles.Get(context.Background(), memberID)
	assert.Nil(t, p.FullName)
}

func TestUpdateProfileFailureAfterPassword(t *testing.T) {
	f := newFixture()
	name := "Renamed"
	pw := "newpass1"

	f.idp.On("UpdatePassword", mock.Anything, memberID, pw).Return(nil).Once()
	f.profiles.updateErr = errors.New("connection reset")

	err := f.dir.Update(context.Background(), memberID, UpdateInput{FullName: &name, NewPassword: &pw})

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "PASSWORD_UPDATED_PROFILE_FAILED", partial.Code)
	f.idp.AssertExpectations(t)
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture()
	bad := "owner"
	short := "12345"

	assert.ErrorIs(t, f.dir.Update(context.Background(), memberID, UpdateInput{Role: &bad}), core.ErrInvalidInput)
	assert.ErrorIs(t, f.dir.Update(context.Background(), memberID, UpdateInput{NewPassword: &short}), auth.ErrWeakPassword)
	assert.ErrorIs(t, f.dir.Update(context.Background(), "not-a-uuid", UpdateInput{}), core.ErrInvalidInput)

	f.idp.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteGuards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.ErrorIs(t, f.dir.Delete(ctx, adminID, adminID), ErrSelfDelete)
	assert.ErrorIs(t, f.dir.Delete(ctx, adminID, otherID), ErrAdminTarget)
	f.idp.AssertNotCalled(t, "DeleteAccount", mock.Anything, mock.Anything)

	f.idp.On("DeleteAccount", mock.Anything, memberID).Return(nil).Once()
	require.NoError(t, f.dir.Delete(ctx, adminID, memberID))
	f.idp.AssertExpectations(t)
}

func TestListNewestFirstWithAggregates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.grants.Grant(ctx, entitlement.GrantInput{UserID: memberID, ProductID: "tmbc"})
	require.NoError(t, err)

	rows, err := f.dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, memberID, rows[0].ID)
	assert.Equal(t, adminID, rows[1].ID)
	assert.Equal(t, otherID, rows[2].ID)

	assert.Equal(t, int64(95), rows[0].TotalWatchSeconds)
	assert.Equal(t, 1, rows[0].CompletedVideos)
	assert.Len(t, rows[0].Products, 1)
	assert.NotNil(t, rows[1].Products)
	assert.Empty(t, rows[1].Products)
}

func TestGetMalformedAndMissing(t *testing.T) {
	f := newFixture()

	_, err := f.dir.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.dir.Get(context.Background(), newID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRevokeDefaultsReason(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.dir.GrantProduct(ctx, memberID, GrantRequest{ProductID: "ese"}, adminID))
	require.NoError(t, f.dir.RevokeProduct(ctx, memberID, RevokeRequest{ProductID: "ese"}, adminID))

	rows, _ := f.grants.ListForUser(ctx, memberID)
	require.Len(t, rows, 1)
	assert.Equal(t, entitlement.StatusRevoked, rows[0].Status)

	stats, err := f.dir.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 2, stats.Admins)
	for _, p := range stats.Products {
		assert.Zero(t, p.ActiveGrants, p.ProductID)
	}
}

func TestConfiguredMinimumPasswordLength(t *testing.T) {
	f := newFixture()
	f.dir = NewDirectory(f.idp, f.profiles, f.grants, fixedSummaries{}, catalog.Default(), 10)
	ctx := context.Background()
	pw := "secret123"

	_, err := f.dir.Create(ctx, CreateInput{Email: "long@example.com", Password: pw})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
	assert.ErrorIs(t, f.dir.Update(ctx, memberID, UpdateInput{NewPassword: &pw}), auth.ErrWeakPassword)

	f.idp.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.idp.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateEmptyPasswordIsNoChange(t *testing.T) {
	f := newFixture()
	name := "Renamed"
	empty := ""

	require.NoError(t, f.dir.Update(context.Background(), memberID, UpdateInput{FullName: &name, NewPassword: &empty}))

	p, _ := f.profiles.Get(context.Background(), memberID)
	require.NotNil(t, p.FullName)
	assert.Equal(t, "Renamed", *p.FullName)
	f.idp.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestBonusUnlockedAtSevenDays(t *testing.T) {
	f := newFixture()
	purchased := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.grants.rows = append(f.grants.rows, entitlement.Entitlement{
		UserID:      memberID,
		ProductID:   "tmbc",
		Status:      entitlement.StatusActive,
		PurchasedAt: purchased,
	})

	tests := []struct {
		elapsed time.Duration
		want    bool
	}{
		{6*24*time.Hour + 23*time.Hour, false},
		{7*24*time.Hour - time.Second, false},
		{7 * 24 * time.Hour, true},
		{30 * 24 * time.Hour, true},
	}

	for _, tt := range tests {
		f.dir.now = func() time.Time { return purchased.Add(tt.elapsed) }

		row, err := f.dir.Get(context.Background(), memberID)
		require.NoError(t, err)
		require.Len(t, row.Products, 1)
		assert.Equal(t, tt.want, row.Products[0].BonusUnlocked, tt.elapsed.String())
		assert.Equal(t, purchased.Add(7*24*time.Hour), row.Products[0].BonusUnlocksAt)
	}
}
