// AngelaMos | 2026
// repo.go

// Package entitlementtest provides an in-memory entitlement.Repository so
// other packages can drive a real entitlement.AdminStore in tests.
package entitlementtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/entitlement"
)

// Repo keeps one row per (user, product) pair, upserting on Grant the same
// way the Postgres repository does.
type Repo struct {
	mu   sync.Mutex
	rows map[string]*entitlement.Entitlement
	now  func() time.Time
}

func NewRepo() *Repo {
	return &Repo{
		rows: map[string]*entitlement.Entitlement{},
		now:  time.Now,
	}
}

func pairKey(userID, productID string) string {
	return userID + "/" + productID
}

func (r *Repo) Grant(
	_ context.Context,
	p entitlement.GrantParams,
) (*entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	ent, ok := r.rows[pairKey(p.UserID, p.ProductID)]
	if !ok {
		ent = &entitlement.Entitlement{
			ID:        fmt.Sprintf("mem-%d", len(r.rows)+1),
			UserID:    p.UserID,
			ProductID: p.ProductID,
			CreatedAt: now,
		}
		r.rows[pairKey(p.UserID, p.ProductID)] = ent
	}
	ent.Status = entitlement.StatusActive
	ent.PurchasedAt = now
	ent.ExpiresAt = nil
	ent.PaymentID = p.PaymentID
	ent.PaymentPlatform = entitlement.PlatformAdmin
	ent.Notes = p.Notes
	ent.UpdatedAt = now

	cp := *ent
	return &cp, nil
}

func (r *Repo) SetStatus(
	_ context.Context,
	userID, productID, status string,
	_ *string,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.rows[pairKey(userID, productID)]
	if !ok {
		return false, nil
	}
	ent.Status = status
	ent.UpdatedAt = r.now()
	return true, nil
}

func (r *Repo) GetStatus(_ context.Context, userID, productID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.rows[pairKey(userID, productID)]
	if !ok {
		return "", fmt.Errorf("get entitlement status: %w", core.ErrNotFound)
	}
	return ent.Status, nil
}

func (r *Repo) ListActiveProducts(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []string{}
	for _, ent := range r.rows {
		if ent.UserID == userID && ent.IsActive() {
			out = append(out, ent.ProductID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Repo) ListForUser(_ context.Context, userID string) ([]entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entitlement.Entitlement
	for _, ent := range r.rows {
		if ent.UserID == userID {
			out = append(out, *ent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

func (r *Repo) ListAll(_ context.Context) ([]entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entitlement.Entitlement, 0, len(r.rows))
	for _, ent := range r.rows {
		out = append(out, *ent)
	}
	return out, nil
}

func (r *Repo) CountActiveByProduct(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := map[string]int{}
	for _, ent := range r.rows {
		if ent.IsActive() {
			counts[ent.ProductID]++
		}
	}
	return counts, nil
}

var _ entitlement.Repository = (*Repo)(nil)
