// AngelaMos | 2026
// store.go

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/course-portal/internal/catalog"
	"github.com/carterperez-dev/course-portal/internal/config"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/events"
)

// AdminStore has unrestricted access to every user's entitlements. Only
// hand it to code that has already passed the admin role gate; request
// paths acting for the caller get a ScopedStore instead.
type AdminStore struct {
	repo      Repository
	catalog   *catalog.Catalog
	publisher events.Publisher
	failOpen  bool
	tracer    trace.Tracer
}

func NewAdminStore(
	repo Repository,
	cat *catalog.Catalog,
	publisher events.Publisher,
	cfg config.EntitlementConfig,
) *AdminStore {
	if publisher == nil {
		publisher = events.Nop{}
	}

	return &AdminStore{
		repo:      repo,
		catalog:   cat,
		publisher: publisher,
		failOpen:  cfg.FailOpenOnMissingSchema,
		tracer:    otel.Tracer("course-portal/entitlement"),
	}
}

type GrantInput struct {
	UserID    string
	ProductID string
	PaymentID *string
	Notes     *string
	ActorID   string
}

// Grant activates the product for the user. Granting an already active
// product refreshes purchased_at, which also restarts the bonus delay.
func (s *AdminStore) Grant(
	ctx context.Context,
	in GrantInput,
) (*Entitlement, error) {
	ctx, span := s.tracer.Start(ctx, "entitlement.Grant", trace.WithAttributes(
		attribute.String("product_id", in.ProductID),
	))
	defer span.End()

	if !s.catalog.IsProduct(in.ProductID) {
		return nil, fmt.Errorf(
			"grant: unknown product %q: %w",
			in.ProductID,
			core.ErrInvalidInput,
		)
	}

	ent, err := s.repo.Grant(ctx, GrantParams{
		UserID:    in.UserID,
		ProductID: in.ProductID,
		PaymentID: in.PaymentID,
		Notes:     in.Notes,
		ActorID:   optional(in.ActorID),
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		if errors.Is(err, core.ErrForeignKey) {
			return nil, fmt.Errorf("grant: user: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("grant: %w", err)
	}

	grantsTotal.WithLabelValues(in.ProductID).Inc()

	events.PublishBestEffort(ctx, s.publisher, events.New(
		events.EntitlementGranted,
		map[string]any{
			"user_id":          ent.UserID,
			"product_id":       ent.ProductID,
			"purchased_at":     ent.PurchasedAt,
			"bonus_unlocks_at": ent.BonusUnlocksAt(),
			"actor_id":         in.ActorID,
		},
	))

	return ent, nil
}

// Revoke moves the pair to a terminal status. A pair that was never
// granted is left untouched and is not an error.
func (s *AdminStore) Revoke(
	ctx context.Context,
	userID, productID, reason, actorID string,
) error {
	ctx, span := s.tracer.Start(ctx, "entitlement.Revoke", trace.WithAttributes(
		attribute.String("product_id", productID),
	))
	defer span.End()

	status, coerced := NormalizeRevokeReason(reason)
	if coerced {
		slog.Warn("revoke reason coerced",
			"reason", reason,
			"status", status,
			"user_id", userID,
			"product_id", productID,
		)
	}

	updated, err := s.repo.SetStatus(ctx, userID, productID, status, optional(actorID))
	if err != nil {
		core.SetSpanError(ctx, err)
		return fmt.Errorf("revoke: %w", err)
	}

	if !updated {
		return nil
	}

	revocationsTotal.WithLabelValues(productID, status).Inc()

	events.PublishBestEffort(ctx, s.publisher, events.New(
		events.EntitlementRevoked,
		map[string]any{
			"user_id":    userID,
			"product_id": productID,
			"status":     status,
			"actor_id":   actorID,
		},
	))

	return nil
}

// HasActiveGrant is true only for a row whose status is active. When the
// entitlement table is missing and the fail-open flag is set, access is
// allowed; every other storage error fails closed.
func (s *AdminStore) HasActiveGrant(
	ctx context.Context,
	userID, productID string,
) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "entitlement.HasActiveGrant", trace.WithAttributes(
		attribute.String("product_id", productID),
	))
	defer span.End()

	status, err := s.repo.GetStatus(ctx, userID, productID)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNotFound):
		accessChecksTotal.WithLabelValues("denied").Inc()
		return false, nil
	case s.failOpen && errors.Is(err, core.ErrUndefinedTable):
		slog.Warn("entitlement table missing, failing open",
			"user_id", userID,
			"product_id", productID,
		)
		core.AddSpanEvent(ctx, "entitlement.fail_open",
			attribute.String("reason", "undefined_table"),
		)
		accessChecksTotal.WithLabelValues("fail_open").Inc()
		return true, nil
	default:
		core.SetSpanError(ctx, err)
		accessChecksTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("check access: %w", err)
	}

	if status != StatusActive {
		accessChecksTotal.WithLabelValues("denied").Inc()
		return false, nil
	}

	accessChecksTotal.WithLabelValues("granted").Inc()
	return true, nil
}

func (s *AdminStore) ListActiveProductsFor(
	ctx context.Context,
	userID string,
) ([]string, error) {
	products, err := s.repo.ListActiveProducts(ctx, userID)
	if err != nil {
		if s.failOpen && errors.Is(err, core.ErrUndefinedTable) {
			slog.Warn("entitlement table missing, failing open", "user_id", userID)
			return s.catalog.ProductIDs(), nil
		}
		return nil, fmt.Errorf("list active products: %w", err)
	}

	if products == nil {
		products = []string{}
	}

	return products, nil
}

func (s *AdminStore) ListForUser(
	ctx context.Context,
	userID string,
) ([]Entitlement, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *AdminStore) ListAll(ctx context.Context) ([]Entitlement, error) {
	return s.repo.ListAll(ctx)
}

func (s *AdminStore) CountActiveByProduct(
	ctx context.Context,
) (map[string]int, error) {
	return s.repo.CountActiveByProduct(ctx)
}

func (s *AdminStore) Scoped(userID string) *ScopedStore {
	return &ScopedStore{store: s, userID: userID}
}

// ScopedStore answers entitlement questions for a single user only.
type ScopedStore struct {
	store  *AdminStore
	userID string
}

func (s *ScopedStore) UserID() string {
	return s.userID
}

func (s *ScopedStore) HasActiveGrant(
	ctx context.Context,
	productID string,
) (bool, error) {
	return s.store.HasActiveGrant(ctx, s.userID, productID)
}

func (s *ScopedStore) ListActiveProducts(ctx context.Context) ([]string, error) {
	return s.store.ListActiveProductsFor(ctx, s.userID)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
