// AngelaMos | 2026
// repository.go

package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/course-portal/internal/core"
)

type GrantParams struct {
	UserID    string
	ProductID string
	PaymentID *string
	Notes     *string
	ActorID   *string
}

type Repository interface {
	Grant(ctx context.Context, params GrantParams) (*Entitlement, error)
	SetStatus(
		ctx context.Context,
		userID, productID, status string,
		actorID *string,
	) (bool, error)
	GetStatus(ctx context.Context, userID, productID string) (string, error)
	ListActiveProducts(ctx context.Context, userID string) ([]string, error)
	ListForUser(ctx context.Context, userID string) ([]Entitlement, error)
	ListAll(ctx context.Context) ([]Entitlement, error)
	CountActiveByProduct(ctx context.Context) (map[string]int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const entitlementColumns = `
	id, user_id, product_id, status, purchased_at, expires_at,
	payment_id, payment_platform, notes, created_at, updated_at`

// Grant upserts the (user, product) row back to active with a fresh
// purchase time and records the change in the same transaction.
func (r *repository) Grant(
	ctx context.Context,
	params GrantParams,
) (*Entitlement, error) {
	query := `
		INSERT INTO user_products (
			user_id, product_id, status, purchased_at,
			payment_id, payment_platform, notes
		) VALUES (
			$1, $2, 'active', NOW(), $3, $4, $5
		)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			status = 'active',
			purchased_at = NOW(),
			expires_at = NULL,
			payment_id = EXCLUDED.payment_id,
			payment_platform = EXCLUDED.payment_platform,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING` + entitlementColumns

	var ent Entitlement
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &ent, query,
			params.UserID,
			params.ProductID,
			params.PaymentID,
			PlatformAdmin,
			params.Notes,
		); err != nil {
			return err
		}

		return insertEvent(ctx, tx, ChangeEvent{
			UserID:    params.UserID,
			ProductID: params.ProductID,
			Action:    ActionGranted,
			Status:    StatusActive,
			ActorID:   params.ActorID,
			PaymentID: params.PaymentID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("grant entitlement: %w", core.ClassifyPgError(err))
	}

	return &ent, nil
}

// SetStatus reports false when no row exists for the pair.
func (r *repository) SetStatus(
	ctx context.Context,
	userID, productID, status string,
	actorID *string,
) (bool, error) {
	query := `
		UPDATE user_products
		SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND product_id = $2`

	var updated bool
	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query, userID, productID, status)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		updated = true

		reason := status
		return insertEvent(ctx, tx, ChangeEvent{
			UserID:    userID,
			ProductID: productID,
			Action:    ActionRevoked,
			Status:    status,
			Reason:    &reason,
			ActorID:   actorID,
		})
	})
	if err != nil {
		return false, fmt.Errorf("set entitlement status: %w", core.ClassifyPgError(err))
	}

	return updated, nil
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, ev ChangeEvent) error {
	query := `
		INSERT INTO user_product_events (
			user_id, product_id, action, status, reason, actor_id, payment_id
		) VALUES (
			:user_id, :product_id, :action, :status, :reason, :actor_id, :payment_id
		)`

	if _, err := tx.NamedExecContext(ctx, query, ev); err != nil {
		return fmt.Errorf("append entitlement event: %w", err)
	}
	return nil
}

func (r *repository) GetStatus(
	ctx context.Context,
	userID, productID string,
) (string, error) {
	query := `
		SELECT status
		FROM user_products
		WHERE user_id = $1 AND product_id = $2`

	var status string
	err := r.db.GetContext(ctx, &status, query, userID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get entitlement status: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get entitlement status: %w", core.ClassifyPgError(err))
	}

	return status, nil
}

func (r *repository) ListActiveProducts(
	ctx context.Context,
	userID string,
) ([]string, error) {
	query := `
		SELECT product_id
		FROM user_products
		WHERE user_id = $1 AND status = 'active'
		ORDER BY product_id`

	var products []string
	if err := r.db.SelectContext(ctx, &products, query, userID); err != nil {
		return nil, fmt.Errorf("list active products: %w", core.ClassifyPgError(err))
	}

	return products, nil
}

func (r *repository) ListForUser(
	ctx context.Context,
	userID string,
) ([]Entitlement, error) {
	query := `SELECT` + entitlementColumns + `
		FROM user_products
		WHERE user_id = $1
		ORDER BY purchased_at DESC`

	var ents []Entitlement
	if err := r.db.SelectContext(ctx, &ents, query, userID); err != nil {
		return nil, fmt.Errorf("list user entitlements: %w", core.ClassifyPgError(err))
	}

	return ents, nil
}

func (r *repository) ListAll(ctx context.Context) ([]Entitlement, error) {
	query := `SELECT` + entitlementColumns + `
		FROM user_products
		ORDER BY user_id, purchased_at DESC`

	var ents []Entitlement
	if err := r.db.SelectContext(ctx, &ents, query); err != nil {
		return nil, fmt.Errorf("list entitlements: %w", core.ClassifyPgError(err))
	}

	return ents, nil
}

func (r *repository) CountActiveByProduct(
	ctx context.Context,
) (map[string]int, error) {
	query := `
		SELECT product_id, COUNT(*) AS total
		FROM user_products
		WHERE status = 'active'
		GROUP BY product_id`

	var rows []struct {
		ProductID string `db:"product_id"`
		Total     int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count active entitlements: %w", core.ClassifyPgError(err))
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ProductID] = row.Total
	}

	return counts, nil
}
