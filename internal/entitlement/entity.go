// AngelaMos | 2026
// entity.go

package entitlement

import (
	"time"
)

const (
	StatusActive   = "active"
	StatusRevoked  = "revoked"
	StatusRefunded = "refunded"
	StatusExpired  = "expired"
)

const (
	ActionGranted = "granted"
	ActionRevoked = "revoked"
)

const PlatformAdmin = "admin"

// BonusDelay is how long after purchase the bonus material unlocks.
const BonusDelay = 7 * 24 * time.Hour

type Entitlement struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	ProductID       string     `db:"product_id"`
	Status          string     `db:"status"`
	PurchasedAt     time.Time  `db:"purchased_at"`
	ExpiresAt       *time.Time `db:"expires_at"`
	PaymentID       *string    `db:"payment_id"`
	PaymentPlatform string     `db:"payment_platform"`
	Notes           *string    `db:"notes"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (e *Entitlement) IsActive() bool {
	return e.Status == StatusActive
}

func (e *Entitlement) BonusUnlocksAt() time.Time {
	return e.PurchasedAt.Add(BonusDelay)
}

func (e *Entitlement) BonusUnlocked(now time.Time) bool {
	return !now.Before(e.BonusUnlocksAt())
}

// ChangeEvent is one row of the append-only user_product_events log.
type ChangeEvent struct {
	UserID    string  `db:"user_id"`
	ProductID string  `db:"product_id"`
	Action    string  `db:"action"`
	Status    string  `db:"status"`
	Reason    *string `db:"reason"`
	ActorID   *string `db:"actor_id"`
	PaymentID *string `db:"payment_id"`
}

// NormalizeRevokeReason maps a free-form reason onto a terminal status.
// Anything outside revoked, refunded and expired becomes revoked; the
// second return reports whether that coercion happened.
func NormalizeRevokeReason(reason string) (string, bool) {
	switch reason {
	case StatusRevoked, StatusRefunded, StatusExpired:
		return reason, false
	}
	return StatusRevoked, true
}
