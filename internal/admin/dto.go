// AngelaMos | 2026
// dto.go

package admin

import (
	"bytes"
	"encoding/json"
	"time"
)

type CreateUserRequest struct {
	Email    string   `json:"email"     validate:"required,email,max=255"`
	Password string   `json:"password"  validate:"required,max=128"`
	FullName *string  `json:"full_name" validate:"omitempty,max=200"`
	Role     string   `json:"role"      validate:"omitempty,oneof=member admin"`
	Products []string `json:"products"  validate:"omitempty,dive,catalog_product"`
}

// NullableString tells an absent key (Set false) apart from an explicit
// null (Set true, Value nil).
type NullableString struct {
	Set   bool
	Value *string
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

func (n NullableString) Len() int {
	if n.Value == nil {
		return 0
	}
	return len(*n.Value)
}

type UpdateUserRequest struct {
	FullName    NullableString `json:"full_name"`
	Role        *string        `json:"role"         validate:"omitempty,oneof=member admin"`
	IsActive    *bool          `json:"is_active"`
	Notes       NullableString `json:"notes"`
	NewPassword *string        `json:"new_password" validate:"omitempty,max=128"`
}

func (r UpdateUserRequest) ToInput() UpdateInput {
	return UpdateInput{
		FullName:      r.FullName.Value,
		ClearFullName: r.FullName.Set && r.FullName.Value == nil,
		Role:          r.Role,
		IsActive:      r.IsActive,
		Notes:         r.Notes.Value,
		ClearNotes:    r.Notes.Set && r.Notes.Value == nil,
		NewPassword:   r.NewPassword,
	}
}

type GrantRequest struct {
	ProductID string  `json:"product_id" validate:"required,catalog_product"`
	PaymentID *string `json:"payment_id" validate:"omitempty,max=255"`
	Notes     *string `json:"notes"      validate:"omitempty,max=2000"`
}

type RevokeRequest struct {
	ProductID string `json:"product_id" validate:"required,catalog_product"`
	Reason    string `json:"reason"`
}

// UserRow is the denormalized directory view of one member.
type UserRow struct {
	ID                string       `json:"id"`
	Email             string       `json:"email"`
	FullName          *string      `json:"full_name"`
	Role              string       `json:"role"`
	IsActive          bool         `json:"is_active"`
	Notes             *string      `json:"notes"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	LastSeenAt        *time.Time   `json:"last_seen_at"`
	Products          []ProductRow `json:"products"`
	TotalWatchSeconds int64        `json:"total_watch_seconds"`
	CompletedVideos   int          `json:"completed_videos"`
}

type ProductRow struct {
	ProductID      string     `json:"product_id"`
	ProductName    string     `json:"product_name"`
	Status         string     `json:"status"`
	PurchasedAt    time.Time  `json:"purchased_at"`
	BonusUnlocksAt time.Time  `json:"bonus_unlocks_at"`
	BonusUnlocked  bool       `json:"bonus_unlocked"`
	ExpiresAt      *time.Time `json:"expires_at"`
	PaymentID      *string    `json:"payment_id"`
	Notes          *string    `json:"notes"`
}

type UsersResponse struct {
	Users []UserRow `json:"users"`
}

type UserResponse struct {
	User UserRow `json:"user"`
}

type CreateUserResponse struct {
	OK     bool   `json:"ok"`
	UserID string `json:"userId"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
