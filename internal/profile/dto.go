// AngelaMos | 2026
// dto.go

package profile

import (
	"time"
)

type UpdateMeRequest struct {
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=200"`
}

type MeResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   *string    `json:"full_name"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at"`
}

func ToMeResponse(p *Profile) MeResponse {
	return MeResponse{
		ID:         p.ID,
		Email:      p.Email,
		FullName:   p.FullName,
		Role:       p.Role,
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt,
		LastSeenAt: p.LastSeenAt,
	}
}
