// AngelaMos | 2026
// entity.go

package profile

import (
	"time"
)

type Profile struct {
	ID         string     `db:"id"`
	Email      string     `db:"email"`
	FullName   *string    `db:"full_name"`
	Role       string     `db:"role"`
	IsActive   bool       `db:"is_active"`
	Notes      *string    `db:"notes"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
	LastSeenAt *time.Time `db:"last_seen_at"`
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

func ValidRole(role string) bool {
	return role == RoleMember || role == RoleAdmin
}

// Changes lists the profile fields an administrator may edit. Nil means
// leave the column alone; a Clear flag sets it to NULL and wins over the
// matching pointer.
type Changes struct {
	FullName      *string
	ClearFullName bool
	Role          *string
	IsActive      *bool
	Notes         *string
	ClearNotes    bool
}

func (c Changes) IsEmpty() bool {
	return c.FullName == nil && !c.ClearFullName &&
		c.Role == nil && c.IsActive == nil &&
		c.Notes == nil && !c.ClearNotes
}
