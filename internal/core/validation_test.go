// AngelaMos | 2026
// validation_test.go

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type signup struct {
	Email       string `json:"email"        validate:"required,email"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
	Role        string `json:"role"         validate:"omitempty,oneof=member admin"`
}

func TestFormatValidationError(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name string
		in   signup
		want string
	}{
		{"missing email", signup{NewPassword: "secret1"}, "email is required"},
		{"bad email", signup{Email: "nope", NewPassword: "secret1"}, "email must be a valid email address"},
		{"short password", signup{Email: "a@b.co", NewPassword: "123"}, "new_password must be at least 6 characters"},
		{"bad role", signup{Email: "a@b.co", NewPassword: "secret1", Role: "owner"}, "role must be one of: member, admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValidationError(v.Struct(tt.in)))
		})
	}

	assert.NoError(t, v.Struct(signup{Email: "a@b.co", NewPassword: "secret1"}))
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
	assert.False(t, IsUUID("not-a-uuid"))
	assert.False(t, IsUUID(""))
}
