// AngelaMos | 2026
// repository.go

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/course-portal/internal/core"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	GetRole(ctx context.Context, id string) (string, error)
	Upsert(ctx context.Context, p *Profile) error
	Update(ctx context.Context, id string, changes Changes) error
	TouchLastSeen(ctx context.Context, id string) error
	List(ctx context.Context) ([]Profile, error)
	CountByRole(ctx context.Context) (map[string]int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const profileColumns = `
	id, email, full_name, role, is_active, notes,
	created_at, updated_at, last_seen_at`

func (r *repository) GetByID(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT` + profileColumns + `
		FROM profiles
		WHERE id = $1`

	var p Profile
	err := r.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*Profile, error) {
	query := `SELECT` + profileColumns + `
		FROM profiles
		WHERE lower(email) = lower($1)`

	var p Profile
	err := r.db.GetContext(ctx, &p, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by email: %w", err)
	}

	return &p, nil
}

func (r *repository) GetRole(ctx context.Context, id string) (string, error) {
	query := `SELECT role FROM profiles WHERE id = $1`

	var role string
	err := r.db.GetContext(ctx, &role, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get role: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get role: %w", err)
	}

	return role, nil
}

// Upsert writes email, full_name and role. The row normally already exists
// because the account trigger creates it.
func (r *repository) Upsert(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (id, email, full_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role,
			updated_at = NOW()
		RETURNING is_active, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.ID,
		p.Email,
		p.FullName,
		p.Role,
	).Scan(&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		err = core.ClassifyPgError(err)
		if errors.Is(err, core.ErrForeignKey) {
			return fmt.Errorf("upsert profile: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert profile: %w", err)
	}

	return nil
}

func (r *repository) Update(
	ctx context.Context,
	id string,
	changes Changes,
) error {
	var sets []string
	var args []any
	argIdx := 1

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	switch {
	case changes.ClearFullName:
		add("full_name", nil)
	case changes.FullName != nil:
		add("full_name", *changes.FullName)
	}
	if changes.Role != nil {
		add("role", *changes.Role)
	}
	if changes.IsActive != nil {
		add("is_active", *changes.IsActive)
	}
	switch {
	case changes.ClearNotes:
		add("notes", nil)
	case changes.Notes != nil:
		add("notes", *changes.Notes)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE profiles SET %s WHERE id = $%d",
		strings.Join(sets, ", "),
		argIdx,
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update profile: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) TouchLastSeen(ctx context.Context, id string) error {
	query := `UPDATE profiles SET last_seen_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}

	return nil
}

func (r *repository) List(ctx context.Context) ([]Profile, error) {
	query := `SELECT` + profileColumns + `
		FROM profiles
		ORDER BY created_at DESC`

	var profiles []Profile
	if err := r.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	return profiles, nil
}

func (r *repository) CountByRole(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT role, COUNT(*) AS total
		FROM profiles
		GROUP BY role`

	var rows []struct {
		Role  string `db:"role"`
		Total int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Total
	}

	return counts, nil
}
