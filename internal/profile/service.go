// AngelaMos | 2026
// service.go

package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetRole always reads storage. It backs the admin role gate, so the
// result must never come from a token or a cache.
func (s *Service) GetRole(ctx context.Context, userID string) (string, error) {
	return s.repo.GetRole(ctx, userID)
}

func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return s.repo.GetByEmail(ctx, strings.TrimSpace(email))
}

func (s *Service) Upsert(
	ctx context.Context,
	id, email string,
	fullName *string,
	role string,
) (*Profile, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf(
			"upsert profile: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	p := &Profile{
		ID:       id,
		Email:    strings.ToLower(strings.TrimSpace(email)),
		FullName: fullName,
		Role:     role,
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, changes Changes) error {
	if changes.Role != nil && !ValidRole(*changes.Role) {
		return fmt.Errorf(
			"update profile: invalid role %q: %w",
			*changes.Role,
			core.ErrInvalidInput,
		)
	}

	if changes.IsEmpty() {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		return nil
	}

	return s.repo.Update(ctx, id, changes)
}

func (s *Service) TouchLastSeen(ctx context.Context, id string) error {
	return s.repo.TouchLastSeen(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Profile, error) {
	return s.repo.List(ctx)
}

func (s *Service) CountByRole(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByRole(ctx)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateMeRequest,
) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	if err := s.repo.Update(ctx, userID, Changes{FullName: req.FullName}); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, userID)
}

var _ middleware.RoleLookup = (*Service)(nil)
