// AngelaMos | 2026
// directory.go

package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/course-portal/internal/auth"
	"github.com/carterperez-dev/course-portal/internal/catalog"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/entitlement"
	"github.com/carterperez-dev/course-portal/internal/profile"
	"github.com/carterperez-dev/course-portal/internal/progress"
)

const defaultMinPasswordLength = 6

var (
	ErrSelfDelete  = errors.New("cannot delete own account")
	ErrAdminTarget = errors.New("cannot delete another administrator")
	ErrEmailTaken  = errors.New("email rejected by identity provider")
)

// IdentityProvider is the privileged account API.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string, fullName *string) (string, error)
	UpdatePassword(ctx context.Context, userID, newPassword string) error
	DeleteAccount(ctx context.Context, userID string) error
}

type Profiles interface {
	Get(ctx context.Context, id string) (*profile.Profile, error)
	GetRole(ctx context.Context, id string) (string, error)
	Upsert(ctx context.Context, id, email string, fullName *string, role string) (*profile.Profile, error)
	Update(ctx context.Context, id string, changes profile.Changes) error
	List(ctx context.Context) ([]profile.Profile, error)
	CountByRole(ctx context.Context) (map[string]int, error)
}

type Entitlements interface {
	Grant(ctx context.Context, in entitlement.GrantInput) (*entitlement.Entitlement, error)
	Revoke(ctx context.Context, userID, productID, reason, actorID string) error
	ListForUser(ctx context.Context, userID string) ([]entitlement.Entitlement, error)
	ListAll(ctx context.Context) ([]entitlement.Entitlement, error)
	CountActiveByProduct(ctx context.Context) (map[string]int, error)
}

type ProgressSummaries interface {
	SummaryForUser(ctx context.Context, userID string) (progress.Summary, error)
	SummaryByUser(ctx context.Context) (map[string]progress.Summary, error)
}

// PartialError reports a mutation that succeeded in the identity provider
// but failed afterwards. Nothing is rolled back.
type PartialError struct {
	Code   string
	UserID string
	Err    error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s: user %s: %v", e.Code, e.UserID, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

type CreateInput struct {
	Email    string
	Password string
	FullName *string
	Role     string
	Products []string
	ActorID  string
}

// UpdateInput carries a partial edit. A nil pointer leaves the field
// alone; the Clear flags null the column. An empty NewPassword is no change.
type UpdateInput struct {
	FullName      *string
	ClearFullName bool
	Role          *string
	IsActive      *bool
	Notes         *string
	ClearNotes    bool
	NewPassword   *string
}

func (in UpdateInput) changes() profile.Changes {
	return profile.Changes{
		FullName:      in.FullName,
		ClearFullName: in.ClearFullName,
		Role:          in.Role,
		IsActive:      in.IsActive,
		Notes:         in.Notes,
		ClearNotes:    in.ClearNotes,
	}
}

// Directory aggregates identity, profile, entitlement and progress data
// for administrators. Callers must have passed the admin role gate.
type Directory struct {
	idp          IdentityProvider
	profiles     Profiles
	entitlements Entitlements
	progress     ProgressSummaries
	catalog      *catalog.Catalog
	minPassword  int
	now          func() time.Time
	tracer       trace.Tracer
}

// NewDirectory enforces minPasswordLength on admin-set passwords, falling
// back to 6 when it is not positive.
func NewDirectory(
	idp IdentityProvider,
	profiles Profiles,
	entitlements Entitlements,
	summaries ProgressSummaries,
	cat *catalog.Catalog,
	minPasswordLength int,
) *Directory {
	if minPasswordLength <= 0 {
		minPasswordLength = defaultMinPasswordLength
	}

	return &Directory{
		idp:          idp,
		profiles:     profiles,
		entitlements: entitlements,
		progress:     summaries,
		catalog:      cat,
		minPassword:  minPasswordLength,
		now:          time.Now,
		tracer:       otel.Tracer("course-portal/admin"),
	}
}

func (d *Directory) List(ctx context.Context) ([]UserRow, error) {
	ctx, span := d.tracer.Start(ctx, "admin.List")
	defer span.End()

	profiles, err := d.profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	grants, err := d.entitlements.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	summaries, err := d.progress.SummaryByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	byUser := make(map[string][]entitlement.Entitlement)
	for _, g := range grants {
		byUser[g.UserID] = append(byUser[g.UserID], g)
	}

	rows := make([]UserRow, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		rows = append(rows, d.row(p, byUser[p.ID], summaries[p.ID]))
	}

	span.SetAttributes(attribute.Int("users", len(rows)))
	return rows, nil
}

func (d *Directory) Get(ctx context.Context, id string) (*UserRow, error) {
	if !core.IsUUID(id) {
		return nil, fmt.Errorf("get user: malformed id: %w", core.ErrInvalidInput)
	}

	p, err := d.profiles.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	grants, err := d.entitlements.ListForUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	summary, err := d.progress.SummaryForUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	row := d.row(p, grants, summary)
	return &row, nil
}

// Create validates everything up front so a rejected request never reaches
// the identity provider.
func (d *Directory) Create(ctx context.Context, in CreateInput) (string, error) {
	ctx, span := d.tracer.Start(ctx, "admin.Create")
	defer span.End()

	if in.Role == "" {
		in.Role = profile.RoleMember
	}
	if !profile.ValidRole(in.Role) {
		return "", fmt.Errorf("create user: invalid role: %w", core.ErrInvalidInput)
	}
	if len(in.Password) < d.minPassword {
		return "", fmt.Errorf("create user: %w", auth.ErrWeakPassword)
	}
	for _, productID := range in.Products {
		if !d.catalog.IsProduct(productID) {
			return "", fmt.Errorf(
				"create user: unknown product %q: %w",
				productID,
				core.ErrInvalidInput,
			)
		}
	}

	userID, err := d.idp.CreateAccount(ctx, in.Email, in.Password, in.FullName)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			return "", fmt.Errorf("create user: %w", ErrEmailTaken)
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	if _, err := d.profiles.Upsert(ctx, userID, in.Email, in.FullName, in.Role); err != nil {
		return "", &PartialError{Code: "USER_CREATED_PROFILE_FAILED", UserID: userID, Err: err}
	}

	for _, productID := range in.Products {
		_, err := d.entitlements.Grant(ctx, entitlement.GrantInput{
			UserID:    userID,
			ProductID: productID,
			ActorID:   in.ActorID,
		})
		if err != nil {
			return "", &PartialError{Code: "USER_CREATED_GRANT_FAILED", UserID: userID, Err: err}
		}
	}

	slog.Info("user created",
		"user_id", userID,
		"role", in.Role,
		"products", len(in.Products),
		"actor_id", in.ActorID,
	)

	return userID, nil
}

// Update applies the password change first. A profile failure after a
// successful password change comes back as a PartialError.
func (d *Directory) Update(ctx context.Context, id string, in UpdateInput) error {
	if !core.IsUUID(id) {
		return fmt.Errorf("update user: malformed id: %w", core.ErrInvalidInput)
	}
	if in.Role != nil && !profile.ValidRole(*in.Role) {
		return fmt.Errorf("update user: invalid role: %w", core.ErrInvalidInput)
	}
	if in.NewPassword != nil && *in.NewPassword == "" {
		in.NewPassword = nil
	}
	if in.NewPassword != nil && len(*in.NewPassword) < d.minPassword {
		return fmt.Errorf("update user: %w", auth.ErrWeakPassword)
	}

	passwordChanged := false
	if in.NewPassword != nil {
		if err := d.idp.UpdatePassword(ctx, id, *in.NewPassword); err != nil {
			return fmt.Errorf("update user password: %w", err)
		}
		passwordChanged = true
	}

	if err := d.profiles.Update(ctx, id, in.changes()); err != nil {
		if passwordChanged {
			return &PartialError{Code: "PASSWORD_UPDATED_PROFILE_FAILED", UserID: id, Err: err}
		}
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (d *Directory) Delete(ctx context.Context, callerID, id string) error {
	if !core.IsUUID(id) {
		return fmt.Errorf("delete user: malformed id: %w", core.ErrInvalidInput)
	}
	if id == callerID {
		return ErrSelfDelete
	}

	role, err := d.profiles.GetRole(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if role == profile.RoleAdmin {
		return ErrAdminTarget
	}

	if err := d.idp.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	slog.Info("user deleted", "user_id", id, "actor_id", callerID)
	return nil
}

func (d *Directory) GrantProduct(
	ctx context.Context,
	id string,
	req GrantRequest,
	actorID string,
) error {
	if !core.IsUUID(id) {
		return fmt.Errorf("grant product: malformed id: %w", core.ErrInvalidInput)
	}

	_, err := d.entitlements.Grant(ctx, entitlement.GrantInput{
		UserID:    id,
		ProductID: req.ProductID,
		PaymentID: req.PaymentID,
		Notes:     req.Notes,
		ActorID:   actorID,
	})
	return err
}

func (d *Directory) RevokeProduct(
	ctx context.Context,
	id string,
	req RevokeRequest,
	actorID string,
) error {
	if !core.IsUUID(id) {
		return fmt.Errorf("revoke product: malformed id: %w", core.ErrInvalidInput)
	}

	reason := req.Reason
	if reason == "" {
		reason = entitlement.StatusRevoked
	}

	return d.entitlements.Revoke(ctx, id, req.ProductID, reason, actorID)
}

func (d *Directory) row(
	p *profile.Profile,
	grants []entitlement.Entitlement,
	summary progress.Summary,
) UserRow {
	now := d.now()
	products := make([]ProductRow, 0, len(grants))
	for i := range grants {
		g := &grants[i]
		products = append(products, ProductRow{
			ProductID:      g.ProductID,
			ProductName:    d.catalog.ProductName(g.ProductID),
			Status:         g.Status,
			PurchasedAt:    g.PurchasedAt,
			BonusUnlocksAt: g.BonusUnlocksAt(),
			BonusUnlocked:  g.BonusUnlocked(now),
			ExpiresAt:      g.ExpiresAt,
			PaymentID:      g.PaymentID,
			Notes:          g.Notes,
		})
	}

	return UserRow{
		ID:                p.ID,
		Email:             p.Email,
		FullName:          p.FullName,
		Role:              p.Role,
		IsActive:          p.IsActive,
		Notes:             p.Notes,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		LastSeenAt:        p.LastSeenAt,
		Products:          products,
		TotalWatchSeconds: summary.TotalWatchSeconds,
		CompletedVideos:   summary.CompletedVideos,
	}
}
