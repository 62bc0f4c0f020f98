// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/course-portal/internal/auth"
	"github.com/carterperez-dev/course-portal/internal/catalog"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

type Handler struct {
	directory  *Directory
	validator  *validator.Validate
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	redisPing  func(ctx context.Context) error
	dbPing     func(ctx context.Context) error
}

type HandlerConfig struct {
	Directory  *Directory
	Catalog    *catalog.Catalog
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	DBPing     func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	v := core.NewValidator()
	if err := cfg.Catalog.RegisterValidators(v); err != nil {
		return nil, fmt.Errorf("register catalog validators: %w", err)
	}

	return &Handler{
		directory:  cfg.Directory,
		validator:  v,
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		redisPing:  cfg.RedisPing,
		dbPing:     cfg.DBPing,
	}, nil
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly, limiter func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(limiter)
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Patch("/", h.UpdateUser)
				r.Delete("/", h.DeleteUser)

				r.Post("/products", h.GrantProduct)
				r.Delete("/products", h.RevokeProduct)
			})
		})
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.directory.List(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.PrivateNoStore(w)
	core.OK(w, UsersResponse{Users: rows})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	row, err := h.directory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.PrivateNoStore(w)
	core.OK(w, UserResponse{User: *row})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	userID, err := h.directory.Create(r.Context(), CreateInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
		Products: req.Products,
		ActorID:  middleware.GetUserID(r.Context()),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.Created(w, CreateUserResponse{OK: true, UserID: userID})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !core.IsUUID(id) {
		core.BadRequest(w, "invalid user id")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}
	if req.FullName.Len() > 200 {
		core.BadRequest(w, "full_name must be at most 200 characters")
		return
	}
	if req.Notes.Len() > 2000 {
		core.BadRequest(w, "notes must be at most 2000 characters")
		return
	}

	err := h.directory.Update(r.Context(), id, req.ToInput())
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, OKResponse{OK: true})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r.Context())

	if err := h.directory.Delete(r.Context(), callerID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, OKResponse{OK: true})
}

func (h *Handler) GrantProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !core.IsUUID(id) {
		core.BadRequest(w, "invalid user id")
		return
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if err := h.directory.GrantProduct(r.Context(), id, req, middleware.GetUserID(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}

	core.Created(w, OKResponse{OK: true})
}

func (h *Handler) RevokeProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !core.IsUUID(id) {
		core.BadRequest(w, "invalid user id")
		return
	}

	var req RevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if err := h.directory.RevokeProduct(r.Context(), id, req, middleware.GetUserID(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, OKResponse{OK: true})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var partial *PartialError

	switch {
	case errors.As(err, &partial):
		core.InternalServerErrorWithCode(w, err, partial.Code, partialMessage(partial.Code))
	case errors.Is(err, ErrSelfDelete):
		core.BadRequest(w, "you cannot delete your own account")
	case errors.Is(err, ErrAdminTarget):
		core.Forbidden(w, "administrators cannot be deleted")
	case errors.Is(err, auth.ErrWeakPassword):
		core.BadRequest(w, "password is too short")
	case errors.Is(err, ErrEmailTaken):
		core.Conflict(w, "could not create user, the email may already be registered")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid user id or field value")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
}

func partialMessage(code string) string {
	switch code {
	case "PASSWORD_UPDATED_PROFILE_FAILED":
		return "password was updated but the profile fields could not be saved"
	case "USER_CREATED_PROFILE_FAILED":
		return "account was created but its profile could not be saved"
	case "USER_CREATED_GRANT_FAILED":
		return "account was created but not every product could be granted"
	default:
		return "the operation only partially completed"
	}
}
