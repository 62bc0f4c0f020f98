// AngelaMos | 2026
// handler.go

package progress

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/course-portal/internal/catalog"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

type Handler struct {
	service   *Service
	catalog   *catalog.Catalog
	validator *validator.Validate
}

func NewHandler(service *Service, cat *catalog.Catalog) (*Handler, error) {
	v := core.NewValidator()
	if err := cat.RegisterValidators(v); err != nil {
		return nil, err
	}

	return &Handler{
		service:   service,
		catalog:   cat,
		validator: v,
	}, nil
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, limiter func(http.Handler) http.Handler,
) {
	r.Route("/progress", func(r chi.Router) {
		r.Use(limiter)
		r.Use(authenticator)

		r.Get("/", h.Get)
		r.Post("/", h.Report)
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	videoID := strings.TrimSpace(r.URL.Query().Get("video"))
	if videoID == "" {
		core.BadRequest(w, "video is required")
		return
	}
	if !h.catalog.IsVideo(videoID) {
		core.BadRequest(w, "video does not reference a known video")
		return
	}

	p, err := h.service.Get(r.Context(), userID, videoID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.PrivateNoStore(w)
	core.OK(w, GetProgressResponse{Progress: ToProgressResponse(p)})
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if _, err := h.service.Record(r.Context(), userID, req.ToReport()); err != nil {
		switch {
		case core.IsAppError(err):
			core.JSONError(w, err)
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.PrivateNoStore(w)
	core.OK(w, OKResponse{OK: true})
}
