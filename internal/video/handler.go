// AngelaMos | 2026
// handler.go

package video

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/course-portal/internal/catalog"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

// Grants is the caller-scoped view of the entitlement store.
type Grants interface {
	HasActiveGrant(ctx context.Context, productID string) (bool, error)
	ListActiveProducts(ctx context.Context) ([]string, error)
}

// ScopeFunc binds the entitlement store to one user.
type ScopeFunc func(userID string) Grants

type Handler struct {
	catalog *catalog.Catalog
	scope   ScopeFunc
	thumbs  *Thumbnails
}

func NewHandler(cat *catalog.Catalog, scope ScopeFunc, thumbs *Thumbnails) *Handler {
	return &Handler{
		catalog: cat,
		scope:   scope,
		thumbs:  thumbs,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/catalog", h.GetCatalog)
		r.Get("/video/{slug}", h.GetVideo)
		r.Get("/thumb/{slug}", h.GetThumbnail)
	})
}

// GetVideo resolves a slug to its YouTube ID for callers holding an active
// grant on the owning product.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	v, ok := h.catalog.Video(chi.URLParam(r, "slug"))
	if !ok {
		core.NotFound(w, "video")
		return
	}

	allowed, err := h.scope(userID).HasActiveGrant(r.Context(), v.ProductID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	if !allowed {
		slog.Info("video access denied",
			"user_id", userID,
			"video", v.Slug,
			"product_id", v.ProductID,
		)
		core.Forbidden(w, "you do not have access to this content")
		return
	}

	core.PrivateNoStore(w)
	core.OK(w, VideoResponse{YouTubeID: v.YouTubeID})
}

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	unlocked, err := h.scope(userID).ListActiveProducts(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	resp := CatalogResponse{
		Products: make([]ProductEntry, 0, len(h.catalog.Products())),
		Videos:   make([]VideoEntry, 0, len(h.catalog.Videos())),
	}

	for _, p := range h.catalog.Products() {
		resp.Products = append(resp.Products, ProductEntry{
			ID:       p.ID,
			Name:     p.Name,
			FullName: p.FullName,
			Unlocked: slices.Contains(unlocked, p.ID),
		})
	}

	for _, v := range h.catalog.Videos() {
		resp.Videos = append(resp.Videos, VideoEntry{
			ID:        v.Slug,
			Title:     v.Title,
			ProductID: v.ProductID,
			Category:  v.Category,
			Duration:  v.Duration,
			Level:     v.Level,
			Unlocked:  slices.Contains(unlocked, v.ProductID),
		})
	}

	core.PrivateNoStore(w)
	core.OK(w, resp)
}

func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	v, ok := h.catalog.Video(chi.URLParam(r, "slug"))
	if !ok {
		core.NotFound(w, "video")
		return
	}

	data, err := h.thumbs.Get(r.Context(), v.YouTubeID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "thumbnail")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400, stale-while-revalidate=604800")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may have disconnected
	_, _ = w.Write(data)
}
