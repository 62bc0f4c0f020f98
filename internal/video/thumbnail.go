// AngelaMos | 2026
// thumbnail.go

package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/course-portal/internal/config"
	"github.com/carterperez-dev/course-portal/internal/core"
)

const (
	thumbKeyPrefix = "thumb:"
	maxThumbBytes  = 2 << 20
)

var (
	thumbVariants = []string{"maxresdefault.jpg", "hqdefault.jpg"}

	errThumbTooLarge = errors.New("thumbnail exceeds size limit")
)

// ThumbCache stores fetched images. CachedBytes reports a miss as
// core.ErrNotFound.
type ThumbCache interface {
	CachedBytes(ctx context.Context, key string) ([]byte, error)
	CacheBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Thumbnails proxies poster images so YouTube IDs stay server-side.
type Thumbnails struct {
	client  *http.Client
	cache   ThumbCache
	baseURL string
	ttl     time.Duration
}

func NewThumbnails(cache ThumbCache, cfg config.ThumbnailConfig) *Thumbnails {
	return &Thumbnails{
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		cache:   cache,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     cfg.CacheTTL,
	}
}

// Get returns the JPEG for the video, trying the high resolution variant
// first. A nil cache disables caching.
func (t *Thumbnails) Get(ctx context.Context, youtubeID string) ([]byte, error) {
	key := thumbKeyPrefix + youtubeID

	if t.cache != nil {
		data, err := t.cache.CachedBytes(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			slog.Warn("thumbnail cache read failed", "key", key, "error", err)
		}
	}

	for _, variant := range thumbVariants {
		data, err := t.fetch(ctx, fmt.Sprintf("%s/%s/%s", t.baseURL, youtubeID, variant))
		if err != nil {
			slog.Debug("thumbnail variant unavailable",
				"youtube_id", youtubeID,
				"variant", variant,
				"error", err,
			)
			continue
		}

		if t.cache != nil {
			if err := t.cache.CacheBytes(ctx, key, data, t.ttl); err != nil {
				slog.Warn("thumbnail cache write failed", "key", key, "error", err)
			}
		}
		return data, nil
	}

	return nil, fmt.Errorf("thumbnail %s: %w", youtubeID, core.ErrNotFound)
}

func (t *Thumbnails) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	// one byte past the limit tells a full image from a truncated one
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxThumbBytes {
		return nil, errThumbTooLarge
	}
	return data, nil
}
