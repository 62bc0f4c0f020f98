// AngelaMos | 2026
// repository.go

package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/course-portal/internal/core"
)

type Repository interface {
	Get(ctx context.Context, userID, videoID string) (*WatchProgress, error)
	Upsert(ctx context.Context, p *WatchProgress) error
	SummaryForUser(ctx context.Context, userID string) (Summary, error)
	SummaryByUser(ctx context.Context) (map[string]Summary, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Get(
	ctx context.Context,
	userID, videoID string,
) (*WatchProgress, error) {
	query := `
		SELECT user_id, video_id, playback_position, duration, progress,
		       is_completed, completed_at, last_watched_at,
		       total_watch_seconds, session_count
		FROM watch_progress
		WHERE user_id = $1 AND video_id = $2`

	var p WatchProgress
	err := r.db.GetContext(ctx, &p, query, userID, videoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get progress: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", core.ClassifyPgError(err))
	}

	return &p, nil
}

// Upsert writes the full row keyed by (user_id, video_id). Concurrent
// reports for the same pair are last-write-wins.
func (r *repository) Upsert(ctx context.Context, p *WatchProgress) error {
	query := `
		INSERT INTO watch_progress (
			user_id, video_id, playback_position, duration, progress,
			is_completed, completed_at, last_watched_at,
			total_watch_seconds, session_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (user_id, video_id) DO UPDATE SET
			playback_position = EXCLUDED.playback_position,
			duration = EXCLUDED.duration,
			progress = EXCLUDED.progress,
			is_completed = EXCLUDED.is_completed,
			completed_at = EXCLUDED.completed_at,
			last_watched_at = EXCLUDED.last_watched_at,
			total_watch_seconds = EXCLUDED.total_watch_seconds,
			session_count = EXCLUDED.session_count,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		p.UserID,
		p.VideoID,
		p.PlaybackPosition,
		p.Duration,
		p.Progress,
		p.IsCompleted,
		p.CompletedAt,
		p.LastWatchedAt,
		p.TotalWatchSeconds,
		p.SessionCount,
	)
	if err != nil {
		err = core.ClassifyPgError(err)
		if errors.Is(err, core.ErrForeignKey) {
			return fmt.Errorf("upsert progress: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert progress: %w", err)
	}

	return nil
}

func (r *repository) SummaryForUser(
	ctx context.Context,
	userID string,
) (Summary, error) {
	query := `
		SELECT $1::uuid::text AS user_id,
		       COALESCE(SUM(total_watch_seconds), 0) AS total_watch_seconds,
		       COUNT(*) FILTER (WHERE is_completed) AS completed_videos
		FROM watch_progress
		WHERE user_id = $1`

	var s Summary
	if err := r.db.GetContext(ctx, &s, query, userID); err != nil {
		return Summary{}, fmt.Errorf("summarize progress: %w", core.ClassifyPgError(err))
	}

	return s, nil
}

func (r *repository) SummaryByUser(
	ctx context.Context,
) (map[string]Summary, error) {
	query := `
		SELECT user_id,
		       COALESCE(SUM(total_watch_seconds), 0) AS total_watch_seconds,
		       COUNT(*) FILTER (WHERE is_completed) AS completed_videos
		FROM watch_progress
		GROUP BY user_id`

	var rows []Summary
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("summarize progress: %w", core.ClassifyPgError(err))
	}

	out := make(map[string]Summary, len(rows))
	for _, s := range rows {
		out[s.UserID] = s
	}

	return out, nil
}
