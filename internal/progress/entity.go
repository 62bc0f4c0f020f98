// AngelaMos | 2026
// entity.go

package progress

import (
	"math"
	"time"
)

// MaxVideoSeconds bounds any position or duration a player may report.
const MaxVideoSeconds = 24 * 60 * 60

type WatchProgress struct {
	UserID            string     `db:"user_id"`
	VideoID           string     `db:"video_id"`
	PlaybackPosition  float64    `db:"playback_position"`
	Duration          float64    `db:"duration"`
	Progress          float64    `db:"progress"`
	IsCompleted       bool       `db:"is_completed"`
	CompletedAt       *time.Time `db:"completed_at"`
	LastWatchedAt     time.Time  `db:"last_watched_at"`
	TotalWatchSeconds int64      `db:"total_watch_seconds"`
	SessionCount      int        `db:"session_count"`
}

type Summary struct {
	UserID            string `db:"user_id"`
	TotalWatchSeconds int64  `db:"total_watch_seconds"`
	CompletedVideos   int    `db:"completed_videos"`
}

// Report is one playback heartbeat from the player.
type Report struct {
	VideoID     string
	Position    float64
	Duration    float64
	Progress    float64
	IsCompleted bool
}

// Accumulate folds a report into the previous state. prev is nil for the
// first report on a (user, video) pair.
//
// Watch time only grows by forward movement since the last report, so
// seeking backwards adds nothing. session_count is set on the first write
// and left alone afterwards. Completion is sticky: once a video is
// completed, later reports keep is_completed and the original
// completed_at.
func Accumulate(
	prev *WatchProgress,
	userID string,
	r Report,
	now time.Time,
) WatchProgress {
	next := WatchProgress{
		UserID:           userID,
		VideoID:          r.VideoID,
		PlaybackPosition: r.Position,
		Duration:         r.Duration,
		Progress:         r.Progress,
		IsCompleted:      r.IsCompleted,
		LastWatchedAt:    now,
	}

	var prevPosition float64
	if prev != nil {
		prevPosition = prev.PlaybackPosition
		next.TotalWatchSeconds = prev.TotalWatchSeconds
		next.SessionCount = prev.SessionCount
		next.CompletedAt = prev.CompletedAt
		next.IsCompleted = next.IsCompleted || prev.IsCompleted
	} else {
		next.SessionCount = 1
	}

	next.TotalWatchSeconds = addSeconds(next.TotalWatchSeconds, watchDelta(prevPosition, r.Position))

	if next.IsCompleted && next.CompletedAt == nil {
		completed := now
		next.CompletedAt = &completed
	}

	return next
}

// watchDelta is clamped to [0, MaxVideoSeconds] before conversion so that
// out-of-range floats never reach int64.
func watchDelta(prev, current float64) int64 {
	d := math.Round(current - prev)
	if math.IsNaN(d) || d <= 0 {
		return 0
	}
	return int64(math.Min(d, MaxVideoSeconds))
}

// addSeconds saturates at math.MaxInt64.
func addSeconds(total, delta int64) int64 {
	if delta > math.MaxInt64-total {
		return math.MaxInt64
	}
	return total + delta
}
