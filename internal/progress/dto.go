// AngelaMos | 2026
// dto.go

package progress

import (
	"time"
)

type ReportRequest struct {
	VideoID     string   `json:"video_id"     validate:"required,catalog_video"`
	CurrentTime *float64 `json:"current_time" validate:"required,gte=0,lte=86400"`
	Duration    *float64 `json:"duration"     validate:"required,gte=0,lte=86400"`
	Progress    *float64 `json:"progress"     validate:"required,gte=0,lte=1"`
	IsCompleted *bool    `json:"is_completed"`
}

func (r ReportRequest) ToReport() Report {
	rep := Report{
		VideoID:  r.VideoID,
		Position: *r.CurrentTime,
		Duration: *r.Duration,
		Progress: *r.Progress,
	}
	if r.IsCompleted != nil {
		rep.IsCompleted = *r.IsCompleted
	}
	return rep
}

type ProgressResponse struct {
	UserID            string     `json:"user_id"`
	VideoID           string     `json:"video_id"`
	PlaybackPosition  float64    `json:"playback_position"`
	CurrentTime       float64    `json:"current_time"`
	Duration          float64    `json:"duration"`
	Progress          float64    `json:"progress"`
	IsCompleted       bool       `json:"is_completed"`
	CompletedAt       *time.Time `json:"completed_at"`
	LastWatchedAt     time.Time  `json:"last_watched_at"`
	TotalWatchSeconds int64      `json:"total_watch_seconds"`
	SessionCount      int        `json:"session_count"`
}

type GetProgressResponse struct {
	Progress *ProgressResponse `json:"progress"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

// ToProgressResponse exposes playback_position a second time as
// current_time, the name the player reads.
func ToProgressResponse(p *WatchProgress) *ProgressResponse {
	if p == nil {
		return nil
	}
	return &ProgressResponse{
		UserID:            p.UserID,
		VideoID:           p.VideoID,
		PlaybackPosition:  p.PlaybackPosition,
		CurrentTime:       p.PlaybackPosition,
		Duration:          p.Duration,
		Progress:          p.Progress,
		IsCompleted:       p.IsCompleted,
		CompletedAt:       p.CompletedAt,
		LastWatchedAt:     p.LastWatchedAt,
		TotalWatchSeconds: p.TotalWatchSeconds,
		SessionCount:      p.SessionCount,
	}
}
