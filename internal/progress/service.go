// AngelaMos | 2026
// service.go

package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/course-portal/internal/core"
)

var (
	reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_reports_total",
			Help: "Watch progress reports by video",
		},
		[]string{"video"},
	)
	watchSecondsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_watch_seconds_total",
			Help: "Accumulated watch seconds across all users",
		},
	)
)

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(reportsTotal, watchSecondsTotal)
}

type Service struct {
	repo   Repository
	tracer trace.Tracer
	now    func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		tracer: otel.Tracer("course-portal/progress"),
		now:    time.Now,
	}
}

// Record folds the report into the stored state for (userID, video) and
// writes it back.
func (s *Service) Record(
	ctx context.Context,
	userID string,
	r Report,
) (*WatchProgress, error) {
	ctx, span := s.tracer.Start(ctx, "progress.Record", trace.WithAttributes(
		attribute.String("video_id", r.VideoID),
	))
	defer span.End()

	if userID == "" {
		return nil, fmt.Errorf("record progress: %w", core.ErrUnauthorized)
	}

	if err := validateReport(r); err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, userID, r.VideoID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("record progress: %w", err)
	}

	next := Accumulate(prev, userID, r, s.now().UTC())

	if err := s.repo.Upsert(ctx, &next); err != nil {
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("record progress: %w", err)
	}

	reportsTotal.WithLabelValues(r.VideoID).Inc()
	if prev != nil {
		watchSecondsTotal.Add(float64(next.TotalWatchSeconds - prev.TotalWatchSeconds))
	} else {
		watchSecondsTotal.Add(float64(next.TotalWatchSeconds))
	}

	return &next, nil
}

// Get returns nil without error when the user has no record for the video.
func (s *Service) Get(
	ctx context.Context,
	userID, videoID string,
) (*WatchProgress, error) {
	p, err := s.repo.Get(ctx, userID, videoID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) SummaryForUser(
	ctx context.Context,
	userID string,
) (Summary, error) {
	return s.repo.SummaryForUser(ctx, userID)
}

func (s *Service) SummaryByUser(
	ctx context.Context,
) (map[string]Summary, error) {
	return s.repo.SummaryByUser(ctx)
}

func validateReport(r Report) error {
	for name, v := range map[string]float64{
		"current_time": r.Position,
		"duration":     r.Duration,
		"progress":     r.Progress,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.ValidationError(name + " must be a finite number")
		}
		if v < 0 {
			return core.ValidationError(name + " must not be negative")
		}
	}

	if r.Progress > 1 {
		return core.ValidationError("progress must be between 0 and 1")
	}
	if r.Position > MaxVideoSeconds || r.Duration > MaxVideoSeconds {
		return core.ValidationError("current_time and duration must not exceed 86400 seconds")
	}

	return nil
}
