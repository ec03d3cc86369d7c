package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/modules/analytics"
)

// DefaultRefreshTimeout bounds one universe refresh
const DefaultRefreshTimeout = 15 * time.Minute

// UniverseRefresher regenerates stored recommendations. Implemented by *analytics.Service.
type UniverseRefresher interface {
	RefreshUniverseRecommendations(ctx context.Context) (*analytics.RefreshReport, error)
}

// RefreshRecommendationsJob regenerates the technical recommendation of every stock
type RefreshRecommendationsJob struct {
	log       zerolog.Logger
	refresher UniverseRefresher
	timeout   time.Duration
}

// NewRefreshRecommendationsJob creates a new RefreshRecommendationsJob
func NewRefreshRecommendationsJob(refresher UniverseRefresher) *RefreshRecommendationsJob {
	return &RefreshRecommendationsJob{
		log:       zerolog.Nop(),
		refresher: refresher,
		timeout:   DefaultRefreshTimeout,
	}
}

// SetLogger sets the logger for the job
func (j *RefreshRecommendationsJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *RefreshRecommendationsJob) Name() string {
	return "refresh_recommendations"
}

// Run executes the refresh. It fails only when nothing could be stored.
func (j *RefreshRecommendationsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.refresher.RefreshUniverseRecommendations(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh recommendations: %w", err)
	}

	if len(report.Failed) > 0 && len(report.Generated) == 0 {
		return fmt.Errorf("failed to store any of %d recommendations", len(report.Failed))
	}

	j.log.Info().
		Int("generated", len(report.Generated)).
		Strs("skipped", report.Skipped).
		Strs("failed", report.Failed).
		Msg("Recommendation refresh completed")

	return nil
}
