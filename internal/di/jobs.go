package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qtop/internal/config"
	"github.com/aristath/qtop/internal/modules/history"
	"github.com/aristath/qtop/internal/scheduler"
)

// RegisterJobs creates the background jobs
func RegisterJobs(container *Container, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.AnalyticsService == nil {
		return nil, fmt.Errorf("services not initialized")
	}

	refresh := scheduler.NewRefreshRecommendationsJob(container.AnalyticsService)
	refresh.SetLogger(log)

	walCheck := scheduler.NewCheckWALCheckpointsJob(container.Databases()...)
	walCheck.SetLogger(log)

	return &JobInstances{
		RefreshRecommendations: refresh,
		HistoryCacheCleanup:    history.NewCleanupJob(container.HistoryCache, log),
		CheckWALCheckpoints:    walCheck,
	}, nil
}

// ScheduleJobs registers the jobs with the scheduler using the configured schedules
func ScheduleJobs(sched *scheduler.Scheduler, jobs *JobInstances, cfg *config.Config) error {
	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.RecommendationSchedule, jobs.RefreshRecommendations},
		{cfg.CacheCleanupSchedule, jobs.HistoryCacheCleanup},
		{"0 0 * * * *", jobs.CheckWALCheckpoints}, // hourly
	}

	for _, s := range schedules {
		if err := sched.AddJob(s.spec, s.job); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", s.job.Name(), err)
		}
	}

	return nil
}
