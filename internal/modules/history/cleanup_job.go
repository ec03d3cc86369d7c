package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes expired histories from the cache.
// It should be scheduled to run periodically.
type CleanupJob struct {
	cache Cache
	log   zerolog.Logger
}

// NewCleanupJob creates a new history cache cleanup job
func NewCleanupJob(cache Cache, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		cache: cache,
		log:   log.With().Str("job", "history_cache_cleanup").Logger(),
	}
}

// Run removes all expired entries
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.cache.DeleteExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired histories")
		return err
	}

	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Cleaned up expired history cache entries")
	}

	return nil
}

// Name returns the job name for scheduling and logging
func (j *CleanupJob) Name() string {
	return "history_cache_cleanup"
}
