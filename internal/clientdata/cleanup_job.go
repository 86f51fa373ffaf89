package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob removes expired entries from all client data tables.
// It runs on demand from the cache-clean command.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates a new client data cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Run removes all expired entries from all tables and returns the total deleted.
func (j *CleanupJob) Run() (int64, error) {
	results, err := j.repo.DeleteAllExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired client data")
		return 0, err
	}

	var totalDeleted int64
	for _, table := range AllTables {
		count := results[table]
		if count > 0 {
			j.log.Info().
				Str("table", table).
				Int64("deleted", count).
				Msg("Cleaned up expired cache entries")
			totalDeleted += count
		}
	}

	j.log.Info().
		Int64("total_deleted", totalDeleted).
		Msg("Client data cleanup completed")

	return totalDeleted, nil
}

// Name returns the job name for logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
