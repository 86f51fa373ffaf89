package clientdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJobName(t *testing.T) {
	job := NewCleanupJob(NewRepository(setupTestDB(t)), zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
}

func TestCleanupJobRun(t *testing.T) {
	db := setupTestDB(t)
	job := NewCleanupJob(NewRepository(db), zerolog.Nop())

	now := time.Now()
	insertExpiredAndFresh(t, db, TableBlockHeaders, "number", now.Add(-time.Hour).Unix(), now.Add(time.Hour).Unix())
	insertExpiredAndFresh(t, db, TableMorphoRates, "query", now.Add(-time.Hour).Unix(), now.Add(time.Hour).Unix())

	deleted, err := job.Run()
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining int
	require.NoError(t, db.QueryRow(
		"SELECT (SELECT COUNT(*) FROM block_headers) + (SELECT COUNT(*) FROM morpho_rates)",
	).Scan(&remaining))
	assert.Equal(t, 2, remaining)
}

func TestCleanupJobRunEmptyTables(t *testing.T) {
	job := NewCleanupJob(NewRepository(setupTestDB(t)), zerolog.Nop())

	deleted, err := job.Run()
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
