package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "client_data.db")

	db, err := New(Config{Path: path, Profile: ProfileCache, Name: "client_data"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	assert.Equal(t, "client_data", db.Name())
	assert.NoError(t, db.QuickCheck(context.Background()))
}

func TestMigrate_ClientDataSchema(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "cd.db"), Name: "client_data"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	// Applying twice is harmless
	require.NoError(t, db.Migrate())

	for _, table := range []string{"block_headers", "block_by_timestamp", "contract_calls", "morpho_rates"} {
		var name string
		err := db.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "other.db"), Name: "other"})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Migrate())
}
