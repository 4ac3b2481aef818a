package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesMigrations(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	for _, table := range []string{"mht_runs", "mht_frames", "mht_hypotheses", "mht_marginals"} {
		assert.True(t, tableExists(t, db, table), "table %s", table)
	}

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewRunStore(db.DB).Insert(&Run{ScenarioName: "first"}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	runs, err := NewRunStore(db.DB).List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "first", runs[0].ScenarioName)
}

func TestMigrateDownAndUp(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.MigrateDown())
	assert.False(t, tableExists(t, db, "mht_runs"))

	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, db.MigrateUp())
	assert.True(t, tableExists(t, db, "mht_runs"))
	require.NoError(t, db.MigrateUp(), "no change is not an error")
}
