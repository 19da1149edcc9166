package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../db/migrations"

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMigrateUpCreatesSchema(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)

	require.NoError(t, d.MigrateUp(migrationsDir))

	// Both tables are queryable after migration.
	var n int
	require.NoError(t, d.QueryRow("SELECT COUNT(*) FROM plane_events").Scan(&n))
	assert.Equal(t, 0, n)
	require.NoError(t, d.QueryRow("SELECT COUNT(*) FROM plane_snapshots").Scan(&n))
	assert.Equal(t, 0, n)

	version, dirty, err := d.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)

	require.NoError(t, d.MigrateUp(migrationsDir))
	require.NoError(t, d.MigrateUp(migrationsDir), "no pending changes is not an error")
}

func TestMigrateDownRollsBack(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)

	require.NoError(t, d.MigrateUp(migrationsDir))
	require.NoError(t, d.MigrateDown(migrationsDir))

	var n int
	err := d.QueryRow("SELECT COUNT(*) FROM plane_events").Scan(&n)
	assert.Error(t, err, "table should be gone after rollback")
}

func TestMigrateVersionBeforeAnyMigrations(t *testing.T) {
	t.Parallel()
	d := newTestDB(t)

	version, dirty, err := d.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(0), version)
}
