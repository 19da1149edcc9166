package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitsmakerde/planemirror/internal/db"
	"github.com/bitsmakerde/planemirror/internal/plane"
)

const migrationsDir = "../../db/migrations"

func newTestStore(t *testing.T) *PlaneStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "planes.db")
	d, err := db.NewDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	require.NoError(t, d.MigrateUp(migrationsDir))
	return NewPlaneStore(d.DB)
}

func testPlane(id string) *plane.DetectedPlane {
	return &plane.DetectedPlane{
		ID:             id,
		Classification: plane.ClassTable,
		Alignment:      plane.AlignHorizontal,
		Transform:      plane.IdentityTransform(),
		Vertices: []plane.Vec3{
			{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1},
		},
		Triangles:         []uint32{0, 1, 2, 0, 2, 3},
		DetectedUnixNanos: time.Now().UnixNano(),
	}
}

func TestPlaneStoreSnapshotRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	p := testPlane("p-1")
	require.NoError(t, store.UpsertSnapshot(p))

	snap, err := store.GetSnapshot("p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", snap.PlaneID)
	assert.Equal(t, "table", snap.Classification)
	assert.Equal(t, "horizontal", snap.Alignment)
	assert.Equal(t, 4, snap.VertexCount)
	assert.InDelta(t, 1.0, snap.AreaM2, 1e-6)
	assert.Nil(t, snap.RemovedAtNs)
	assert.Positive(t, snap.FirstSeenNs)
}

func TestPlaneStoreGetUnknown(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.GetSnapshot("nope")
	assert.ErrorContains(t, err, "plane not found")
}

func TestPlaneStoreUpsertPreservesFirstSeen(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	p := testPlane("p-1")
	require.NoError(t, store.UpsertSnapshot(p))

	first, err := store.GetSnapshot("p-1")
	require.NoError(t, err)

	p.Classification = plane.ClassFloor
	require.NoError(t, store.UpsertSnapshot(p))

	second, err := store.GetSnapshot("p-1")
	require.NoError(t, err)
	assert.Equal(t, "floor", second.Classification)
	assert.Equal(t, first.FirstSeenNs, second.FirstSeenNs)
	assert.GreaterOrEqual(t, second.LastUpdatedNs, first.LastUpdatedNs)
}

func TestPlaneStoreMarkRemoved(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, store.UpsertSnapshot(testPlane("p-1")))
	require.NoError(t, store.UpsertSnapshot(testPlane("p-2")))

	require.NoError(t, store.MarkRemoved("p-1", 12345))

	snap, err := store.GetSnapshot("p-1")
	require.NoError(t, err)
	require.NotNil(t, snap.RemovedAtNs)
	assert.Equal(t, int64(12345), *snap.RemovedAtNs)

	active, err := store.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "p-2", active[0].PlaneID)
}

func TestPlaneStoreReaddClearsRemoval(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, store.UpsertSnapshot(testPlane("p-1")))
	require.NoError(t, store.MarkRemoved("p-1", 0))
	require.NoError(t, store.UpsertSnapshot(testPlane("p-1")))

	snap, err := store.GetSnapshot("p-1")
	require.NoError(t, err)
	assert.Nil(t, snap.RemovedAtNs)
}

func TestPlaneStoreCountsByClassification(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	table := testPlane("t-1")
	require.NoError(t, store.UpsertSnapshot(table))

	wall := testPlane("w-1")
	wall.Classification = plane.ClassWall
	wall.Alignment = plane.AlignVertical
	require.NoError(t, store.UpsertSnapshot(wall))

	wall2 := testPlane("w-2")
	wall2.Classification = plane.ClassWall
	wall2.Alignment = plane.AlignVertical
	require.NoError(t, store.UpsertSnapshot(wall2))

	require.NoError(t, store.MarkRemoved("w-2", 0))

	counts, err := store.CountsByClassification()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"table": 1, "wall": 1}, counts)
}

func TestPlaneStoreEventLog(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	p := testPlane("p-1")
	require.NoError(t, store.RecordEvent("added", p.ID, p))
	require.NoError(t, store.RecordEvent("updated", p.ID, p))
	require.NoError(t, store.RecordEvent("removed", p.ID, nil))

	recs, err := store.EventsSince(0, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "added", recs[0].Kind)
	assert.Equal(t, "updated", recs[1].Kind)
	assert.Equal(t, "removed", recs[2].Kind)

	assert.Equal(t, "table", recs[0].Classification)
	assert.Equal(t, 4, recs[0].VertexCount)
	assert.Empty(t, recs[2].Classification)

	// Each event gets a distinct id.
	assert.NotEqual(t, recs[0].EventID, recs[1].EventID)

	limited, err := store.EventsSince(0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
