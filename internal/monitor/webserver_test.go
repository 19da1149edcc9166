package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitsmakerde/planemirror/internal/db"
	"github.com/bitsmakerde/planemirror/internal/plane"
	"github.com/bitsmakerde/planemirror/internal/provider"
	"github.com/bitsmakerde/planemirror/internal/scene"
	"github.com/bitsmakerde/planemirror/internal/storage"
)

func testPlane(id string, class plane.Classification) *plane.DetectedPlane {
	return &plane.DetectedPlane{
		ID:             id,
		Classification: class,
		Alignment:      plane.AlignHorizontal,
		Transform:      plane.IdentityTransform(),
		Vertices: []plane.Vec3{
			{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1},
		},
		Triangles:         []uint32{0, 1, 2, 0, 2, 3},
		DetectedUnixNanos: time.Now().UnixNano(),
	}
}

func newTestServer(t *testing.T) (*WebServer, *plane.Manager, *scene.World) {
	t.Helper()

	world := scene.NewWorld(scene.DefaultTheme(), scene.WorldConfig{})
	manager := plane.NewManager(world)

	ws := NewWebServer(WebServerConfig{
		Address: ":0",
		Manager: manager,
		World:   world,
		Stats:   provider.NewStats(),
		UDPPort: 4690,
	})
	return ws, manager, world
}

func get(t *testing.T, ws *WebServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()
	ws, _, _ := newTestServer(t)

	rr := get(t, ws, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status": "ok"`)
	assert.Contains(t, rr.Body.String(), "planemirror")
}

func TestPlanesHandler(t *testing.T) {
	t.Parallel()
	ws, manager, _ := newTestServer(t)

	require.NoError(t, manager.Add(testPlane("b-2", plane.ClassFloor)))
	require.NoError(t, manager.Add(testPlane("a-1", plane.ClassTable)))

	rr := get(t, ws, "/api/planes")
	require.Equal(t, http.StatusOK, rr.Code)

	var summaries []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summaries))
	require.Len(t, summaries, 2)

	// Sorted by id.
	assert.Equal(t, "a-1", summaries[0]["plane_id"])
	assert.Equal(t, "b-2", summaries[1]["plane_id"])
	assert.Equal(t, "table", summaries[0]["classification"])
	assert.Equal(t, true, summaries[0]["has_entity"])
	assert.Equal(t, "sqm", summaries[0]["units"])
	assert.InDelta(t, 1.0, summaries[0]["area"].(float64), 1e-6)
}

func TestPlanesHandlerUnits(t *testing.T) {
	t.Parallel()
	ws, manager, _ := newTestServer(t)

	require.NoError(t, manager.Add(testPlane("p-1", plane.ClassTable)))

	rr := get(t, ws, "/api/planes?units=sqft")
	require.Equal(t, http.StatusOK, rr.Code)

	var summaries []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "sqft", summaries[0]["units"])
	assert.InDelta(t, 10.7639, summaries[0]["area"].(float64), 1e-3)

	rr = get(t, ws, "/api/planes?units=acres")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlaneByIDHandler(t *testing.T) {
	t.Parallel()
	ws, manager, _ := newTestServer(t)

	require.NoError(t, manager.Add(testPlane("p-1", plane.ClassWall)))

	rr := get(t, ws, "/api/planes/p-1")
	require.Equal(t, http.StatusOK, rr.Code)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, "p-1", detail["plane_id"])
	assert.Len(t, detail["vertices"], 4)
	assert.Len(t, detail["transform"], 16)

	rr = get(t, ws, "/api/planes/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = get(t, ws, "/api/planes/")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlanesHandlerMethodNotAllowed(t *testing.T) {
	t.Parallel()
	ws, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/planes", nil)
	rr := httptest.NewRecorder()
	ws.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestStatsHandler(t *testing.T) {
	t.Parallel()
	ws, manager, _ := newTestServer(t)

	require.NoError(t, manager.Add(testPlane("p-1", plane.ClassTable)))
	require.NoError(t, manager.Add(testPlane("p-2", plane.ClassTable)))
	ws.stats.AddDatagram(128)
	ws.stats.AddEvent(provider.EventAdded)

	rr := get(t, ws, "/api/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, float64(2), payload["plane_count"])
	assert.Equal(t, float64(2), payload["entity_count"])

	counts := payload["classifications"].(map[string]interface{})
	assert.Equal(t, float64(2), counts["table"])

	assert.Equal(t, "sqm", payload["units"])
	areas := payload["area"].(map[string]interface{})
	assert.InDelta(t, 1.0, areas["mean"].(float64), 1e-6)

	ingest := payload["ingest"].(map[string]interface{})
	assert.Equal(t, float64(1), ingest["datagrams"])
}

func TestHitTestHandler(t *testing.T) {
	t.Parallel()
	ws, manager, _ := newTestServer(t)

	require.NoError(t, manager.Add(testPlane("p-1", plane.ClassFloor)))

	rr := get(t, ws, "/api/hittest?x=0.5&z=0.5")
	require.Equal(t, http.StatusOK, rr.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	ids := payload["plane_ids"].([]interface{})
	require.Len(t, ids, 1)
	assert.Equal(t, "p-1", ids[0])

	rr = get(t, ws, "/api/hittest?x=50&z=50")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Empty(t, payload["plane_ids"])

	rr = get(t, ws, "/api/hittest?x=bogus")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClassificationChartHandler(t *testing.T) {
	t.Parallel()
	ws, manager, _ := newTestServer(t)

	require.NoError(t, manager.Add(testPlane("p-1", plane.ClassSeat)))

	rr := get(t, ws, "/debug/charts/classifications")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "echarts")
}

func TestEventTimelineChartHandler(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "monitor.db")
	d, err := db.NewDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.MigrateUp("../../db/migrations"))
	store := storage.NewPlaneStore(d.DB)

	p := testPlane("p-1", plane.ClassTable)
	require.NoError(t, store.RecordEvent("added", p.ID, p))

	ws, _, _ := newTestServer(t)
	ws.store = store

	rr := get(t, ws, "/debug/charts/events")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "echarts")

	// Without a store the endpoint degrades to 404.
	bare, _, _ := newTestServer(t)
	rr = get(t, bare, "/debug/charts/events")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLayoutPlotHandler(t *testing.T) {
	t.Parallel()
	ws, manager, _ := newTestServer(t)

	require.NoError(t, manager.Add(testPlane("p-1", plane.ClassFloor)))

	rr := get(t, ws, "/debug/plots/layout.png")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	// PNG magic bytes.
	assert.True(t, strings.HasPrefix(rr.Body.String(), "\x89PNG"))
}
