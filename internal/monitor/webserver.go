// Package monitor exposes the HTTP surface of the mirror: health and plane
// state APIs, debug charts, and a top-down layout plot.
package monitor

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/bitsmakerde/planemirror/internal/httputil"
	"github.com/bitsmakerde/planemirror/internal/plane"
	"github.com/bitsmakerde/planemirror/internal/provider"
	"github.com/bitsmakerde/planemirror/internal/scene"
	"github.com/bitsmakerde/planemirror/internal/storage"
	"github.com/bitsmakerde/planemirror/internal/units"
	"github.com/bitsmakerde/planemirror/internal/version"
)

// WebServer handles the HTTP interface for monitoring mirror state. It
// provides endpoints for health checks, the live plane set, and debug
// visualisations.
type WebServer struct {
	address string
	manager *plane.Manager
	world   *scene.World
	store   *storage.PlaneStore
	stats   *provider.Stats
	udpPort int
	started time.Time
	server  *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Manager *plane.Manager
	World   *scene.World
	Store   *storage.PlaneStore
	Stats   *provider.Stats
	UDPPort int
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		manager: config.Manager,
		world:   config.World,
		store:   config.Store,
		stats:   config.Stats,
		udpPort: config.UDPPort,
		started: time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Handler returns the configured route mux, for mounting under another
// server or for tests.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Mux exposes the underlying mux so additional routes (debug, admin) can be
// attached before Start.
func (ws *WebServer) Mux() *http.ServeMux { return ws.server.Handler.(*http.ServeMux) }

// requestUnits resolves the optional ?units= query parameter; areas default
// to square meters.
func requestUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return units.SquareMeters, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid units %q, must be one of: %s", u, units.GetValidUnitsString())
	}
	return u, nil
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", ws.handleHealth)
	mux.HandleFunc("/api/planes", ws.handlePlanes)
	mux.HandleFunc("/api/planes/", ws.handlePlaneByID)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/api/hittest", ws.handleHitTest)
	mux.HandleFunc("/debug/charts/classifications", ws.handleClassificationChart)
	mux.HandleFunc("/debug/charts/events", ws.handleEventTimelineChart)
	mux.HandleFunc("/debug/plots/layout.png", ws.handleLayoutPlot)

	return mux
}

// handleHealth handles the health check endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "planemirror", "version": "%s", "timestamp": "%s"}`,
		version.Version, time.Now().UTC().Format(time.RFC3339))
}

// planeSummary is the JSON shape of one live plane.
type planeSummary struct {
	PlaneID        string  `json:"plane_id"`
	Classification string  `json:"classification"`
	Alignment      string  `json:"alignment"`
	Area           float64 `json:"area"`
	Units          string  `json:"units"`
	VertexCount    int     `json:"vertex_count"`
	HasEntity      bool    `json:"has_entity"`
	Detected       string  `json:"detected,omitempty"`
}

func (ws *WebServer) summarize(p *plane.DetectedPlane, unit string) planeSummary {
	s := planeSummary{
		PlaneID:        p.ID,
		Classification: string(p.Classification),
		Alignment:      string(p.Alignment),
		Area:           units.ConvertArea(float64(p.Area()), unit),
		Units:          unit,
		VertexCount:    len(p.Vertices),
	}
	if _, ok := ws.manager.Entity(p.ID); ok {
		s.HasEntity = true
	}
	if p.DetectedUnixNanos != 0 {
		s.Detected = time.Unix(0, p.DetectedUnixNanos).Format(time.RFC3339Nano)
	}
	return s
}

// handlePlanes returns a JSON array of every live plane, sorted by id.
// Query params:
//
//	units (optional, "sqm" or "sqft")
func (ws *WebServer) handlePlanes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	unit, err := requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	planes := ws.manager.Planes()
	sort.Slice(planes, func(i, j int) bool { return planes[i].ID < planes[j].ID })

	summaries := make([]planeSummary, 0, len(planes))
	for _, p := range planes {
		summaries = append(summaries, ws.summarize(p, unit))
	}

	httputil.WriteJSONOK(w, summaries)
}

// handlePlaneByID returns full detail for one plane, including geometry.
func (ws *WebServer) handlePlaneByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	unit, err := requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	id := r.URL.Path[len("/api/planes/"):]
	if id == "" {
		httputil.BadRequest(w, "missing plane id")
		return
	}

	p, ok := ws.manager.Get(id)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no plane with id '%s'", id))
		return
	}

	detail := struct {
		planeSummary
		Transform [16]float32  `json:"transform"`
		Vertices  []plane.Vec3 `json:"vertices"`
		Triangles []uint32     `json:"triangles"`
	}{
		planeSummary: ws.summarize(p, unit),
		Transform:    [16]float32(p.Transform),
		Vertices:     p.Vertices,
		Triangles:    p.Triangles,
	}

	httputil.WriteJSONOK(w, detail)
}

// handleStats returns aggregate mirror statistics: live counts per
// classification, ingest counters, and area percentiles over the live set.
func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	unit, err := requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	counts := make(map[string]int)
	for class, n := range ws.manager.CountsByClassification() {
		counts[string(class)] = n
	}

	areas := make([]float64, 0, ws.manager.Len())
	for _, p := range ws.manager.Planes() {
		areas = append(areas, units.ConvertArea(float64(p.Area()), unit))
	}
	sort.Float64s(areas)

	areaStats := map[string]float64{}
	if len(areas) > 0 {
		areaStats["mean"] = stat.Mean(areas, nil)
		areaStats["p50"] = stat.Quantile(0.5, stat.Empirical, areas, nil)
		areaStats["p90"] = stat.Quantile(0.9, stat.Empirical, areas, nil)
		areaStats["max"] = areas[len(areas)-1]
	}

	payload := map[string]interface{}{
		"plane_count":     ws.manager.Len(),
		"entity_count":    ws.manager.EntityCount(),
		"classifications": counts,
		"area":            areaStats,
		"units":           unit,
		"uptime_seconds":  int(time.Since(ws.started).Seconds()),
	}

	if ws.stats != nil {
		datagrams, bytes, malformed, events := ws.stats.Snapshot()
		eventCounts := make(map[string]int64, len(events))
		for kind, n := range events {
			eventCounts[string(kind)] = n
		}
		payload["ingest"] = map[string]interface{}{
			"datagrams": datagrams,
			"bytes":     bytes,
			"malformed": malformed,
			"events":    eventCounts,
		}
	}

	httputil.WriteJSONOK(w, payload)
}

// handleHitTest returns the plane ids whose footprint contains the given
// world X/Z point.
// Query params:
//
//	x (required, meters)
//	z (required, meters)
func (ws *WebServer) handleHitTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.world == nil {
		httputil.NotFound(w, "no scene world configured")
		return
	}

	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	z, errZ := strconv.ParseFloat(r.URL.Query().Get("z"), 64)
	if errX != nil || errZ != nil {
		httputil.BadRequest(w, "missing or invalid 'x'/'z' parameters")
		return
	}

	ids := ws.world.HitTest(x, z)
	if ids == nil {
		ids = []string{}
	}
	sort.Strings(ids)

	httputil.WriteJSONOK(w, map[string]interface{}{"x": x, "z": z, "plane_ids": ids})
}
