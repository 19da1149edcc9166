package scene

import (
	"image/color"
	"math"
	"sync"

	"github.com/jakecoffman/cp"

	"github.com/bitsmakerde/planemirror/internal/plane"
)

// WorldConfig tunes entity derivation.
type WorldConfig struct {
	// MinFaceArea drops triangles below this area (square metres) from the
	// mesh. Zero keeps everything that is not exactly degenerate.
	MinFaceArea float32
	// MinFootprintArea is the projected-area threshold below which a plane's
	// top-down footprint collapses to a segment (vertical surfaces).
	MinFootprintArea float64
}

// World owns the shared top-down collision space and derives entities from
// plane snapshots. It implements plane.EntityBuilder.
//
// The collision space is a floor-plan projection: every plane contributes
// static shapes in world X/Z, so hit-tests answer "which surfaces cover this
// spot" regardless of height.
type World struct {
	mu       sync.Mutex
	space    *cp.Space
	theme    *Theme
	cfg      WorldConfig
	entities map[string]*Entity
}

// NewWorld creates a world with the given theme. A nil theme uses the
// built-in palette.
func NewWorld(theme *Theme, cfg WorldConfig) *World {
	if theme == nil {
		theme = DefaultTheme()
	}
	if cfg.MinFootprintArea == 0 {
		cfg.MinFootprintArea = 1e-4
	}
	return &World{
		space:    cp.NewSpace(),
		theme:    theme,
		cfg:      cfg,
		entities: make(map[string]*Entity),
	}
}

// Build derives the entity for p: mesh, collision footprint, material.
// Returns an error when the geometry yields nothing usable; the manager
// treats that as "no visual".
func (w *World) Build(p *plane.DetectedPlane) (plane.Entity, error) {
	mesh, err := BuildMesh(p, w.cfg.MinFaceArea)
	if err != nil {
		return nil, err
	}

	worldVerts := p.WorldVertices()
	e := &Entity{
		planeID:        p.ID,
		classification: p.Classification,
		alignment:      p.Alignment,
		mesh:           mesh,
		color:          w.theme.Color(p.Classification),
		worldVerts:     worldVerts,
		world:          w,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	e.shapes = w.addFootprintShapes(p, mesh, worldVerts)
	w.entities[p.ID] = e
	return e, nil
}

// addFootprintShapes projects the mesh onto world X/Z and registers static
// collision shapes for it. Caller holds w.mu.
func (w *World) addFootprintShapes(p *plane.DetectedPlane, mesh *Mesh, worldVerts []plane.Vec3) []*cp.Shape {
	var shapes []*cp.Shape
	var projectedArea float64

	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		a := projectXZ(worldVerts[mesh.Indices[i]])
		b := projectXZ(worldVerts[mesh.Indices[i+1]])
		c := projectXZ(worldVerts[mesh.Indices[i+2]])

		signed := signedArea(a, b, c)
		if math.Abs(signed) < w.cfg.MinFootprintArea {
			continue
		}
		projectedArea += math.Abs(signed)
		if signed < 0 {
			b, c = c, b
		}
		shape := cp.NewPolyShapeRaw(w.space.StaticBody, 3, []cp.Vector{a, b, c}, 0)
		shape.UserData = p.ID
		shape.SetSensor(true)
		w.space.AddShape(shape)
		shapes = append(shapes, shape)
	}

	if len(shapes) > 0 {
		return shapes
	}

	// Vertical planes project to a sliver; index them as a thin segment so
	// hit-tests near a wall's base still find it.
	a, b := farthestPair(worldVerts)
	if a == b {
		return nil
	}
	shape := cp.NewSegment(w.space.StaticBody, a, b, 0.02)
	shape.UserData = p.ID
	shape.SetSensor(true)
	w.space.AddShape(shape)
	return []*cp.Shape{shape}
}

// release removes an entity's shapes from the space. Idempotent.
func (w *World) release(e *Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	for _, s := range e.shapes {
		w.space.RemoveShape(s)
	}
	e.shapes = nil
	if w.entities[e.planeID] == e {
		delete(w.entities, e.planeID)
	}
}

// HitTest returns the ids of planes whose footprint covers world (x, z),
// in no particular order.
func (w *World) HitTest(x, z float64) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[string]bool)
	var ids []string
	// jakecoffman/cp has no callback-based Space.PointQuery (Chipmunk2D's
	// cpSpacePointQuery), so replicate it: visit every shape passing the
	// filter and report those within maxDistance (0 here) of the point.
	// The bound is inclusive so a point on a footprint edge still counts
	// as covered.
	point := cp.Vector{X: x, Y: z}
	const maxDistance = 0
	filter := cp.SHAPE_FILTER_ALL
	callback := func(shape *cp.Shape, point cp.Vector, distance float64, gradient cp.Vector) {
		id, ok := shape.UserData.(string)
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	w.space.EachShape(func(shape *cp.Shape) {
		if shape.Filter.Reject(filter) {
			return
		}
		info := shape.PointQuery(point)
		if info.Shape != nil && info.Distance <= maxDistance {
			callback(shape, info.Point, info.Distance, info.Gradient)
		}
	})
	return ids
}

// EntityInfo is a read-only snapshot of one live entity, consumed by the
// monitor's plotter and APIs.
type EntityInfo struct {
	PlaneID        string
	Classification plane.Classification
	Alignment      plane.Alignment
	Color          color.RGBA
	AreaM2         float64
	// Footprint is the boundary polygon projected to world X/Z, in vertex
	// order.
	Footprint [][2]float64
}

// Snapshot returns info for every live entity.
func (w *World) Snapshot() []EntityInfo {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]EntityInfo, 0, len(w.entities))
	for _, e := range w.entities {
		fp := make([][2]float64, len(e.worldVerts))
		for i, v := range e.worldVerts {
			fp[i] = [2]float64{float64(v[0]), float64(v[2])}
		}
		out = append(out, EntityInfo{
			PlaneID:        e.planeID,
			Classification: e.classification,
			Alignment:      e.alignment,
			Color:          e.color,
			AreaM2:         float64(e.mesh.Area),
			Footprint:      fp,
		})
	}
	return out
}

// Len returns the number of live entities.
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entities)
}

// Theme returns the world's theme.
func (w *World) Theme() *Theme { return w.theme }

func projectXZ(v plane.Vec3) cp.Vector {
	return cp.Vector{X: float64(v[0]), Y: float64(v[2])}
}

func signedArea(a, b, c cp.Vector) float64 {
	return 0.5 * ((b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y))
}

// farthestPair returns the two projected vertices with the greatest
// separation. Boundary vertex counts are small, so the quadratic scan is
// fine.
func farthestPair(verts []plane.Vec3) (cp.Vector, cp.Vector) {
	var best float64
	var pa, pb cp.Vector
	for i := 0; i < len(verts); i++ {
		for j := i + 1; j < len(verts); j++ {
			a, b := projectXZ(verts[i]), projectXZ(verts[j])
			d := a.DistanceSq(b)
			if d > best {
				best = d
				pa, pb = a, b
			}
		}
	}
	return pa, pb
}
