// Package plane holds the platform-agnostic model of detected AR planes
// and the manager that mirrors provider transitions into keyed state.
package plane

import (
	"fmt"
)

// Classification is the semantic label of a detected surface.
type Classification string

const (
	ClassWall    Classification = "wall"
	ClassCeiling Classification = "ceiling"
	ClassFloor   Classification = "floor"
	ClassTable   Classification = "table"
	ClassSeat    Classification = "seat"
	ClassWindow  Classification = "window"
	ClassDoor    Classification = "door"
	ClassUnknown Classification = "unknown"
)

// Classifications lists every valid classification value.
var Classifications = []Classification{
	ClassWall, ClassCeiling, ClassFloor, ClassTable,
	ClassSeat, ClassWindow, ClassDoor, ClassUnknown,
}

// Valid reports whether c is one of the known classification values.
func (c Classification) Valid() bool {
	for _, k := range Classifications {
		if c == k {
			return true
		}
	}
	return false
}

// Alignment is the geometric orientation category of a detected surface.
type Alignment string

const (
	AlignHorizontal Alignment = "horizontal"
	AlignVertical   Alignment = "vertical"
	AlignSlanted    Alignment = "slanted"
	AlignNone       Alignment = "unknown"
)

// Valid reports whether a is one of the known alignment values.
func (a Alignment) Valid() bool {
	switch a {
	case AlignHorizontal, AlignVertical, AlignSlanted, AlignNone:
		return true
	}
	return false
}

// DetectedPlane is an immutable snapshot of one detected surface.
// Updates from the provider arrive as whole new values; nothing mutates a
// stored DetectedPlane in place.
type DetectedPlane struct {
	// ID is the provider-assigned anchor identifier (UUID string).
	ID string

	Classification Classification
	Alignment      Alignment

	// Transform places plane-local coordinates into the world frame.
	// Plane-local Y is the surface normal; the boundary polygon lives in
	// the local X/Z plane.
	Transform Transform

	// Vertices are the plane-local boundary mesh positions.
	Vertices []Vec3

	// Triangles index into Vertices, three entries per face.
	Triangles []uint32

	// DetectedUnixNanos is when the provider reported this snapshot.
	DetectedUnixNanos int64
}

// Clone returns a deep copy. Stored planes are handed out by pointer, so
// the manager clones on ingest to keep callers from aliasing its state.
func (p *DetectedPlane) Clone() *DetectedPlane {
	if p == nil {
		return nil
	}
	c := *p
	c.Vertices = append([]Vec3(nil), p.Vertices...)
	c.Triangles = append([]uint32(nil), p.Triangles...)
	return &c
}

// Validate checks structural consistency of the snapshot. Geometry that is
// merely useless (zero area, too few vertices) is not an error here; the
// scene layer degrades those to "no visual".
func (p *DetectedPlane) Validate() error {
	if p == nil {
		return fmt.Errorf("nil plane")
	}
	if p.ID == "" {
		return fmt.Errorf("plane has empty id")
	}
	if !p.Classification.Valid() {
		return fmt.Errorf("plane %s: unknown classification %q", p.ID, p.Classification)
	}
	if !p.Alignment.Valid() {
		return fmt.Errorf("plane %s: unknown alignment %q", p.ID, p.Alignment)
	}
	if len(p.Triangles)%3 != 0 {
		return fmt.Errorf("plane %s: triangle index count %d not a multiple of 3", p.ID, len(p.Triangles))
	}
	for _, idx := range p.Triangles {
		if int(idx) >= len(p.Vertices) {
			return fmt.Errorf("plane %s: triangle index %d out of range (%d vertices)", p.ID, idx, len(p.Vertices))
		}
	}
	return nil
}

// Centroid returns the mean of the boundary vertices in world coordinates.
func (p *DetectedPlane) Centroid() Vec3 {
	if len(p.Vertices) == 0 {
		return p.Transform.Translation()
	}
	var c Vec3
	for _, v := range p.Vertices {
		c = c.Add(v)
	}
	inv := 1 / float32(len(p.Vertices))
	return p.Transform.Apply(c.Scale(inv))
}

// Normal returns the world-space surface normal (plane-local +Y).
func (p *DetectedPlane) Normal() Vec3 {
	return p.Transform.ApplyDirection(Vec3{0, 1, 0}).Normalize()
}

// Area returns the summed area of the triangle mesh in square metres,
// computed in plane-local coordinates.
func (p *DetectedPlane) Area() float32 {
	var area float32
	for i := 0; i+2 < len(p.Triangles); i += 3 {
		a := p.Vertices[p.Triangles[i]]
		b := p.Vertices[p.Triangles[i+1]]
		c := p.Vertices[p.Triangles[i+2]]
		area += triangleArea(a, b, c)
	}
	return area
}

// WorldVertices returns the boundary vertices transformed into the world frame.
func (p *DetectedPlane) WorldVertices() []Vec3 {
	out := make([]Vec3, len(p.Vertices))
	for i, v := range p.Vertices {
		out[i] = p.Transform.Apply(v)
	}
	return out
}

func triangleArea(a, b, c Vec3) float32 {
	return 0.5 * b.Sub(a).Cross(c.Sub(a)).Length()
}
