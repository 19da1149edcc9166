// Package scene materializes detected planes as renderable, collidable
// entities: a validated triangle mesh, a top-down collision footprint in a
// shared Chipmunk space, and a material color from the theme.
package scene

import (
	"fmt"

	"github.com/bitsmakerde/planemirror/internal/plane"
)

// Mesh is the renderable geometry derived from a plane snapshot. Vertices
// stay in plane-local coordinates; the entity carries the world pose.
type Mesh struct {
	Vertices []plane.Vec3
	// Indices are the surviving triangle indices, three per face.
	Indices []uint32
	// Normals holds one unit normal per surviving face.
	Normals []plane.Vec3
	// Area is the summed face area in square metres.
	Area float32
}

// FaceCount returns the number of triangles in the mesh.
func (m *Mesh) FaceCount() int { return len(m.Indices) / 3 }

// BuildMesh validates and assembles the triangle mesh for p. Faces whose
// area falls below minFaceArea are dropped. An empty result is an error so
// the caller can degrade to "no visual".
func BuildMesh(p *plane.DetectedPlane, minFaceArea float32) (*Mesh, error) {
	if len(p.Vertices) < 3 {
		return nil, fmt.Errorf("plane %s: %d vertices, need at least 3", p.ID, len(p.Vertices))
	}
	if len(p.Triangles) == 0 {
		return nil, fmt.Errorf("plane %s: no triangles", p.ID)
	}

	m := &Mesh{
		Vertices: append([]plane.Vec3(nil), p.Vertices...),
		Indices:  make([]uint32, 0, len(p.Triangles)),
		Normals:  make([]plane.Vec3, 0, len(p.Triangles)/3),
	}
	for i := 0; i+2 < len(p.Triangles); i += 3 {
		ia, ib, ic := p.Triangles[i], p.Triangles[i+1], p.Triangles[i+2]
		if int(ia) >= len(p.Vertices) || int(ib) >= len(p.Vertices) || int(ic) >= len(p.Vertices) {
			return nil, fmt.Errorf("plane %s: triangle index out of range", p.ID)
		}
		a, b, c := p.Vertices[ia], p.Vertices[ib], p.Vertices[ic]
		cross := b.Sub(a).Cross(c.Sub(a))
		area := 0.5 * cross.Length()
		if area == 0 || area < minFaceArea {
			continue
		}
		m.Indices = append(m.Indices, ia, ib, ic)
		m.Normals = append(m.Normals, cross.Normalize())
		m.Area += area
	}
	if len(m.Indices) == 0 {
		return nil, fmt.Errorf("plane %s: mesh produced nothing (all %d faces degenerate)", p.ID, len(p.Triangles)/3)
	}
	return m, nil
}
