package scene

import (
	"image/color"

	"github.com/jakecoffman/cp"

	"github.com/bitsmakerde/planemirror/internal/plane"
)

// Entity is the materialization of one detected plane: validated mesh,
// collision footprint shapes, and material color. Entities are created by
// World.Build and torn down by Release; the plane manager owns their
// lifecycle 1:1 with plane snapshots.
type Entity struct {
	planeID        string
	classification plane.Classification
	alignment      plane.Alignment
	mesh           *Mesh
	color          color.RGBA
	worldVerts     []plane.Vec3
	shapes         []*cp.Shape
	world          *World
	released       bool // guarded by world.mu
}

// PlaneID returns the id of the plane this entity materializes.
func (e *Entity) PlaneID() string { return e.planeID }

// Classification returns the plane's semantic label.
func (e *Entity) Classification() plane.Classification { return e.classification }

// Alignment returns the plane's orientation category.
func (e *Entity) Alignment() plane.Alignment { return e.alignment }

// Mesh returns the renderable geometry.
func (e *Entity) Mesh() *Mesh { return e.mesh }

// Color returns the material color assigned at build time.
func (e *Entity) Color() color.RGBA { return e.color }

// WorldVertices returns the boundary vertices in the world frame.
func (e *Entity) WorldVertices() []plane.Vec3 { return e.worldVerts }

// Release removes the entity's collision shapes from the world. Safe to
// call more than once.
func (e *Entity) Release() {
	if e.world != nil {
		e.world.release(e)
	}
}
