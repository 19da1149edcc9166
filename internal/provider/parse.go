package provider

import (
	"encoding/json"
	"fmt"

	"github.com/bitsmakerde/planemirror/internal/plane"
)

// wireEvent is the datagram schema emitted by the platform bridge.
type wireEvent struct {
	Kind      string     `json:"kind"`
	Plane     *wirePlane `json:"plane,omitempty"`
	PlaneID   string     `json:"plane_id,omitempty"`
	UnixNanos int64      `json:"unix_nanos,omitempty"`
}

type wirePlane struct {
	ID             string       `json:"id"`
	Classification string       `json:"classification"`
	Alignment      string       `json:"alignment"`
	Transform      [16]float32  `json:"transform"`
	Vertices       [][3]float32 `json:"vertices"`
	Triangles      []uint32     `json:"triangles"`
}

// ParseEvent decodes and validates one datagram payload.
func ParseEvent(payload []byte) (PlaneEvent, error) {
	var we wireEvent
	if err := json.Unmarshal(payload, &we); err != nil {
		return PlaneEvent{}, fmt.Errorf("decode event: %w", err)
	}

	ev := PlaneEvent{
		Kind:      EventKind(we.Kind),
		PlaneID:   we.PlaneID,
		UnixNanos: we.UnixNanos,
	}
	if we.Plane != nil {
		ev.Plane = we.Plane.toPlane(we.UnixNanos)
		ev.PlaneID = we.Plane.ID
	}
	if err := ev.Validate(); err != nil {
		return PlaneEvent{}, err
	}
	return ev, nil
}

// MarshalEvent encodes an event back into the wire schema. Used by the
// recorder and the test/replay tooling.
func MarshalEvent(ev PlaneEvent) ([]byte, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	we := wireEvent{
		Kind:      string(ev.Kind),
		UnixNanos: ev.UnixNanos,
	}
	if ev.Plane != nil {
		we.Plane = fromPlane(ev.Plane)
	} else {
		we.PlaneID = ev.PlaneID
	}
	return json.Marshal(we)
}

func (wp *wirePlane) toPlane(unixNanos int64) *plane.DetectedPlane {
	p := &plane.DetectedPlane{
		ID:                wp.ID,
		Classification:    plane.Classification(wp.Classification),
		Alignment:         plane.Alignment(wp.Alignment),
		Transform:         plane.Transform(wp.Transform),
		Vertices:          make([]plane.Vec3, len(wp.Vertices)),
		Triangles:         append([]uint32(nil), wp.Triangles...),
		DetectedUnixNanos: unixNanos,
	}
	for i, v := range wp.Vertices {
		p.Vertices[i] = plane.Vec3(v)
	}
	return p
}

func fromPlane(p *plane.DetectedPlane) *wirePlane {
	wp := &wirePlane{
		ID:             p.ID,
		Classification: string(p.Classification),
		Alignment:      string(p.Alignment),
		Transform:      [16]float32(p.Transform),
		Vertices:       make([][3]float32, len(p.Vertices)),
		Triangles:      append([]uint32(nil), p.Triangles...),
	}
	for i, v := range p.Vertices {
		wp.Vertices[i] = [3]float32(v)
	}
	return wp
}
