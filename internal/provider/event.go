// Package provider ingests plane-detection events from the platform bridge.
// Events arrive as one JSON object per UDP datagram and are consumed
// strictly one at a time; cancelling the context stops consumption.
package provider

import (
	"fmt"

	"github.com/bitsmakerde/planemirror/internal/plane"
)

// EventKind is the transition a plane event describes.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventAdded, EventUpdated, EventRemoved:
		return true
	}
	return false
}

// PlaneEvent is one transition reported by the provider. Added and updated
// events carry the full plane snapshot; removed events carry only the id.
type PlaneEvent struct {
	Kind      EventKind
	Plane     *plane.DetectedPlane // nil for removed
	PlaneID   string               // always set
	UnixNanos int64
}

// Validate checks the event's internal consistency.
func (ev *PlaneEvent) Validate() error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	switch ev.Kind {
	case EventRemoved:
		if ev.PlaneID == "" {
			return fmt.Errorf("removed event has no plane id")
		}
	default:
		if ev.Plane == nil {
			return fmt.Errorf("%s event has no plane", ev.Kind)
		}
		if err := ev.Plane.Validate(); err != nil {
			return fmt.Errorf("%s event: %w", ev.Kind, err)
		}
	}
	return nil
}

// Handler consumes one event. The listener and replayers invoke handlers
// sequentially from a single goroutine.
type Handler func(ev PlaneEvent)
