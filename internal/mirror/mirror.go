// Package mirror is the composition root of the event path: it routes
// provider events into the plane manager and fans manager transitions out to
// sinks (persistence, monitoring). It imports the layer packages; none of
// them import mirror.
package mirror

import (
	"log"

	"github.com/bitsmakerde/planemirror/internal/plane"
	"github.com/bitsmakerde/planemirror/internal/provider"
)

// Sink receives committed transitions. It is shaped like plane.Delegate so
// adapters can serve both roles. Sink failures must be handled internally;
// the event loop never stops for a sink.
type Sink = plane.Delegate

// Mirror wires the provider event stream to the plane manager.
type Mirror struct {
	manager *plane.Manager
	sinks   []Sink
}

// New creates a mirror over manager and installs itself as the manager's
// delegate. Transitions fan out to the sinks in order.
func New(manager *plane.Manager, sinks ...Sink) *Mirror {
	m := &Mirror{manager: manager, sinks: sinks}
	manager.SetDelegate(m)
	return m
}

// Manager returns the underlying plane manager.
func (m *Mirror) Manager() *plane.Manager { return m.manager }

// HandleEvent applies one provider event. It is the provider.Handler used
// by the UDP listener and the replayers; events arrive strictly one at a
// time.
func (m *Mirror) HandleEvent(ev provider.PlaneEvent) {
	switch ev.Kind {
	case provider.EventAdded:
		if err := m.manager.Add(ev.Plane); err != nil {
			log.Printf("[mirror] dropping added event: %v", err)
		}
	case provider.EventUpdated:
		if err := m.manager.Update(ev.Plane); err != nil {
			log.Printf("[mirror] dropping updated event: %v", err)
		}
	case provider.EventRemoved:
		m.manager.Remove(ev.PlaneID)
	default:
		log.Printf("[mirror] ignoring event with unknown kind %q", ev.Kind)
	}
}

// PlaneAdded implements plane.Delegate.
func (m *Mirror) PlaneAdded(p *plane.DetectedPlane) {
	for _, s := range m.sinks {
		s.PlaneAdded(p)
	}
}

// PlaneUpdated implements plane.Delegate.
func (m *Mirror) PlaneUpdated(p *plane.DetectedPlane) {
	for _, s := range m.sinks {
		s.PlaneUpdated(p)
	}
}

// PlaneRemoved implements plane.Delegate.
func (m *Mirror) PlaneRemoved(p *plane.DetectedPlane) {
	for _, s := range m.sinks {
		s.PlaneRemoved(p)
	}
}
