package mirror

import (
	"log"

	"github.com/bitsmakerde/planemirror/internal/plane"
	"github.com/bitsmakerde/planemirror/internal/storage"
)

// StoreSink persists committed transitions to a plane store. Store failures
// are logged and swallowed; the live mirror state is authoritative and must
// not stall on persistence.
type StoreSink struct {
	store *storage.PlaneStore
}

// NewStoreSink creates a sink writing to store.
func NewStoreSink(store *storage.PlaneStore) *StoreSink {
	return &StoreSink{store: store}
}

// PlaneAdded implements plane.Delegate.
func (s *StoreSink) PlaneAdded(p *plane.DetectedPlane) {
	if err := s.store.RecordEvent("added", p.ID, p); err != nil {
		log.Printf("[storesink] record added event: %v", err)
	}
	if err := s.store.UpsertSnapshot(p); err != nil {
		log.Printf("[storesink] upsert snapshot %s: %v", p.ID, err)
	}
}

// PlaneUpdated implements plane.Delegate.
func (s *StoreSink) PlaneUpdated(p *plane.DetectedPlane) {
	if err := s.store.RecordEvent("updated", p.ID, p); err != nil {
		log.Printf("[storesink] record updated event: %v", err)
	}
	if err := s.store.UpsertSnapshot(p); err != nil {
		log.Printf("[storesink] upsert snapshot %s: %v", p.ID, err)
	}
}

// PlaneRemoved implements plane.Delegate.
func (s *StoreSink) PlaneRemoved(p *plane.DetectedPlane) {
	if err := s.store.RecordEvent("removed", p.ID, nil); err != nil {
		log.Printf("[storesink] record removed event: %v", err)
	}
	if err := s.store.MarkRemoved(p.ID, 0); err != nil {
		log.Printf("[storesink] mark removed %s: %v", p.ID, err)
	}
}
