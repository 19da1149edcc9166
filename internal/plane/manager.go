package plane

import (
	"log"
	"sync"
)

// Entity is the scene-side materialization of a detected plane. The manager
// only needs identity and teardown; the concrete type lives in the scene
// package, which must not be imported from here.
type Entity interface {
	PlaneID() string
	Release()
}

// EntityBuilder derives a renderable/collidable entity from a plane snapshot.
// A nil entity with a non-nil error means the plane has no visual; the
// manager logs and carries on.
type EntityBuilder interface {
	Build(p *DetectedPlane) (Entity, error)
}

// Delegate receives a callback after every committed transition. Callbacks
// run on the manager's calling goroutine, which is the single event-consumer
// goroutine in production.
type Delegate interface {
	PlaneAdded(p *DetectedPlane)
	PlaneUpdated(p *DetectedPlane)
	PlaneRemoved(p *DetectedPlane)
}

// Manager mirrors provider plane transitions into two keyed maps: plane id
// to latest snapshot, and plane id to derived scene entity. The two key sets
// stay identical except while a snapshot's entity failed to build.
//
// All mutation is serialized by one mutex; callers never see partial
// transitions.
type Manager struct {
	mu       sync.Mutex
	planes   map[string]*DetectedPlane
	entities map[string]Entity
	builder  EntityBuilder
	delegate Delegate
}

// NewManager creates an empty manager. builder may be nil, in which case no
// entities are derived (useful for headless tests and replay analysis).
func NewManager(builder EntityBuilder) *Manager {
	return &Manager{
		planes:   make(map[string]*DetectedPlane),
		entities: make(map[string]Entity),
		builder:  builder,
	}
}

// SetDelegate installs the transition observer. A nil delegate disables
// notifications.
func (m *Manager) SetDelegate(d Delegate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegate = d
}

// Add stores a new plane snapshot, derives its entity, and notifies the
// delegate. A re-add of a known id replaces the stored snapshot, mirroring
// what the platform reported. Returns an error only for invalid input.
func (m *Manager) Add(p *DetectedPlane) error {
	return m.upsert(p, true)
}

// Update replaces the stored snapshot for p.ID, or creates it if the id is
// not yet known, and notifies the delegate. Returns an error only for
// invalid input.
func (m *Manager) Update(p *DetectedPlane) error {
	return m.upsert(p, false)
}

func (m *Manager) upsert(p *DetectedPlane, added bool) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	stored := p.Clone()
	m.planes[stored.ID] = stored

	if old, ok := m.entities[stored.ID]; ok {
		old.Release()
		delete(m.entities, stored.ID)
	}
	if m.builder != nil {
		ent, err := m.builder.Build(stored)
		if err != nil {
			// Degrade to "no visual"; a later update retries.
			log.Printf("[planes] entity build failed for plane %s: %v", stored.ID, err)
		} else if ent != nil {
			m.entities[stored.ID] = ent
		}
	}
	d := m.delegate
	m.mu.Unlock()

	if d != nil {
		if added {
			d.PlaneAdded(stored)
		} else {
			d.PlaneUpdated(stored)
		}
	}
	return nil
}

// Remove discards the snapshot and entity for id if present and notifies the
// delegate with the last-known snapshot. Removing an unknown id is a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	stored, ok := m.planes[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.planes, id)
	if ent, ok := m.entities[id]; ok {
		ent.Release()
		delete(m.entities, id)
	}
	d := m.delegate
	m.mu.Unlock()

	if d != nil {
		d.PlaneRemoved(stored)
	}
}

// Get returns the stored snapshot for id. The returned value must be treated
// as immutable.
func (m *Manager) Get(id string) (*DetectedPlane, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.planes[id]
	return p, ok
}

// Entity returns the derived entity for id, if one was built.
func (m *Manager) Entity(id string) (Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	return e, ok
}

// Planes returns the current snapshots in no particular order.
func (m *Manager) Planes() []*DetectedPlane {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*DetectedPlane, 0, len(m.planes))
	for _, p := range m.planes {
		out = append(out, p)
	}
	return out
}

// Len returns the number of tracked planes.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.planes)
}

// EntityCount returns the number of derived entities. Normally equal to
// Len; lower while some snapshots have no visual.
func (m *Manager) EntityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

// CountsByClassification returns the number of tracked planes per
// classification.
func (m *Manager) CountsByClassification() map[Classification]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[Classification]int)
	for _, p := range m.planes {
		counts[p.Classification]++
	}
	return counts
}

// Reset discards all snapshots and releases all entities without delegate
// notifications. Used between replay sessions.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		e.Release()
	}
	m.planes = make(map[string]*DetectedPlane)
	m.entities = make(map[string]Entity)
}
