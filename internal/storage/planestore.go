// Package storage persists plane detection history: an append-only event
// log of every transition and an upserted snapshot of the latest state per
// plane id.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bitsmakerde/planemirror/internal/plane"
)

// PlaneStore provides persistence for plane snapshots and transitions.
type PlaneStore struct {
	db *sql.DB
}

// NewPlaneStore creates a PlaneStore over db. Schema comes from the
// db/migrations directory.
func NewPlaneStore(db *sql.DB) *PlaneStore {
	return &PlaneStore{db: db}
}

// EventRecord is one row of the transition log.
type EventRecord struct {
	EventID        string  `json:"event_id"`
	PlaneID        string  `json:"plane_id"`
	Kind           string  `json:"kind"`
	Classification string  `json:"classification,omitempty"`
	Alignment      string  `json:"alignment,omitempty"`
	AreaM2         float64 `json:"area_m2,omitempty"`
	VertexCount    int     `json:"vertex_count,omitempty"`
	RecordedAtNs   int64   `json:"recorded_at_ns"`
}

// Snapshot is the latest persisted state of one plane.
type Snapshot struct {
	PlaneID        string          `json:"plane_id"`
	Classification string          `json:"classification"`
	Alignment      string          `json:"alignment"`
	TransformJSON  json.RawMessage `json:"transform_json"`
	AreaM2         float64         `json:"area_m2"`
	VertexCount    int             `json:"vertex_count"`
	FirstSeenNs    int64           `json:"first_seen_ns"`
	LastUpdatedNs  int64           `json:"last_updated_ns"`
	RemovedAtNs    *int64          `json:"removed_at_ns,omitempty"`
}

// RecordEvent appends one transition to the event log. p may be nil for
// removed events whose snapshot is already gone.
func (s *PlaneStore) RecordEvent(kind string, planeID string, p *plane.DetectedPlane) error {
	rec := EventRecord{
		EventID:      uuid.New().String(),
		PlaneID:      planeID,
		Kind:         kind,
		RecordedAtNs: time.Now().UnixNano(),
	}
	if p != nil {
		rec.Classification = string(p.Classification)
		rec.Alignment = string(p.Alignment)
		rec.AreaM2 = float64(p.Area())
		rec.VertexCount = len(p.Vertices)
	}

	_, err := s.db.Exec(`
		INSERT INTO plane_events (
			event_id, plane_id, kind, classification, alignment,
			area_m2, vertex_count, recorded_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.EventID, rec.PlaneID, rec.Kind,
		nullString(rec.Classification), nullString(rec.Alignment),
		rec.AreaM2, rec.VertexCount, rec.RecordedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert plane event: %w", err)
	}
	return nil
}

// UpsertSnapshot writes the latest state for p.ID, clearing any previous
// removal mark (a re-added id is live again).
func (s *PlaneStore) UpsertSnapshot(p *plane.DetectedPlane) error {
	transformJSON, err := json.Marshal(p.Transform)
	if err != nil {
		return fmt.Errorf("marshal transform: %w", err)
	}
	now := time.Now().UnixNano()

	_, err = s.db.Exec(`
		INSERT INTO plane_snapshots (
			plane_id, classification, alignment, transform_json,
			area_m2, vertex_count, first_seen_ns, last_updated_ns, removed_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(plane_id) DO UPDATE SET
			classification = excluded.classification,
			alignment = excluded.alignment,
			transform_json = excluded.transform_json,
			area_m2 = excluded.area_m2,
			vertex_count = excluded.vertex_count,
			last_updated_ns = excluded.last_updated_ns,
			removed_at_ns = NULL
	`,
		p.ID, string(p.Classification), string(p.Alignment), string(transformJSON),
		float64(p.Area()), len(p.Vertices), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert plane snapshot: %w", err)
	}
	return nil
}

// MarkRemoved flags a snapshot as removed without deleting its history.
func (s *PlaneStore) MarkRemoved(planeID string, atNs int64) error {
	if atNs == 0 {
		atNs = time.Now().UnixNano()
	}
	_, err := s.db.Exec(
		`UPDATE plane_snapshots SET removed_at_ns = ? WHERE plane_id = ?`,
		atNs, planeID,
	)
	if err != nil {
		return fmt.Errorf("mark plane removed: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the latest persisted state for planeID.
func (s *PlaneStore) GetSnapshot(planeID string) (*Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT plane_id, classification, alignment, transform_json,
		       area_m2, vertex_count, first_seen_ns, last_updated_ns, removed_at_ns
		FROM plane_snapshots
		WHERE plane_id = ?
	`, planeID)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plane not found: %s", planeID)
	}
	if err != nil {
		return nil, fmt.Errorf("get plane snapshot: %w", err)
	}
	return snap, nil
}

// ListActive returns all snapshots not marked removed, most recently
// updated first.
func (s *PlaneStore) ListActive() ([]*Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT plane_id, classification, alignment, transform_json,
		       area_m2, vertex_count, first_seen_ns, last_updated_ns, removed_at_ns
		FROM plane_snapshots
		WHERE removed_at_ns IS NULL
		ORDER BY last_updated_ns DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active planes: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plane snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active planes: %w", err)
	}
	return snaps, nil
}

// CountsByClassification returns active snapshot counts per classification.
func (s *PlaneStore) CountsByClassification() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT classification, COUNT(*)
		FROM plane_snapshots
		WHERE removed_at_ns IS NULL
		GROUP BY classification
	`)
	if err != nil {
		return nil, fmt.Errorf("count planes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("scan plane count: %w", err)
		}
		counts[class] = n
	}
	return counts, rows.Err()
}

// EventsSince returns transition log rows recorded at or after sinceNs,
// oldest first, capped at limit (0 means no cap).
func (s *PlaneStore) EventsSince(sinceNs int64, limit int) ([]*EventRecord, error) {
	query := `
		SELECT event_id, plane_id, kind, classification, alignment,
		       area_m2, vertex_count, recorded_at_ns
		FROM plane_events
		WHERE recorded_at_ns >= ?
		ORDER BY recorded_at_ns ASC, rowid ASC
	`
	args := []any{sinceNs}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list plane events: %w", err)
	}
	defer rows.Close()

	var recs []*EventRecord
	for rows.Next() {
		var rec EventRecord
		var class, align sql.NullString
		if err := rows.Scan(
			&rec.EventID, &rec.PlaneID, &rec.Kind, &class, &align,
			&rec.AreaM2, &rec.VertexCount, &rec.RecordedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan plane event: %w", err)
		}
		rec.Classification = class.String
		rec.Alignment = align.String
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snap Snapshot
	var transformJSON string
	var removedAtNs sql.NullInt64
	err := row.Scan(
		&snap.PlaneID, &snap.Classification, &snap.Alignment, &transformJSON,
		&snap.AreaM2, &snap.VertexCount, &snap.FirstSeenNs, &snap.LastUpdatedNs,
		&removedAtNs,
	)
	if err != nil {
		return nil, err
	}
	snap.TransformJSON = json.RawMessage(transformJSON)
	if removedAtNs.Valid {
		v := removedAtNs.Int64
		snap.RemovedAtNs = &v
	}
	return &snap, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
