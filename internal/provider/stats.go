package provider

import (
	"log"
	"sync"
	"time"
)

// Stats counts datagram and event traffic from the bridge.
type Stats struct {
	mu             sync.Mutex
	datagramCount  int64
	byteCount      int64
	malformedCount int64
	eventCounts    map[EventKind]int64
	lastReset      time.Time
}

// NewStats creates a zeroed counter set.
func NewStats() *Stats {
	return &Stats{
		eventCounts: make(map[EventKind]int64),
		lastReset:   time.Now(),
	}
}

// AddDatagram records one received datagram.
func (s *Stats) AddDatagram(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datagramCount++
	s.byteCount += int64(bytes)
}

// AddMalformed records one undecodable datagram.
func (s *Stats) AddMalformed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformedCount++
}

// AddEvent records one successfully parsed event.
func (s *Stats) AddEvent(kind EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventCounts[kind]++
}

// Snapshot returns the current totals without resetting them.
func (s *Stats) Snapshot() (datagrams, bytes, malformed int64, events map[EventKind]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events = make(map[EventKind]int64, len(s.eventCounts))
	for k, v := range s.eventCounts {
		events[k] = v
	}
	return s.datagramCount, s.byteCount, s.malformedCount, events
}

// GetAndReset returns the counters accumulated since the last reset and
// zeroes them.
func (s *Stats) GetAndReset() (datagrams, bytes, malformed int64, events map[EventKind]int64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	d = now.Sub(s.lastReset)
	datagrams = s.datagramCount
	bytes = s.byteCount
	malformed = s.malformedCount
	events = s.eventCounts

	s.datagramCount = 0
	s.byteCount = 0
	s.malformedCount = 0
	s.eventCounts = make(map[EventKind]int64)
	s.lastReset = now
	return
}

// LogStats emits one periodic summary line.
func (s *Stats) LogStats() {
	datagrams, bytes, malformed, events, d := s.GetAndReset()
	if datagrams == 0 && malformed == 0 {
		return
	}
	log.Printf("[provider] %d datagrams (%d bytes) in %.1fs: added=%d updated=%d removed=%d malformed=%d",
		datagrams, bytes, d.Seconds(),
		events[EventAdded], events[EventUpdated], events[EventRemoved], malformed)
}
