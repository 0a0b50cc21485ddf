package persistence

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/petrijr/agentsim/pkg/api"
)

// EventStore is an append-only history of simulation events.
type EventStore interface {
	AppendEvent(ev api.SimulationEvent)
	// RecentEvents returns up to limit of the newest events, oldest first.
	// limit <= 0 returns all retained events.
	RecentEvents(limit int) []api.SimulationEvent
	// Len is the number of retained events.
	Len() int
	Clear()
}

// RingEventStore keeps the most recent Capacity events.
type RingEventStore struct {
	mu    deadlock.Mutex
	buf   []api.SimulationEvent
	start int
	size  int
}

var _ EventStore = (*RingEventStore)(nil)

// NewRingEventStore creates a store retaining at most capacity events.
func NewRingEventStore(capacity int) *RingEventStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingEventStore{buf: make([]api.SimulationEvent, capacity)}
}

func (s *RingEventStore) AppendEvent(ev api.SimulationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size < len(s.buf) {
		s.buf[(s.start+s.size)%len(s.buf)] = ev
		s.size++
		return
	}
	// Full: overwrite the oldest.
	s.buf[s.start] = ev
	s.start = (s.start + 1) % len(s.buf)
}

func (s *RingEventStore) RecentEvents(limit int) []api.SimulationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]api.SimulationEvent, n)
	first := s.start + s.size - n
	for i := 0; i < n; i++ {
		out[i] = s.buf[(first+i)%len(s.buf)]
	}
	return out
}

func (s *RingEventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *RingEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.buf)
	s.start = 0
	s.size = 0
}
