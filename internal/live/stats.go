package live

import (
	"sync"

	"github.com/streamtap-project/streamtap/internal/events"
)

// Stats counts emitted signals by type.
type Stats struct {
	mu     sync.Mutex
	counts map[events.EventType]uint64
}

func newStats() *Stats {
	return &Stats{counts: make(map[events.EventType]uint64)}
}

func (s *Stats) add(t events.EventType) {
	s.mu.Lock()
	s.counts[t]++
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() map[events.EventType]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[events.EventType]uint64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
