// internal/storage/memory.go
package storage

import (
	"sync"

	"github.com/Gavinw575/plant-moisture-monitor/internal/engine"
)

const maxBufferSize = 200 // last 200 classified updates

// MemoryStore keeps a bounded ring of recent classified updates plus the
// latest update per sensor. It backs the status endpoint and the history
// payload sent to newly connected presentation clients.
type MemoryStore struct {
	mu       sync.RWMutex
	buffer   []engine.Update
	capacity int
	latest   map[int]engine.Update
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buffer:   make([]engine.Update, 0, maxBufferSize),
		capacity: maxBufferSize,
		latest:   make(map[int]engine.Update),
	}
}

// Record implements engine.Recorder.
func (s *MemoryStore) Record(u engine.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) >= s.capacity {
		s.buffer = s.buffer[1:]
	}
	s.buffer = append(s.buffer, u)
	s.latest[u.SensorID] = u
}

// Latest returns the most recent update per sensor id.
func (s *MemoryStore) Latest() map[int]engine.Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]engine.Update, len(s.latest))
	for id, u := range s.latest {
		out[id] = u
	}
	return out
}

// GetRecent returns up to count of the newest updates, oldest first.
func (s *MemoryStore) GetRecent(count int) []engine.Update {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if count <= 0 || count > len(s.buffer) {
		count = len(s.buffer)
	}
	result := make([]engine.Update, count)
	copy(result, s.buffer[len(s.buffer)-count:])
	return result
}

// GetAll returns a copy of the whole buffer.
func (s *MemoryStore) GetAll() []engine.Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]engine.Update, len(s.buffer))
	copy(result, s.buffer)
	return result
}
