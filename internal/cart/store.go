package cart

import (
	"encoding/json"
	"errors"
	"sync"
)

var ErrIndexOutOfRange = errors.New("cart line index out of range")

// Key scopes a cart to one restaurant and one session. No two sessions share
// a cart.
type Key struct {
	RestaurantSlug string
	SessionID      string
}

// Snapshot is the persisted cart format: the lines plus the save time in
// epoch milliseconds.
type Snapshot struct {
	Items     []LineItem `json:"items"`
	Timestamp int64      `json:"timestamp"`
}

// Store persists cart snapshots. Load's second return reports whether a
// snapshot existed.
type Store interface {
	Load(key Key) (Snapshot, bool, error)
	Save(key Key, snap Snapshot) error
	Delete(key Key) error
}

// MemoryStore keeps snapshots in process memory, serialized to JSON so the
// stored form matches the wire format exactly.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Key][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Key][]byte)}
}

func (s *MemoryStore) Load(key Key) (Snapshot, bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *MemoryStore) Save(key Key, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(key Key) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
