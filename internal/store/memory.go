package store

import (
	"sync"

	"github.com/felixgeelhaar/ace/internal/memory"
)

// MemoryStore is an in-process Storage used by tests and the demo mode.
// Secrets are kept unsealed; nothing here outlives the process.
type MemoryStore struct {
	mu           sync.RWMutex
	state        *memory.ContextState
	trajectories []*Trajectory
	config       map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{config: make(map[string]string)}
}

func (m *MemoryStore) SaveState(st *memory.ContextState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
	return nil
}

func (m *MemoryStore) LoadState() (*memory.ContextState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return memory.NewState(), nil
	}
	return m.state, nil
}

func (m *MemoryStore) SaveTrajectory(tr *Trajectory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tr
	m.trajectories = append(m.trajectories, &cp)
	return nil
}

func (m *MemoryStore) ListTrajectories(limit int) ([]*Trajectory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Trajectory, 0, len(m.trajectories))
	for i := len(m.trajectories) - 1; i >= 0; i-- {
		list = append(list, m.trajectories[i])
		if limit > 0 && len(list) == limit {
			break
		}
	}
	return list, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config[key], nil
}

func (m *MemoryStore) SetSecret(key, value string) error {
	return m.Set(key, value)
}

func (m *MemoryStore) GetSecret(key string) (string, error) {
	return m.Get(key)
}

func (m *MemoryStore) Close() error {
	return nil
}
