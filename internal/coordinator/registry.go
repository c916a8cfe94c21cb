package coordinator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/TR14WR/Testinfotecs/pkg/types"
)

// Registry tracks the live worker sessions. It is mutated by the accept loop
// and by session teardown; integration requests read consistent snapshots.
type Registry struct {
	sessions map[uint64]*Session
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uint64]*Session),
	}
}

// Register adds a session.
func (r *Registry) Register(s *Session) error {
	if s == nil {
		return fmt.Errorf("session cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID()]; exists {
		return fmt.Errorf("worker already registered: %d", s.ID())
	}
	r.sessions[s.ID()] = s
	return nil
}

// Unregister removes a session by worker id. Removing an unknown id is a
// no-op so session teardown and request cleanup cannot race into errors.
func (r *Registry) Unregister(workerID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, workerID)
}

// Snapshot returns the live sessions sorted by worker id. Assignment
// iterates this order, which keeps unit distribution deterministic for a
// fixed registry state.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID() < sessions[j].ID()
	})
	return sessions
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// TotalCores returns the summed reported capacity of all live workers.
func (r *Registry) TotalCores() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total uint64
	for _, s := range r.sessions {
		total += s.Cores()
	}
	return total
}

// Workers returns registry entries for external listings.
func (r *Registry) Workers() []types.WorkerInfo {
	sessions := r.Snapshot()
	workers := make([]types.WorkerInfo, len(sessions))
	for i, s := range sessions {
		workers[i] = types.WorkerInfo{
			ID:    s.ID(),
			Cores: s.Cores(),
			Addr:  s.RemoteAddr(),
		}
	}
	return workers
}
