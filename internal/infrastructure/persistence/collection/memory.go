package collection

import (
	"context"
	"sync"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// MemoryStore keeps collections in process memory.
// Used in development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Snapshot
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Snapshot)}
}

// Fetch implements Store.
func (m *MemoryStore) Fetch(ctx context.Context, agencyID shared.AgencyID, name Name) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, shared.StorageFailure("Fetch", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.data[Key(agencyID, name)]
	if !ok {
		return Snapshot{}, nil
	}
	out := make([]byte, len(snap.Data))
	copy(out, snap.Data)
	return Snapshot{Data: out, Revision: snap.Revision}, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, agencyID shared.AgencyID, name Name, data []byte, baseRevision int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, shared.StorageFailure("Save", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(agencyID, name)
	current := m.data[key].Revision
	if current != baseRevision {
		return 0, shared.ConcurrentModification(string(name), baseRevision, current)
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[key] = Snapshot{Data: stored, Revision: current + 1}
	return current + 1, nil
}

// Len returns the number of stored collections.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
