package collection

import (
	"context"
	"sync"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// MemoryNotifiedSet implements task.NotifiedSet in process memory.
// Marks older than ttl are pruned on write.
type MemoryNotifiedSet struct {
	mu    sync.Mutex
	marks map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryNotifiedSet creates a set whose marks expire after ttl.
func NewMemoryNotifiedSet(ttl time.Duration) *MemoryNotifiedSet {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &MemoryNotifiedSet{marks: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func notifiedKey(agencyID shared.AgencyID, taskID string, date time.Time) string {
	return string(agencyID) + "|" + date.Format(time.DateOnly) + "|" + taskID
}

// MarkNotified records the mark and reports whether it was new.
func (m *MemoryNotifiedSet) MarkNotified(_ context.Context, agencyID shared.AgencyID, taskID string, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, at := range m.marks {
		if now.Sub(at) > m.ttl {
			delete(m.marks, k)
		}
	}

	key := notifiedKey(agencyID, taskID, date)
	if _, ok := m.marks[key]; ok {
		return false, nil
	}
	m.marks[key] = now
	return true, nil
}

// IsNotified reports whether the mark exists.
func (m *MemoryNotifiedSet) IsNotified(_ context.Context, agencyID shared.AgencyID, taskID string, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.marks[notifiedKey(agencyID, taskID, date)]
	return ok && m.now().Sub(at) <= m.ttl, nil
}
