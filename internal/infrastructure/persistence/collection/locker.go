package collection

import (
	"context"
	"sync"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// Locker holds one mutex per agency. It implements shared.TenantLocker.
// Cross-process writers are still protected by the store revision check.
type Locker struct {
	mu    sync.Mutex
	locks map[shared.AgencyID]chan struct{}
}

// NewLocker creates a Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[shared.AgencyID]chan struct{})}
}

// LockTenant blocks until the agency lock is free or ctx is done.
func (l *Locker) LockTenant(ctx context.Context, agencyID shared.AgencyID) (func(), error) {
	ch := l.slot(agencyID)

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, shared.WrapError("storage", "LockTenant", shared.ErrTimeout, "tenant lock not acquired", ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}

func (l *Locker) slot(agencyID shared.AgencyID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[agencyID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[agencyID] = ch
	}
	return ch
}
