package redis

import (
	"context"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// NotifiedSet implements task.NotifiedSet with SETNX keys that expire.
type NotifiedSet struct {
	cache *Client
	ttl   time.Duration
}

// NewNotifiedSet creates the set. A zero ttl uses TTLNotifiedTask.
func NewNotifiedSet(cache *Client, ttl time.Duration) *NotifiedSet {
	if ttl <= 0 {
		ttl = TTLNotifiedTask
	}
	return &NotifiedSet{cache: cache, ttl: ttl}
}

// MarkNotified records the mark and reports whether it was new.
func (n *NotifiedSet) MarkNotified(ctx context.Context, agencyID shared.AgencyID, taskID string, date time.Time) (bool, error) {
	ok, err := n.cache.SetNX(ctx, notifiedKey(string(agencyID), taskID, date), n.ttl)
	if err != nil {
		return false, shared.WrapError("redis", "MarkNotified", shared.ErrServiceUnavailable, "notified set unavailable", err)
	}
	return ok, nil
}

// IsNotified reports whether the mark exists.
func (n *NotifiedSet) IsNotified(ctx context.Context, agencyID shared.AgencyID, taskID string, date time.Time) (bool, error) {
	ok, err := n.cache.Exists(ctx, notifiedKey(string(agencyID), taskID, date))
	if err != nil {
		return false, shared.WrapError("redis", "IsNotified", shared.ErrServiceUnavailable, "notified set unavailable", err)
	}
	return ok, nil
}
