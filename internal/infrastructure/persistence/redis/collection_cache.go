package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
)

// CachedStore is a read-through cache in front of a collection.Store.
// Saves go to the backing store first, then bump the collection generation
// and drop the cached entry. A snapshot is cached only if the generation did
// not move while it was being read, so a slow reader cannot put back data
// older than a concurrent save. Cache failures are logged and never fail the
// call.
type CachedStore struct {
	next   collection.Store
	cache  snapshotCache
	ttl    time.Duration
	logger *slog.Logger
}

// snapshotCache is the part of *Client used by CachedStore.
type snapshotCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
	Generation(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) error
	SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64) (bool, error)
	Ping(ctx context.Context) error
}

// NewCachedStore wraps next. A zero ttl uses TTLCollectionCache.
func NewCachedStore(next collection.Store, cache *Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = TTLCollectionCache
	}
	if logger == nil {
		logger = slog.Default()
	}
	return newCachedStore(next, cache, ttl, logger)
}

func newCachedStore(next collection.Store, cache snapshotCache, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{next: next, cache: cache, ttl: ttl, logger: logger}
}

type cachedSnapshot struct {
	Data     json.RawMessage `json:"data"`
	Revision int64           `json:"revision"`
}

// Fetch implements collection.Store.
func (s *CachedStore) Fetch(ctx context.Context, agencyID shared.AgencyID, name collection.Name) (collection.Snapshot, error) {
	physical := collection.Key(agencyID, name)
	key, genKey := collectionKey(physical), generationKey(physical)

	raw, err := s.cache.Get(ctx, key)
	if err == nil {
		var cached cachedSnapshot
		if err := json.Unmarshal(raw, &cached); err == nil {
			return collection.Snapshot{Data: cached.Data, Revision: cached.Revision}, nil
		}
		s.logger.Warn("dropping corrupt collection cache entry", "key", key)
		_ = s.cache.Del(ctx, key)
	} else if !errors.Is(err, ErrMiss) {
		s.logger.Warn("collection cache read failed", "key", key, "error", err)
	}

	gen, genErr := s.cache.Generation(ctx, genKey)

	snap, err := s.next.Fetch(ctx, agencyID, name)
	if err != nil {
		return collection.Snapshot{}, err
	}
	if snap.IsEmpty() {
		return snap, nil
	}
	if genErr != nil {
		s.logger.Warn("collection cache generation read failed", "key", genKey, "error", genErr)
		return snap, nil
	}

	encoded, err := json.Marshal(cachedSnapshot{Data: snap.Data, Revision: snap.Revision})
	if err != nil {
		s.logger.Warn("collection cache encode failed", "key", key, "error", err)
		return snap, nil
	}
	stored, err := s.cache.SetIfGeneration(ctx, key, encoded, s.ttl, genKey, gen)
	switch {
	case err != nil:
		s.logger.Warn("collection cache write failed", "key", key, "error", err)
	case !stored:
		s.logger.Debug("collection changed during read, not cached", "key", key, "revision", snap.Revision)
	}
	return snap, nil
}

// Save implements collection.Store.
func (s *CachedStore) Save(ctx context.Context, agencyID shared.AgencyID, name collection.Name, data []byte, baseRevision int64) (int64, error) {
	physical := collection.Key(agencyID, name)
	key, genKey := collectionKey(physical), generationKey(physical)

	rev, err := s.next.Save(ctx, agencyID, name, data, baseRevision)

	// Stale entries are dropped on conflicts too so the retry reads fresh data.
	if genErr := s.cache.Bump(ctx, genKey); genErr != nil {
		s.logger.Warn("collection cache generation bump failed", "key", genKey, "error", genErr)
	}
	if delErr := s.cache.Del(ctx, key); delErr != nil {
		s.logger.Warn("collection cache invalidation failed", "key", key, "error", delErr)
	}
	return rev, err
}

// Ping implements collection.Pinger.
func (s *CachedStore) Ping(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		return err
	}
	if p, ok := s.next.(collection.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
