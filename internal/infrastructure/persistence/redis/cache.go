// Package redis implements the Redis side of the collection stack:
// a read-through cache in front of any collection.Store and the
// notified-task set used by the due-soon reminder job.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// TTLCollectionCache is how long a cached collection snapshot lives.
	TTLCollectionCache = 5 * time.Minute

	// TTLNotifiedTask is how long a "reminder sent" mark lives.
	TTLNotifiedTask = 48 * time.Hour

	defaultNamespace = "crm"
)

var (
	ErrMiss      = errors.New("redis: cache miss")
	ErrEmptyKey  = errors.New("redis: empty key")
	ErrNegTTL    = errors.New("redis: negative ttl")
	ErrNoConnect = errors.New("redis: connect failed")

	errGenerationMoved = errors.New("redis: generation moved")
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Options configures Connect. Namespace prefixes every key so several
// deployments can share one Redis database.
type Options struct {
	Addr      string
	Password  string
	DB        int
	Namespace string

	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultOptions points at a local Redis.
func DefaultOptions() Options {
	return Options{
		Addr:         "localhost:6379",
		Namespace:    defaultNamespace,
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Client is a namespaced go-redis client.
type Client struct {
	rdb redis.UniversalClient
	ns  string
}

// Connect dials Redis and pings it within DialTimeout.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MaxRetries:   opts.MaxRetries,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNoConnect, opts.Addr, err)
	}
	return Wrap(rdb, opts.Namespace), nil
}

// Wrap uses an existing client. An empty namespace means "crm".
func Wrap(rdb redis.UniversalClient, namespace string) *Client {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Client{rdb: rdb, ns: strings.TrimSuffix(namespace, ":")}
}

func (c *Client) Close() error                   { return c.rdb.Close() }
func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

// key joins the namespace and the parts with ':'.
func (c *Client) key(parts ...string) string {
	return c.ns + ":" + strings.Join(parts, ":")
}

func checkKey(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl < 0 {
		return ErrNegTTL
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS (keys are relative to the namespace)
// ══════════════════════════════════════════════════════════════════════════════

// Get returns the stored bytes or ErrMiss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key, 0); err != nil {
		return nil, err
	}
	b, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := checkKey(key, ttl); err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(key), value, ttl).Err()
}

// Del removes keys. Missing keys are not an error.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.rdb.Del(ctx, full...).Err()
}

// SetNX reports true when the key did not exist and was set.
func (c *Client) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := checkKey(key, ttl); err != nil {
		return false, err
	}
	return c.rdb.SetNX(ctx, c.key(key), "1", ttl).Result()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key, 0); err != nil {
		return false, err
	}
	n, err := c.rdb.Exists(ctx, c.key(key)).Result()
	return n > 0, err
}

// Generation returns the counter stored at key, 0 when unset.
func (c *Client) Generation(ctx context.Context, key string) (int64, error) {
	if err := checkKey(key, 0); err != nil {
		return 0, err
	}
	n, err := c.rdb.Get(ctx, c.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Bump increments the counter at key.
func (c *Client) Bump(ctx context.Context, key string) error {
	if err := checkKey(key, 0); err != nil {
		return err
	}
	return c.rdb.Incr(ctx, c.key(key)).Err()
}

// SetIfGeneration writes value only while the counter at genKey still equals
// gen, using WATCH on genKey. It reports false when the counter moved.
func (c *Client) SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64) (bool, error) {
	if err := checkKey(key, ttl); err != nil {
		return false, err
	}
	if err := checkKey(genKey, 0); err != nil {
		return false, err
	}
	full, guard := c.key(key), c.key(genKey)

	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, guard).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errGenerationMoved
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, full, value, ttl)
			return nil
		})
		return err
	}, guard)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errGenerationMoved), errors.Is(err, redis.TxFailedErr):
		return false, nil
	}
	return false, err
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

func collectionKey(physical string) string {
	return "collection:" + physical
}

func generationKey(physical string) string {
	return "generation:" + physical
}

func notifiedKey(agencyID, taskID string, day time.Time) string {
	return "notified:" + agencyID + ":" + day.Format(time.DateOnly) + ":" + taskID
}
