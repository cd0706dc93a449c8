package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	day := time.Date(2024, 3, 6, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, "collection:sag_students_demo", collectionKey("sag_students_demo"))
	assert.Equal(t, "notified:demo:2024-03-06:t1", notifiedKey("demo", "t1", day))
}

func TestClient_Namespace(t *testing.T) {
	c := Wrap(nil, "")
	assert.Equal(t, "crm:collection:x", c.key("collection:x"))

	c = Wrap(nil, "staging:")
	assert.Equal(t, "staging:a:b", c.key("a", "b"))
}

func TestClient_RejectsBadArguments(t *testing.T) {
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}), "test")
	defer func() { _ = c.Close() }()
	ctx := context.Background()

	_, err := c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)

	err = c.Set(ctx, "k", []byte("v"), -time.Second)
	assert.ErrorIs(t, err, ErrNegTTL)

	_, err = c.SetNX(ctx, "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)

	assert.NoError(t, c.Del(ctx))
}

func TestConnect_Unreachable(t *testing.T) {
	opts := DefaultOptions()
	opts.Addr = "127.0.0.1:1"
	opts.DialTimeout = 200 * time.Millisecond
	opts.MaxRetries = -1

	_, err := Connect(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoConnect)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "localhost:6379", DefaultOptions().Addr)
	assert.Equal(t, 48*time.Hour, NewNotifiedSet(nil, 0).ttl)
	assert.Equal(t, TTLCollectionCache, NewCachedStore(nil, nil, 0, nil).ttl)
}
