package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestCache_CacheAside(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *summary) func() error {
		return func() error {
			calls++
			*dest = summary{ID: "u1", Username: "ada"}
			return nil
		}
	}

	var first summary
	require.NoError(t, c.CacheAside(ctx, AuthorKey("u1"), &first, time.Minute, fetch(&first)))
	assert.Equal(t, "ada", first.Username)
	assert.True(t, mr.Exists("author:u1"))

	var second summary
	require.NoError(t, c.CacheAside(ctx, AuthorKey("u1"), &second, time.Minute, fetch(&second)))
	assert.Equal(t, "ada", second.Username)
	assert.Equal(t, 1, calls)

	c.Invalidate(ctx, AuthorKey("u1"))
	assert.False(t, mr.Exists("author:u1"))
}

func TestCache_MGetJSON(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, AuthorKey("u2"), summary{ID: "u2", Username: "grace"}, time.Minute))

	hits := map[int]summary{}
	err := c.MGetJSON(ctx, []string{AuthorKey("u1"), AuthorKey("u2")}, func(i int, raw []byte) error {
		var s summary
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		hits[i] = s
		return nil
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "grace", hits[1].Username)
}

func TestCache_NilClientIsNoop(t *testing.T) {
	t.Parallel()
	c := New(nil)
	ctx := context.Background()

	found, err := c.GetJSON(ctx, "k", &summary{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.SetJSON(ctx, "k", summary{}, time.Minute))

	var dest summary
	require.NoError(t, c.CacheAside(ctx, "k", &dest, time.Minute, func() error {
		dest.ID = "fetched"
		return nil
	}))
	assert.Equal(t, "fetched", dest.ID)
}

func TestNewClient_ParsesURL(t *testing.T) {
	t.Parallel()
	rdb, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", rdb.Options().Addr)
	assert.Equal(t, 2, rdb.Options().DB)
	_ = rdb.Close()

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}
