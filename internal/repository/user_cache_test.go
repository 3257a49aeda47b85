package repository

import (
	"context"
	"testing"
	"time"

	"threadline/internal/cache"
	"threadline/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingUsers struct {
	users map[string]*models.User
	calls int
}

func (s *countingUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	s.calls++
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *countingUsers) GetByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	s.calls++
	out := map[string]*models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *countingUsers) Upsert(_ context.Context, u *models.User) error {
	s.users[u.ID] = u
	return nil
}

func newCachedUsers(t *testing.T) (UserRepository, *countingUsers, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := &countingUsers{users: map[string]*models.User{
		"u1": {ID: "u1", Username: "alice"},
		"u2": {ID: "u2", Username: "bob"},
	}}
	return NewCachedUserRepository(inner, cache.New(rdb), time.Minute), inner, mr
}

func TestCachedUserRepository_GetByID(t *testing.T) {
	repo, inner, mr := newCachedUsers(t)
	ctx := context.Background()

	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	u, err = repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, 1, inner.calls)
	assert.True(t, mr.Exists(cache.AuthorKey("u1")))

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedUserRepository_GetByIDs(t *testing.T) {
	repo, inner, _ := newCachedUsers(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)

	got, err := repo.GetByIDs(ctx, []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "bob", got["u2"].Username)
	assert.Equal(t, 2, inner.calls)

	got, err = repo.GetByIDs(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedUserRepository_UpsertInvalidates(t *testing.T) {
	repo, _, mr := newCachedUsers(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.AuthorKey("u1")))

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "u1", Username: "alice2"}))
	assert.False(t, mr.Exists(cache.AuthorKey("u1")))

	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Username)
}

func TestNewCachedUserRepository_DisabledCache(t *testing.T) {
	inner := &countingUsers{users: map[string]*models.User{}}
	assert.Same(t, UserRepository(inner), NewCachedUserRepository(inner, cache.New(nil), time.Minute))
}
