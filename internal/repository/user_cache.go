package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"threadline/internal/cache"
	"threadline/internal/middleware"
	"threadline/internal/models"
)

type cachedUserRepository struct {
	inner UserRepository
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedUserRepository puts a Redis cache-aside layer in front of inner.
// Cache failures fall through to inner.
func NewCachedUserRepository(inner UserRepository, c *cache.Cache, ttl time.Duration) UserRepository {
	if !c.Enabled() {
		return inner
	}
	return &cachedUserRepository{inner: inner, cache: c, ttl: ttl}
}

func (r *cachedUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.cache.CacheAside(ctx, cache.AuthorKey(id), &user, r.ttl, func() error {
		u, err := r.inner.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *cachedUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	ids = uniqueIDs(ids)
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.AuthorKey(id)
	}
	err := r.cache.MGetJSON(ctx, keys, func(i int, raw []byte) error {
		var u models.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil
		}
		out[ids[i]] = &u
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "author cache read failed", slog.String("error", err.Error()))
	}

	var missing []string
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	found, err := r.inner.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, u := range found {
		out[id] = u
		_ = r.cache.SetJSON(ctx, cache.AuthorKey(id), u, r.ttl)
	}
	return out, nil
}

func (r *cachedUserRepository) Upsert(ctx context.Context, user *models.User) error {
	if err := r.inner.Upsert(ctx, user); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, cache.AuthorKey(user.ID))
	return nil
}
