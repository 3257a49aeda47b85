// Package bootstrap connects the runtime dependencies selected by config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"threadline/internal/cache"
	"threadline/internal/config"
	"threadline/internal/database"
	"threadline/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Runtime holds the connected comment store and the optional Redis client.
type Runtime struct {
	Store repository.Store
	Redis *redis.Client
}

// InitRuntime opens the configured store and connects to Redis. Redis is
// optional: a nil client disables caching, rate limits and cross-instance
// fan-out.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Store: store,
		Redis: cache.InitRedis(cfg.RedisURL),
	}, nil
}

// OpenStore connects to the store named by cfg.StoreDriver, retrying the
// initial connection with backoff.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		var client *mongo.Client
		err := database.WithRetry(ctx, cfg.StoreDriver, cfg.StoreConnectRetries, func() error {
			var err error
			client, err = database.ConnectMongo(ctx, cfg)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		if err := repository.EnsureIndexes(ctx, client, cfg.MongoDatabase); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		return repository.NewMongoStore(client, cfg.MongoDatabase), nil

	case config.DriverPostgres, config.DriverSQLite:
		var db *gorm.DB
		err := database.WithRetry(ctx, cfg.StoreDriver, cfg.StoreConnectRetries, func() error {
			var err error
			db, err = database.Connect(ctx, cfg)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		return repository.NewGormStore(db, cfg.StoreDriver), nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// Close releases the store and the Redis client.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.Store != nil {
		errs = append(errs, r.Store.Close(ctx))
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	return errors.Join(errs...)
}
