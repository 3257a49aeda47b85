// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"threadline/internal/config"
	"threadline/internal/database"
	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

// Config returns a test configuration backed by an in-memory SQLite store.
func Config() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		AllowedOrigins: "http://localhost:5173",
		JWTSecret:      testSecret,
		JWTIssuer:      "threadline-api",
		JWTAudience:    "threadline-client",
		StoreDriver:    config.DriverSQLite,
		SQLitePath:     ":memory:",
	}
}

// NewSQLiteStore opens a migrated in-memory store that is closed with the test.
func NewSQLiteStore(t *testing.T, cfg *config.Config) repository.Store {
	t.Helper()
	db, err := database.Connect(context.Background(), cfg)
	require.NoError(t, err)

	store := repository.NewGormStore(db, cfg.StoreDriver)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

// Token signs a one hour bearer token for userID.
func Token(t *testing.T, cfg *config.Config, userID string) string {
	t.Helper()
	token, err := middleware.SignToken(cfg, userID, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return token
}

// SeedUser stores a user with the given id and username.
func SeedUser(t *testing.T, store repository.Store, id, username string, admin bool) *models.User {
	t.Helper()
	user := &models.User{ID: id, Username: username, Avatar: "https://example.com/" + username + ".png", IsAdmin: admin}
	require.NoError(t, store.Users().Upsert(context.Background(), user))
	return user
}
