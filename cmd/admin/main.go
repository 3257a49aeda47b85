// Package main provides user management utilities for comment moderators.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"threadline/internal/bootstrap"
	"threadline/internal/cache"
	"threadline/internal/config"
	"threadline/internal/middleware"
	"threadline/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>   - Allow user to edit and delete any comment")
	fmt.Println("  go run ./cmd/admin demote <user_id>    - Remove the admin flag")
	fmt.Println("  go run ./cmd/admin token <user_id>     - Print a 24h bearer token for user")
}

func main() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	// Upserts go through the cached repository so stale author entries are dropped.
	users := repository.NewCachedUserRepository(rt.Store.Users(), cache.New(rt.Redis), cfg.AuthorCacheTTL())
	userID := os.Args[2]

	switch command := os.Args[1]; command {
	case "promote":
		err = setAdmin(ctx, users, userID, true)
	case "demote":
		err = setAdmin(ctx, users, userID, false)
	case "token":
		err = printToken(ctx, cfg, users, userID)
	default:
		printUsage()
		err = fmt.Errorf("unknown command: %s", command)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func setAdmin(ctx context.Context, users repository.UserRepository, userID string, admin bool) error {
	user, err := users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("user %s not found", userID)
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	if user.IsAdmin == admin {
		log.Printf("User %s (%s) already has admin=%t", user.Username, user.ID, admin)
		return nil
	}

	user.IsAdmin = admin
	if err := users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	log.Printf("User %s (%s) now has admin=%t", user.Username, user.ID, admin)
	return nil
}

func printToken(ctx context.Context, cfg *config.Config, users repository.UserRepository, userID string) error {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	token, err := middleware.SignToken(cfg, user.ID, jwt.MapClaims{
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
