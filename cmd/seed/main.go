// Command seed fills the configured comment store with demo threads.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"threadline/internal/bootstrap"
	"threadline/internal/config"
	"threadline/internal/middleware"
	"threadline/internal/seed"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numThreads := flag.Int("threads", 25, "Number of top-level comments to create")
	maxReplies := flag.Int("replies", 6, "Maximum replies per thread")
	reactions := flag.Int("reactions", 40, "Chance in percent that a user reacts to a comment")
	maxDays := flag.Int("days", 30, "Spread creation times over this many days")
	admins := flag.Int("admins", 1, "Number of created users with the admin flag")
	randSeed := flag.Int64("seed", 0, "Random seed, 0 uses the clock")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Printf("store close: %v", err)
		}
	}()

	log.Printf("Seeding %s store: %d users, %d threads", cfg.StoreDriver, *numUsers, *numThreads)
	sum, err := seed.NewSeeder(store, seed.Options{
		NumUsers:        *numUsers,
		NumThreads:      *numThreads,
		MaxReplies:      *maxReplies,
		ReactionPercent: *reactions,
		MaxDays:         *maxDays,
		RandSeed:        *randSeed,
		Admins:          *admins,
	}).Seed(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Created %d users, %d threads, %d replies, %d reactions",
		len(sum.Users), sum.Threads, sum.Replies, sum.Reactions)

	first := sum.Users[0]
	token, err := middleware.SignToken(cfg, first.ID, jwt.MapClaims{
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	log.Printf("Token for %s (admin=%t), valid 24h:\n%s", first.Username, first.IsAdmin, token)
}
