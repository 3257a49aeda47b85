package seed

import (
	"context"
	"fmt"
	"log/slog"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/repository"
)

// Options configuration for the seeder
type Options struct {
	NumUsers   int
	NumThreads int
	// MaxReplies is the upper bound of direct replies per thread.
	MaxReplies int
	// ReactionPercent is the chance, 0 to 100, that a user reacts to a comment.
	ReactionPercent int
	MaxDays         int
	RandSeed        int64
	// Admins is how many of the created users get the admin flag.
	Admins int
}

// Summary counts what Seed wrote.
type Summary struct {
	Users     []*models.User
	Threads   int
	Replies   int
	Reactions int
}

// Seeder fills a store with demo threads.
type Seeder struct {
	factory *Factory
	opts    Options
}

// NewSeeder creates a Seeder writing to store.
func NewSeeder(store repository.Store, opts Options) *Seeder {
	return &Seeder{factory: NewFactory(store, opts), opts: opts}
}

// Seed creates users, top-level threads with replies, and reactions.
func (s *Seeder) Seed(ctx context.Context) (*Summary, error) {
	if s.opts.NumUsers <= 0 {
		return nil, fmt.Errorf("at least one user is required")
	}
	f := s.factory
	sum := &Summary{}

	for i := 0; i < s.opts.NumUsers; i++ {
		admin := i < s.opts.Admins
		user, err := f.CreateUser(ctx, func(u *models.User) { u.IsAdmin = admin })
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		sum.Users = append(sum.Users, user)
	}
	middleware.Logger.InfoContext(ctx, "seeded users", slog.Int("count", len(sum.Users)))

	for i := 0; i < s.opts.NumThreads; i++ {
		thread, err := f.CreateComment(ctx, s.pickUser(sum.Users), nil)
		if err != nil {
			return nil, fmt.Errorf("create thread: %w", err)
		}
		sum.Threads++

		replies, err := s.seedReplies(ctx, thread, sum.Users)
		if err != nil {
			return nil, err
		}
		sum.Replies += len(replies)

		for _, c := range append(replies, thread) {
			n, err := s.seedReactions(ctx, c, sum.Users)
			if err != nil {
				return nil, err
			}
			sum.Reactions += n
		}
	}

	middleware.Logger.InfoContext(ctx, "seeded threads",
		slog.Int("threads", sum.Threads),
		slog.Int("replies", sum.Replies),
		slog.Int("reactions", sum.Reactions),
	)
	return sum, nil
}

func (s *Seeder) seedReplies(ctx context.Context, thread *models.Comment, users []*models.User) ([]*models.Comment, error) {
	if s.opts.MaxReplies <= 0 {
		return nil, nil
	}
	f := s.factory
	n := f.faker.Number(0, s.opts.MaxReplies)
	replies := make([]*models.Comment, 0, n)
	for i := 0; i < n; i++ {
		reply, err := f.CreateComment(ctx, s.pickUser(users), thread)
		if err != nil {
			return nil, fmt.Errorf("create reply: %w", err)
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

func (s *Seeder) seedReactions(ctx context.Context, c *models.Comment, users []*models.User) (int, error) {
	if s.opts.ReactionPercent <= 0 {
		return 0, nil
	}
	f := s.factory
	count := 0
	for _, u := range users {
		if f.faker.Number(1, 100) > s.opts.ReactionPercent {
			continue
		}
		kind := models.ReactionLike
		// roughly one in four reactions is a dislike
		if f.faker.Number(1, 4) == 1 {
			kind = models.ReactionDislike
		}
		if err := f.React(ctx, u, c, kind); err != nil {
			return count, fmt.Errorf("react: %w", err)
		}
		count++
	}
	return count, nil
}

func (s *Seeder) pickUser(users []*models.User) *models.User {
	return users[s.factory.faker.Number(0, len(users)-1)]
}
