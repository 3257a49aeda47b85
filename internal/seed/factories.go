// Package seed creates demo users, threads and reactions. It is intended for
// development and testing only.
package seed

import (
	"context"
	"fmt"
	"time"

	"threadline/internal/models"
	"threadline/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds domain entities and persists them through a repository.Store.
type Factory struct {
	store repository.Store
	opts  Options
	faker *gofakeit.Faker
}

// NewFactory creates a Factory. A zero opts.RandSeed seeds from the clock.
func NewFactory(store repository.Store, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{store: store, opts: opts, faker: gofakeit.New(seed)}
}

// BuildUser constructs a user without persisting it. The store assigns the ID.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	user := &models.User{
		Username: fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(100, 999)),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser builds and stores a user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.store.Users().Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildComment constructs a comment by author, replying to parent when it is
// not nil. CreatedAt is spread over the last MaxDays days; the mongo store
// stamps its own creation time.
func (f *Factory) BuildComment(author *models.User, parent *models.Comment, overrides ...func(*models.Comment)) *models.Comment {
	comment := &models.Comment{
		Content:  f.faker.Paragraph(1, f.faker.Number(1, 3), f.faker.Number(4, 12), " "),
		AuthorID: author.ID,
	}
	if parent != nil {
		parentID := parent.ID
		comment.ParentID = &parentID
		comment.Content = f.faker.Sentence(f.faker.Number(4, 16))
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	comment.CreatedAt = time.Now().Add(-back)
	if parent != nil && comment.CreatedAt.Before(parent.CreatedAt) {
		comment.CreatedAt = parent.CreatedAt.Add(time.Duration(f.faker.Number(1, 120)) * time.Minute)
	}
	comment.UpdatedAt = comment.CreatedAt

	for _, override := range overrides {
		override(comment)
	}
	return comment
}

// CreateComment builds and stores a comment.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, parent *models.Comment, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := f.BuildComment(author, parent, overrides...)
	if err := f.store.Comments().Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// React records user's reaction to comment.
func (f *Factory) React(ctx context.Context, user *models.User, comment *models.Comment, kind models.ReactionKind) error {
	return f.store.Comments().SetReaction(ctx, comment.ID, user.ID, kind)
}
