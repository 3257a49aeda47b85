// Package repository provides the comment and user stores backed by
// MongoDB or by GORM (PostgreSQL, SQLite).
package repository

import (
	"context"
	"errors"
	"time"

	"threadline/internal/models"
)

// ErrNotFound is returned when a record does not exist or, for mutations,
// is no longer active.
var ErrNotFound = errors.New("record not found")

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	// Create assigns ID and timestamps and keeps the parent's reply count current.
	Create(ctx context.Context, comment *models.Comment) error
	// GetByID returns the comment whether or not it is active.
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	List(ctx context.Context, q ListQuery) ([]*models.Comment, error)
	Count(ctx context.Context, f Filter) (int64, error)
	UpdateContent(ctx context.Context, id, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, id string) error
	// SetReaction atomically moves userID into the like or dislike set.
	SetReaction(ctx context.Context, commentID, userID string, kind models.ReactionKind) error
	// ClearReaction atomically removes userID from both sets.
	ClearReaction(ctx context.Context, commentID, userID string) error
}

// UserRepository defines interface for author lookups
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}

// Store bundles the repositories of one backing database.
type Store interface {
	Driver() string
	Comments() CommentRepository
	Users() UserRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
