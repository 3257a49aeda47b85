// Package models contains data structures for the application's domain models.
package models

import (
	"slices"
	"time"
)

// ReactionKind is the reaction a viewer holds on a comment.
type ReactionKind string

const (
	ReactionNone    ReactionKind = ""
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Comment represents a top-level comment or a reply in a thread.
//
// Likes and Dislikes hold viewer IDs. They are populated by the store on read
// and are never written back through the comments table.
type Comment struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	AuthorID        string     `gorm:"type:varchar(36);not null;index" json:"author_id"`
	ParentID        *string    `gorm:"type:varchar(36);index:idx_comments_thread,priority:1" json:"parent_id"`
	IsActive        bool       `gorm:"not null;default:true;index:idx_comments_thread,priority:2" json:"is_active"`
	IsEdited        bool       `gorm:"not null;default:false" json:"is_edited"`
	EditedAt        *time.Time `json:"edited_at"`
	ReplyCount      int        `gorm:"not null;default:0" json:"reply_count"`
	EngagementScore float64    `gorm:"not null;default:0;index" json:"engagement_score"`
	Likes           []string   `gorm:"-" json:"likes"`
	Dislikes        []string   `gorm:"-" json:"dislikes"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CommentReaction is one viewer's reaction to one comment. The composite
// primary key keeps a viewer in at most one of the like/dislike sets.
type CommentReaction struct {
	CommentID string       `gorm:"primaryKey;type:varchar(36)" json:"comment_id"`
	UserID    string       `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Kind      ReactionKind `gorm:"type:varchar(8);not null;index" json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// IsReply reports whether the comment belongs to a parent thread.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// LikeCount returns the number of viewers who liked the comment.
func (c *Comment) LikeCount() int { return len(c.Likes) }

// DislikeCount returns the number of viewers who disliked the comment.
func (c *Comment) DislikeCount() int { return len(c.Dislikes) }

// LikedBy reports whether userID is in the like set.
func (c *Comment) LikedBy(userID string) bool {
	return userID != "" && slices.Contains(c.Likes, userID)
}

// DislikedBy reports whether userID is in the dislike set.
func (c *Comment) DislikedBy(userID string) bool {
	return userID != "" && slices.Contains(c.Dislikes, userID)
}

// IsAuthoredBy reports whether userID wrote the comment.
func (c *Comment) IsAuthoredBy(userID string) bool {
	return userID != "" && c.AuthorID == userID
}

// CanModify reports whether userID may edit or delete the comment.
// Admins may modify any comment.
func (c *Comment) CanModify(userID string, isAdmin bool) bool {
	return c.IsAuthoredBy(userID) || (userID != "" && isAdmin)
}

// EngagementScoreFor is the ranking value stores persist alongside a comment.
func EngagementScoreFor(likes, dislikes, replies int) float64 {
	return float64(likes + 2*replies - dislikes)
}
