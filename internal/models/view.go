package models

import "time"

// CommentView is the response shape of a comment, including the
// viewer-relative flags. It is never persisted.
type CommentView struct {
	ID               string      `json:"id"`
	Content          string      `json:"content"`
	Author           UserSummary `json:"author"`
	ParentComment    *string     `json:"parentComment"`
	LikeCount        int         `json:"likeCount"`
	DislikeCount     int         `json:"dislikeCount"`
	ReplyCount       int         `json:"replyCount"`
	IsEdited         bool        `json:"isEdited"`
	EditedAt         *time.Time  `json:"editedAt"`
	EngagementScore  float64     `json:"engagementScore"`
	IsActive         bool        `json:"isActive"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	IsLikedByUser    bool        `json:"isLikedByUser"`
	IsDislikedByUser bool        `json:"isDislikedByUser"`
	CanEdit          bool        `json:"canEdit"`
}

// NewCommentView copies the persisted fields of c into a view with all
// viewer flags cleared.
func NewCommentView(c *Comment, author UserSummary) *CommentView {
	if author.ID == "" {
		author.ID = c.AuthorID
	}
	return &CommentView{
		ID:              c.ID,
		Content:         c.Content,
		Author:          author,
		ParentComment:   c.ParentID,
		LikeCount:       c.LikeCount(),
		DislikeCount:    c.DislikeCount(),
		ReplyCount:      c.ReplyCount,
		IsEdited:        c.IsEdited,
		EditedAt:        c.EditedAt,
		EngagementScore: c.EngagementScore,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// Pagination is the page metadata returned with every list response.
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

// NewPagination derives page metadata from the requested window and the
// total number of matching records.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}
