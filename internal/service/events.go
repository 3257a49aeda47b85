package service

import "context"

// Realtime event names delivered to comment listeners.
const (
	EventNewComment      = "newComment"
	EventUpdatedComment  = "updatedComment"
	EventDeletedComment  = "deletedComment"
	EventCommentReaction = "commentReaction"
)

// Reaction types carried by EventCommentReaction.
const (
	ReactionTypeLike    = "like"
	ReactionTypeDislike = "dislike"
	ReactionTypeRemove  = "remove"
)

// Broadcaster hands an event to every connected listener. Delivery is best
// effort and failures are never reported to the caller.
type Broadcaster interface {
	Emit(ctx context.Context, event string, payload any)
}

// DeletedPayload is the body of EventDeletedComment.
type DeletedPayload struct {
	ID string `json:"id"`
}

// ReactionPayload is the body of EventCommentReaction.
type ReactionPayload struct {
	CommentID    string `json:"commentId"`
	Type         string `json:"type"`
	LikeCount    int    `json:"likeCount"`
	DislikeCount int    `json:"dislikeCount"`
	UserID       string `json:"userId"`
}

type nopBroadcaster struct{}

func (nopBroadcaster) Emit(context.Context, string, any) {}
