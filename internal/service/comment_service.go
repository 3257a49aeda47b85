// Package service implements the comment thread operations on top of the
// repository layer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/observability"
	"threadline/internal/repository"

	"golang.org/x/sync/errgroup"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	broadcaster Broadcaster
	isAdmin     func(ctx context.Context, userID string) (bool, error)
	now         func() time.Time
}

type ListCommentsInput struct {
	ViewerID  string
	ParentID  string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type CreateCommentInput struct {
	AuthorID string
	Content  string
	ParentID *string
}

type UpdateCommentInput struct {
	ViewerID  string
	CommentID string
	Content   string
}

type DeleteCommentInput struct {
	ViewerID  string
	CommentID string
}

type ReactionInput struct {
	ViewerID  string
	CommentID string
}

// CommentPage is one page of annotated comments.
type CommentPage struct {
	Comments   []*models.CommentView
	Pagination models.Pagination
}

// ReactionResult is the outcome of a like, dislike or reaction removal.
type ReactionResult struct {
	Comment      *models.CommentView `json:"comment"`
	LikeCount    int                 `json:"likeCount"`
	DislikeCount int                 `json:"dislikeCount"`
}

// NewCommentService wires the service. A nil broadcaster drops events; a nil
// isAdmin falls back to the IsAdmin flag stored on the user.
func NewCommentService(
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	broadcaster Broadcaster,
	isAdmin func(ctx context.Context, userID string) (bool, error),
) *CommentService {
	s := &CommentService{
		commentRepo: commentRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
		isAdmin:     isAdmin,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.broadcaster == nil {
		s.broadcaster = nopBroadcaster{}
	}
	if s.isAdmin == nil {
		s.isAdmin = s.storedAdminFlag
	}
	return s
}

// WithClock replaces the time source used for editedAt.
func (s *CommentService) WithClock(now func() time.Time) *CommentService {
	s.now = now
	return s
}

func (s *CommentService) ListComments(ctx context.Context, in ListCommentsInput) (page *CommentPage, err error) {
	ctx, done := track(ctx, "list")
	defer done(&err)

	pr := repository.NewPageRequest(in.Page, in.Limit, repository.DefaultLimit)
	filter := repository.Filter{ParentID: in.ParentID}
	return s.listPage(ctx, filter, pr, in)
}

// ListReplies lists the direct replies of commentID. The parent itself is not
// looked up, so an unknown id yields an empty page.
func (s *CommentService) ListReplies(ctx context.Context, commentID string, in ListCommentsInput) (page *CommentPage, err error) {
	ctx, done := track(ctx, "list_replies")
	defer done(&err)

	pr := repository.NewPageRequest(in.Page, in.Limit, repository.DefaultRepliesLimit)
	return s.listPage(ctx, repository.RepliesTo(commentID), pr, in)
}

func (s *CommentService) listPage(
	ctx context.Context,
	filter repository.Filter,
	pr repository.PageRequest,
	in ListCommentsInput,
) (*CommentPage, error) {
	q := repository.BuildListQuery(filter, repository.ParseSort(in.SortBy, in.SortOrder), pr)

	var (
		comments []*models.Comment
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		comments, err = s.commentRepo.List(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.commentRepo.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views, err := s.present(ctx, in.ViewerID, comments...)
	if err != nil {
		return nil, err
	}
	return &CommentPage{
		Comments:   views,
		Pagination: models.NewPagination(pr.Page, pr.Limit, total),
	}, nil
}

// GetComment returns one active comment annotated for viewerID.
func (s *CommentService) GetComment(ctx context.Context, id, viewerID string) (view *models.CommentView, err error) {
	ctx, done := track(ctx, "get")
	defer done(&err)

	comment, err := s.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.presentOne(ctx, viewerID, comment)
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (view *models.CommentView, err error) {
	ctx, done := track(ctx, "create")
	defer done(&err)

	if in.ParentID != nil && *in.ParentID != "" {
		if _, err := s.loadActive(ctx, *in.ParentID); err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
				return nil, models.NewValidationError("Parent comment not found")
			}
			return nil, err
		}
	} else {
		in.ParentID = nil
	}

	comment := &models.Comment{
		Content:  in.Content,
		AuthorID: in.AuthorID,
		ParentID: in.ParentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, storeError(err)
	}

	view, err = s.presentOne(ctx, in.AuthorID, comment)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, EventNewComment, broadcastView(view))
	return view, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (view *models.CommentView, err error) {
	ctx, done := track(ctx, "update")
	defer done(&err)

	comment, err := s.loadActive(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, comment, in.ViewerID, "You can only edit your own comments"); err != nil {
		return nil, err
	}

	if err := s.commentRepo.UpdateContent(ctx, comment.ID, in.Content, s.now()); err != nil {
		return nil, storeError(err)
	}

	updated, err := s.loadActive(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	view, err = s.presentOne(ctx, in.ViewerID, updated)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, EventUpdatedComment, broadcastView(view))
	return view, nil
}

// DeleteComment soft-deletes the comment. Deleting an already inactive
// comment is reported as not found.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (err error) {
	ctx, done := track(ctx, "delete")
	defer done(&err)

	comment, err := s.loadActive(ctx, in.CommentID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, comment, in.ViewerID, "You can only delete your own comments"); err != nil {
		return err
	}

	if err := s.commentRepo.SoftDelete(ctx, comment.ID); err != nil {
		return storeError(err)
	}
	s.emit(ctx, EventDeletedComment, DeletedPayload{ID: comment.ID})
	return nil
}

func (s *CommentService) LikeComment(ctx context.Context, in ReactionInput) (*ReactionResult, error) {
	return s.react(ctx, in, models.ReactionLike)
}

func (s *CommentService) DislikeComment(ctx context.Context, in ReactionInput) (*ReactionResult, error) {
	return s.react(ctx, in, models.ReactionDislike)
}

func (s *CommentService) RemoveReaction(ctx context.Context, in ReactionInput) (*ReactionResult, error) {
	return s.react(ctx, in, models.ReactionNone)
}

func (s *CommentService) react(ctx context.Context, in ReactionInput, kind models.ReactionKind) (result *ReactionResult, err error) {
	reactionType := ReactionTypeRemove
	switch kind {
	case models.ReactionLike:
		reactionType = ReactionTypeLike
	case models.ReactionDislike:
		reactionType = ReactionTypeDislike
	}
	ctx, done := track(ctx, "react_"+reactionType)
	defer done(&err)

	if _, err := s.loadActive(ctx, in.CommentID); err != nil {
		return nil, err
	}

	if kind == models.ReactionNone {
		err = s.commentRepo.ClearReaction(ctx, in.CommentID, in.ViewerID)
	} else {
		err = s.commentRepo.SetReaction(ctx, in.CommentID, in.ViewerID, kind)
	}
	if err != nil {
		return nil, storeError(err)
	}

	updated, err := s.loadActive(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	view, err := s.presentOne(ctx, in.ViewerID, updated)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, EventCommentReaction, ReactionPayload{
		CommentID:    view.ID,
		Type:         reactionType,
		LikeCount:    view.LikeCount,
		DislikeCount: view.DislikeCount,
		UserID:       in.ViewerID,
	})
	return &ReactionResult{
		Comment:      view,
		LikeCount:    view.LikeCount,
		DislikeCount: view.DislikeCount,
	}, nil
}

func (s *CommentService) loadActive(ctx context.Context, id string) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if !comment.IsActive {
		return nil, models.NewNotFoundError("Comment")
	}
	return comment, nil
}

func (s *CommentService) authorize(ctx context.Context, comment *models.Comment, viewerID, message string) error {
	if comment.IsAuthoredBy(viewerID) {
		return nil
	}
	if viewerID == "" {
		return models.NewForbiddenError(message)
	}
	admin, err := s.isAdmin(ctx, viewerID)
	if err != nil {
		return err
	}
	if !comment.CanModify(viewerID, admin) {
		return models.NewForbiddenError(message)
	}
	return nil
}

func (s *CommentService) storedAdminFlag(ctx context.Context, userID string) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

func (s *CommentService) presentOne(ctx context.Context, viewerID string, comment *models.Comment) (*models.CommentView, error) {
	views, err := s.present(ctx, viewerID, comment)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// present joins author summaries onto comments and annotates them for viewerID.
func (s *CommentService) present(ctx context.Context, viewerID string, comments ...*models.Comment) ([]*models.CommentView, error) {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	authors, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*models.CommentView, 0, len(comments))
	for _, c := range comments {
		view := models.NewCommentView(c, authors[c.AuthorID].Summary())
		Annotate(view, c, viewerID)
		views = append(views, view)
	}
	return views, nil
}

// Annotate sets the viewer-relative flags of view. An empty viewerID leaves
// all flags false.
func Annotate(view *models.CommentView, c *models.Comment, viewerID string) {
	view.IsLikedByUser = c.LikedBy(viewerID)
	view.IsDislikedByUser = c.DislikedBy(viewerID)
	view.CanEdit = c.IsAuthoredBy(viewerID)
}

// broadcastView strips viewer flags before a view is sent to every listener.
func broadcastView(view *models.CommentView) *models.CommentView {
	out := *view
	out.IsLikedByUser = false
	out.IsDislikedByUser = false
	out.CanEdit = false
	return &out
}

func (s *CommentService) emit(ctx context.Context, event string, payload any) {
	observability.CommentEvents.WithLabelValues(event).Inc()
	s.broadcaster.Emit(ctx, event, payload)
}

func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return models.NewNotFoundError("Comment")
	case errors.Is(err, repository.ErrInvalidID):
		return models.NewValidationError("Invalid identifier")
	default:
		return err
	}
}

// track starts the span for operation. The returned func counts the outcome,
// ends the span and logs errors that are not AppErrors.
func track(ctx context.Context, operation string) (context.Context, func(*error)) {
	ctx, span := observability.StartOperationSpan(ctx, operation)
	return ctx, func(errp *error) {
		err := *errp
		observability.CommentOperations.WithLabelValues(operation, observability.Outcome(err)).Inc()

		var appErr *models.AppError
		if err == nil || errors.As(err, &appErr) {
			observability.EndSpan(span, nil)
			return
		}
		middleware.Logger.ErrorContext(ctx, "comment operation failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		observability.EndSpan(span, err)
	}
}
