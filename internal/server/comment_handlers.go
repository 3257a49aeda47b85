package server

import (
	"context"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/service"
	"threadline/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ListComments returns one page of active comments. Without parentId only
// top-level comments are listed.
func (s *Server) ListComments(c *fiber.Ctx) error {
	page, err := s.commentService.ListComments(c.UserContext(), listInput(c))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{
		"comments":   page.Comments,
		"pagination": page.Pagination,
	})
}

// ListReplies returns one page of active replies to :id.
func (s *Server) ListReplies(c *fiber.Ctx) error {
	id, err := commentID(c)
	if err != nil {
		return respondError(c, err)
	}

	in := listInput(c)
	in.ParentID = ""
	page, err := s.commentService.ListReplies(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{
		"replies":    page.Comments,
		"pagination": page.Pagination,
	})
}

// GetComment returns a single active comment.
func (s *Server) GetComment(c *fiber.Ctx) error {
	id, err := commentID(c)
	if err != nil {
		return respondError(c, err)
	}

	view, err := s.commentService.GetComment(c.UserContext(), id, middleware.ViewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", fiber.Map{"comment": view})
}

// CreateComment creates a top-level comment or, with parentComment, a reply.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req validation.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	req.Normalize()
	if fields := validation.Struct(&req); len(fields) > 0 {
		return respondError(c, models.NewFieldValidationError(fields))
	}

	view, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		AuthorID: middleware.ViewerID(c),
		Content:  req.Content,
		ParentID: req.ParentComment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, "Comment created successfully", fiber.Map{"comment": view})
}

// UpdateComment replaces the content of the viewer's own comment.
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := commentID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req validation.UpdateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	req.Normalize()
	if fields := validation.Struct(&req); len(fields) > 0 {
		return respondError(c, models.NewFieldValidationError(fields))
	}

	view, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		ViewerID:  middleware.ViewerID(c),
		CommentID: id,
		Content:   req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Comment updated successfully", fiber.Map{"comment": view})
}

// DeleteComment soft-deletes the viewer's own comment.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := commentID(c)
	if err != nil {
		return respondError(c, err)
	}

	err = s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		ViewerID:  middleware.ViewerID(c),
		CommentID: id,
	})
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Comment deleted successfully", nil)
}

func (s *Server) LikeComment(c *fiber.Ctx) error {
	return s.react(c, s.commentService.LikeComment)
}

func (s *Server) DislikeComment(c *fiber.Ctx) error {
	return s.react(c, s.commentService.DislikeComment)
}

func (s *Server) RemoveReaction(c *fiber.Ctx) error {
	return s.react(c, s.commentService.RemoveReaction)
}

type reactFunc func(ctx context.Context, in service.ReactionInput) (*service.ReactionResult, error)

func (s *Server) react(c *fiber.Ctx, fn reactFunc) error {
	in, err := reactionInput(c)
	if err != nil {
		return respondError(c, err)
	}

	result, err := fn(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "", result)
}
