package server

import (
	"strings"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/service"

	"github.com/gofiber/fiber/v2"
)

// respondError writes the failure envelope for err with the status its
// AppError code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusOf(err), err)
}

// commentID returns the :id route parameter. Fiber does not match empty
// segments, so only whitespace needs rejecting.
func commentID(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return "", models.NewValidationError("Invalid comment ID")
	}
	return id, nil
}

// listInput reads the paging and sort query parameters. Out of range values
// are clamped by the service.
func listInput(c *fiber.Ctx) service.ListCommentsInput {
	return service.ListCommentsInput{
		ViewerID:  middleware.ViewerID(c),
		ParentID:  strings.TrimSpace(c.Query("parentId")),
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 0),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
}

func reactionInput(c *fiber.Ctx) (service.ReactionInput, error) {
	id, err := commentID(c)
	if err != nil {
		return service.ReactionInput{}, err
	}
	return service.ReactionInput{ViewerID: middleware.ViewerID(c), CommentID: id}, nil
}
