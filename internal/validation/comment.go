// Package validation holds request DTOs and their validation rules.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"threadline/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// MaxContentLength is the longest accepted comment body, in characters.
const MaxContentLength = 2000

// CreateCommentRequest is the body of POST /api/comments.
type CreateCommentRequest struct {
	Content       string  `json:"content" validate:"required,notblank,max=2000"`
	ParentComment *string `json:"parentComment" validate:"omitempty,max=64"`
}

// Normalize trims surrounding whitespace. A blank parentComment means a
// top-level comment.
func (r *CreateCommentRequest) Normalize() {
	r.Content = strings.TrimSpace(r.Content)
	if r.ParentComment != nil {
		parent := strings.TrimSpace(*r.ParentComment)
		if parent == "" {
			r.ParentComment = nil
			return
		}
		r.ParentComment = &parent
	}
}

// UpdateCommentRequest is the body of PUT /api/comments/:id.
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,notblank,max=2000"`
}

// Normalize trims surrounding whitespace.
func (r *UpdateCommentRequest) Normalize() {
	r.Content = strings.TrimSpace(r.Content)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("notblank", validators.NotBlank)
	})
	return validate
}

// Struct validates v and returns one FieldError per failed rule, or nil.
func Struct(v any) []models.FieldError {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Message: err.Error()}}
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := fe.Field()
	if label == "content" {
		label = "Content"
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "notblank":
		return fmt.Sprintf("%s cannot be empty", label)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
