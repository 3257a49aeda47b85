package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"threadline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComment(t *testing.T) {
	e := newTestEnv(t)

	status, env := e.do(t, http.MethodPost, "/api/comments", e.alice, map[string]any{"content": "  hello  "})
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, env.Success)
	assert.Equal(t, "Comment created successfully", env.Message)

	c := decode[commentData](t, env).Comment
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "hello", c.Content)
	assert.False(t, c.IsEdited)
	assert.Nil(t, c.EditedAt)
	assert.Nil(t, c.ParentComment)
	assert.True(t, c.IsActive)
	assert.True(t, c.CanEdit)
	assert.Equal(t, aliceID, c.Author.ID)
	assert.Equal(t, "alice", c.Author.Username)
	assert.Zero(t, c.LikeCount)
}

func TestCreateComment_RequiresAuth(t *testing.T) {
	e := newTestEnv(t)

	status, env := e.do(t, http.MethodPost, "/api/comments", "", map[string]any{"content": "hello"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)
}

func TestCreateComment_Validation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name    string
		body    any
		field   string
		message string
	}{
		{name: "missing content", body: map[string]any{}, field: "content", message: "Content is required"},
		{name: "blank content", body: map[string]any{"content": "   "}, field: "content"},
		{name: "too long", body: map[string]any{"content": strings.Repeat("x", 2001)}, field: "content",
			message: "Content must be at most 2000 characters"},
		{name: "malformed json", body: `{"content":`, message: "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := e.do(t, http.MethodPost, "/api/comments", e.alice, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.False(t, env.Success)
			if tt.field != "" {
				require.NotEmpty(t, env.Errors)
				assert.Equal(t, tt.field, env.Errors[0].Field)
			}
			if tt.message != "" {
				if tt.field != "" {
					assert.Equal(t, tt.message, env.Errors[0].Message)
				} else {
					assert.Equal(t, tt.message, env.Message)
				}
			}
		})
	}
}

func TestCreateComment_Reply(t *testing.T) {
	e := newTestEnv(t)
	parent := e.createComment(t, e.alice, "parent", nil)

	reply := e.createComment(t, e.bob, "reply", &parent.ID)
	require.NotNil(t, reply.ParentComment)
	assert.Equal(t, parent.ID, *reply.ParentComment)

	status, env := e.do(t, http.MethodGet, "/api/comments/"+parent.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	got := decode[commentData](t, env).Comment
	assert.Equal(t, 1, got.ReplyCount)
	assert.Equal(t, float64(2), got.EngagementScore)
}

func TestCreateComment_InactiveParent(t *testing.T) {
	e := newTestEnv(t)
	parent := e.createComment(t, e.alice, "parent", nil)

	status, _ := e.do(t, http.MethodDelete, "/api/comments/"+parent.ID, e.alice, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := e.do(t, http.MethodPost, "/api/comments", e.bob, map[string]any{
		"content":       "too late",
		"parentComment": parent.ID,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Parent comment not found", env.Message)

	status, env = e.do(t, http.MethodPost, "/api/comments", e.bob, map[string]any{
		"content":       "nobody home",
		"parentComment": "no-such-comment",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Parent comment not found", env.Message)
}

func TestListComments_Pagination(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, e.store.Comments().Create(ctx, &models.Comment{
			AuthorID: aliceID,
			Content:  fmt.Sprintf("comment %d", i),
		}))
	}

	status, env := e.do(t, http.MethodGet, "/api/comments?limit=10&page=3", "", nil)
	require.Equal(t, http.StatusOK, status)
	data := decode[listData](t, env)
	assert.Len(t, data.Comments, 5)
	assert.Equal(t, models.Pagination{Page: 3, Limit: 10, Total: 25, Pages: 3, HasNext: false, HasPrev: true}, data.Pagination)

	status, env = e.do(t, http.MethodGet, "/api/comments", "", nil)
	require.Equal(t, http.StatusOK, status)
	data = decode[listData](t, env)
	assert.Len(t, data.Comments, 10)
	assert.Equal(t, 1, data.Pagination.Page)
	assert.True(t, data.Pagination.HasNext)
	assert.False(t, data.Pagination.HasPrev)

	status, env = e.do(t, http.MethodGet, "/api/comments?limit=500&page=-4", "", nil)
	require.Equal(t, http.StatusOK, status)
	data = decode[listData](t, env)
	assert.Len(t, data.Comments, 25)
	assert.Equal(t, 100, data.Pagination.Limit)
	assert.Equal(t, 1, data.Pagination.Page)

	// a page whose offset cannot be represented is past the end, not page one
	status, env = e.do(t, http.MethodGet, "/api/comments?limit=10&page=922337203685477582", "", nil)
	require.Equal(t, http.StatusOK, status)
	data = decode[listData](t, env)
	assert.Empty(t, data.Comments)
	assert.Equal(t, 922337203685477582, data.Pagination.Page)
	assert.Equal(t, int64(25), data.Pagination.Total)
	assert.False(t, data.Pagination.HasNext)
}

func TestListComments_TopLevelAndParentFilter(t *testing.T) {
	e := newTestEnv(t)
	parent := e.createComment(t, e.alice, "parent", nil)
	e.createComment(t, e.bob, "reply one", &parent.ID)
	gone := e.createComment(t, e.bob, "reply two", &parent.ID)

	status, _ := e.do(t, http.MethodDelete, "/api/comments/"+gone.ID, e.bob, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := e.do(t, http.MethodGet, "/api/comments", "", nil)
	require.Equal(t, http.StatusOK, status)
	data := decode[listData](t, env)
	require.Len(t, data.Comments, 1)
	assert.Equal(t, parent.ID, data.Comments[0].ID)
	assert.Equal(t, 1, data.Comments[0].ReplyCount)

	status, env = e.do(t, http.MethodGet, "/api/comments?parentId="+parent.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	data = decode[listData](t, env)
	require.Len(t, data.Comments, 1)
	assert.Equal(t, "reply one", data.Comments[0].Content)
}

func TestListReplies(t *testing.T) {
	e := newTestEnv(t)
	parent := e.createComment(t, e.alice, "parent", nil)
	for i := 0; i < 7; i++ {
		e.createComment(t, e.bob, fmt.Sprintf("reply %d", i), &parent.ID)
	}

	status, env := e.do(t, http.MethodGet, "/api/comments/"+parent.ID+"/replies", e.bob, nil)
	require.Equal(t, http.StatusOK, status)
	data := decode[listData](t, env)
	assert.Len(t, data.Replies, 5)
	assert.Nil(t, data.Comments)
	assert.Equal(t, int64(7), data.Pagination.Total)
	assert.Equal(t, 2, data.Pagination.Pages)
	for _, r := range data.Replies {
		assert.True(t, r.CanEdit)
		assert.Equal(t, parent.ID, *r.ParentComment)
	}

	status, env = e.do(t, http.MethodGet, "/api/comments/unknown/replies", "", nil)
	require.Equal(t, http.StatusOK, status)
	data = decode[listData](t, env)
	assert.Empty(t, data.Replies)
	assert.Equal(t, int64(0), data.Pagination.Total)
}

func TestListComments_SortMostLiked(t *testing.T) {
	e := newTestEnv(t)
	quiet := e.createComment(t, e.alice, "quiet", nil)
	popular := e.createComment(t, e.alice, "popular", nil)
	liked := e.createComment(t, e.alice, "liked", nil)

	for _, tok := range []string{e.alice, e.bob, e.admin} {
		status, _ := e.do(t, http.MethodPost, "/api/comments/"+popular.ID+"/like", tok, nil)
		require.Equal(t, http.StatusOK, status)
	}
	status, _ := e.do(t, http.MethodPost, "/api/comments/"+liked.ID+"/like", e.bob, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := e.do(t, http.MethodGet, "/api/comments?sortBy=mostLiked", e.bob, nil)
	require.Equal(t, http.StatusOK, status)
	data := decode[listData](t, env)
	require.Len(t, data.Comments, 3)
	assert.Equal(t, []string{popular.ID, liked.ID, quiet.ID},
		[]string{data.Comments[0].ID, data.Comments[1].ID, data.Comments[2].ID})
	assert.Equal(t, 3, data.Comments[0].LikeCount)
	assert.True(t, data.Comments[0].IsLikedByUser)
	assert.False(t, data.Comments[0].CanEdit)
}

func TestListComments_AnonymousFlags(t *testing.T) {
	e := newTestEnv(t)
	c := e.createComment(t, e.alice, "hello", nil)
	status, _ := e.do(t, http.MethodPost, "/api/comments/"+c.ID+"/like", e.alice, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := e.do(t, http.MethodGet, "/api/comments", "", nil)
	require.Equal(t, http.StatusOK, status)
	data := decode[listData](t, env)
	require.Len(t, data.Comments, 1)
	got := data.Comments[0]
	assert.Equal(t, 1, got.LikeCount)
	assert.False(t, got.IsLikedByUser)
	assert.False(t, got.IsDislikedByUser)
	assert.False(t, got.CanEdit)
}

func TestReactions(t *testing.T) {
	e := newTestEnv(t)
	c := e.createComment(t, e.alice, "react to me", nil)
	base := "/api/comments/" + c.ID

	status, env := e.do(t, http.MethodPost, base+"/like", e.bob, nil)
	require.Equal(t, http.StatusOK, status)
	r := decode[reactionData](t, env)
	assert.Equal(t, 1, r.LikeCount)
	assert.True(t, r.Comment.IsLikedByUser)

	// liking twice keeps a single like
	status, env = e.do(t, http.MethodPost, base+"/like", e.bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[reactionData](t, env).LikeCount)

	status, env = e.do(t, http.MethodPost, base+"/dislike", e.bob, nil)
	require.Equal(t, http.StatusOK, status)
	r = decode[reactionData](t, env)
	assert.Equal(t, 0, r.LikeCount)
	assert.Equal(t, 1, r.DislikeCount)
	assert.False(t, r.Comment.IsLikedByUser)
	assert.True(t, r.Comment.IsDislikedByUser)
	assert.Equal(t, float64(-1), r.Comment.EngagementScore)

	status, env = e.do(t, http.MethodDelete, base+"/reaction", e.bob, nil)
	require.Equal(t, http.StatusOK, status)
	r = decode[reactionData](t, env)
	assert.Zero(t, r.LikeCount)
	assert.Zero(t, r.DislikeCount)
	assert.False(t, r.Comment.IsDislikedByUser)

	status, _ = e.do(t, http.MethodPost, base+"/like", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = e.do(t, http.MethodPost, "/api/comments/missing/like", e.bob, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Comment not found", env.Message)
}

func TestUpdateComment(t *testing.T) {
	e := newTestEnv(t)
	c := e.createComment(t, e.alice, "first draft", nil)
	path := "/api/comments/" + c.ID

	status, env := e.do(t, http.MethodPut, path, e.bob, map[string]any{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "You can only edit your own comments", env.Message)

	status, env = e.do(t, http.MethodPut, path, e.alice, map[string]any{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotEmpty(t, env.Errors)

	status, env = e.do(t, http.MethodPut, path, e.alice, map[string]any{"content": "second draft"})
	require.Equal(t, http.StatusOK, status)
	updated := decode[commentData](t, env).Comment
	assert.Equal(t, "second draft", updated.Content)
	assert.True(t, updated.IsEdited)
	require.NotNil(t, updated.EditedAt)
	assert.True(t, updated.CanEdit)

	status, env = e.do(t, http.MethodPut, path, e.admin, map[string]any{"content": "moderated"})
	require.Equal(t, http.StatusOK, status)
	moderated := decode[commentData](t, env).Comment
	assert.Equal(t, "moderated", moderated.Content)
	assert.False(t, moderated.CanEdit)

	status, _ = e.do(t, http.MethodPut, "/api/comments/missing", e.alice, map[string]any{"content": "x"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeleteComment(t *testing.T) {
	e := newTestEnv(t)
	c := e.createComment(t, e.alice, "short lived", nil)
	path := "/api/comments/" + c.ID

	status, env := e.do(t, http.MethodDelete, path, e.bob, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "You can only delete your own comments", env.Message)

	status, env = e.do(t, http.MethodDelete, path, e.alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, "Comment deleted successfully", env.Message)
	assert.Empty(t, env.Data)

	status, _ = e.do(t, http.MethodGet, path, e.alice, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(t, http.MethodDelete, path, e.alice, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(t, http.MethodPut, path, e.alice, map[string]any{"content": "revive"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(t, http.MethodPost, path+"/like", e.bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = e.do(t, http.MethodGet, "/api/comments", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[listData](t, env).Comments)
}

func TestDeleteComment_Admin(t *testing.T) {
	e := newTestEnv(t)
	c := e.createComment(t, e.bob, "spam", nil)

	status, _ := e.do(t, http.MethodDelete, "/api/comments/"+c.ID, e.admin, nil)
	assert.Equal(t, http.StatusOK, status)
}
