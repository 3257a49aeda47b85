package database

import (
	"testing"

	modelspkg "threadline/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesCommentReaction(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*modelspkg.CommentReaction); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include CommentReaction")
}
