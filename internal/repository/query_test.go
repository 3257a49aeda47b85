package repository

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		name      string
		sortBy    string
		sortOrder string
		want      SortSpec
	}{
		{"default", "", "", SortSpec{Key: SortCreatedAt, Descending: true}},
		{"created asc", "createdAt", "asc", SortSpec{Key: SortCreatedAt, Descending: false}},
		{"updated desc", "updatedAt", "desc", SortSpec{Key: SortUpdatedAt, Descending: true}},
		{"reply count asc", "replyCount", "asc", SortSpec{Key: SortReplyCount, Descending: false}},
		{"order other than asc is desc", "createdAt", "ASC", SortSpec{Key: SortCreatedAt, Descending: true}},
		{"most liked ignores order", "mostLiked", "asc", SortSpec{Key: SortMostLiked, Descending: true}},
		{"most disliked", "mostDisliked", "", SortSpec{Key: SortMostDisliked, Descending: true}},
		{"engagement", "engagement", "asc", SortSpec{Key: SortEngagement, Descending: true}},
		{"unknown field", "content", "asc", SortSpec{Key: SortCreatedAt, Descending: false}},
		{"injection attempt", "$where", "", SortSpec{Key: SortCreatedAt, Descending: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSort(tt.sortBy, tt.sortOrder))
		})
	}
}

func TestSortSpec_Ranked(t *testing.T) {
	assert.True(t, ParseSort("mostLiked", "").Ranked())
	assert.True(t, ParseSort("engagement", "").Ranked())
	assert.False(t, ParseSort("replyCount", "").Ranked())
}

func TestNewPageRequest(t *testing.T) {
	tests := []struct {
		name         string
		page, limit  int
		defaultLimit int
		want         PageRequest
		skip         int
	}{
		{"defaults", 0, 0, DefaultLimit, PageRequest{Page: 1, Limit: 10}, 0},
		{"replies default", 1, 0, DefaultRepliesLimit, PageRequest{Page: 1, Limit: 5}, 0},
		{"negative page", -3, 20, DefaultLimit, PageRequest{Page: 1, Limit: 20}, 0},
		{"capped", 2, 1000, DefaultLimit, PageRequest{Page: 2, Limit: MaxLimit}, 100},
		{"third page", 3, 10, DefaultLimit, PageRequest{Page: 3, Limit: 10}, 20},
		{"page past addressable range", math.MaxInt/10 + 2, 10, DefaultLimit, PageRequest{Page: math.MaxInt/10 + 2, Limit: 10}, math.MaxInt},
		{"largest page", math.MaxInt, MaxLimit, DefaultLimit, PageRequest{Page: math.MaxInt, Limit: MaxLimit}, math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPageRequest(tt.page, tt.limit, tt.defaultLimit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.skip, got.Skip())
		})
	}
}

func TestBuildListQuery(t *testing.T) {
	q := BuildListQuery(RepliesTo("p1"), ParseSort("", ""), NewPageRequest(2, 5, DefaultRepliesLimit))
	assert.Equal(t, "p1", q.Filter.ParentID)
	assert.Equal(t, 5, q.Skip)
	assert.Equal(t, 5, q.Limit)
	assert.Empty(t, TopLevel().ParentID)
}
