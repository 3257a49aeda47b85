package repository

import "math"

// SortKey is one of the accepted sortBy values. Anything else is mapped to
// SortCreatedAt, so raw field names never reach a store.
type SortKey string

const (
	SortCreatedAt    SortKey = "createdAt"
	SortUpdatedAt    SortKey = "updatedAt"
	SortReplyCount   SortKey = "replyCount"
	SortMostLiked    SortKey = "mostLiked"
	SortMostDisliked SortKey = "mostDisliked"
	SortEngagement   SortKey = "engagement"
)

// Page size bounds.
const (
	DefaultLimit        = 10
	DefaultRepliesLimit = 5
	MaxLimit            = 100
)

// SortSpec is a resolved ordering. Ranked keys always sort descending with
// createdAt descending as the tie-break.
type SortSpec struct {
	Key        SortKey
	Descending bool
}

// Ranked reports whether the key orders by a derived reaction/engagement value.
func (s SortSpec) Ranked() bool {
	switch s.Key {
	case SortMostLiked, SortMostDisliked, SortEngagement:
		return true
	}
	return false
}

// ParseSort resolves the sortBy/sortOrder query pair.
func ParseSort(sortBy, sortOrder string) SortSpec {
	descending := sortOrder != "asc"

	switch key := SortKey(sortBy); key {
	case SortMostLiked, SortMostDisliked, SortEngagement:
		return SortSpec{Key: key, Descending: true}
	case SortCreatedAt, SortUpdatedAt, SortReplyCount:
		return SortSpec{Key: key, Descending: descending}
	default:
		return SortSpec{Key: SortCreatedAt, Descending: descending}
	}
}

// PageRequest is a normalized page/limit pair.
type PageRequest struct {
	Page  int
	Limit int
}

// NewPageRequest clamps page to >= 1 and limit to [1, MaxLimit]; a
// non-positive limit falls back to defaultLimit.
func NewPageRequest(page, limit, defaultLimit int) PageRequest {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return PageRequest{Page: page, Limit: limit}
}

// Skip is the number of records before the page. It saturates at
// math.MaxInt for pages too far out to address, which stores treat as past
// the end.
func (p PageRequest) Skip() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// Filter selects active comments in one thread level. An empty ParentID
// selects top-level comments.
type Filter struct {
	ParentID string
}

// TopLevel selects comments without a parent.
func TopLevel() Filter { return Filter{} }

// RepliesTo selects direct replies of parentID.
func RepliesTo(parentID string) Filter { return Filter{ParentID: parentID} }

// ListQuery is the full input of CommentRepository.List.
type ListQuery struct {
	Filter Filter
	Sort   SortSpec
	Skip   int
	Limit  int
}

// BuildListQuery combines a filter, ordering and page into a store query.
func BuildListQuery(filter Filter, sort SortSpec, page PageRequest) ListQuery {
	return ListQuery{
		Filter: filter,
		Sort:   sort,
		Skip:   page.Skip(),
		Limit:  page.Limit,
	}
}
