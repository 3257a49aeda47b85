package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"threadline/internal/models"
	"threadline/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	likeCountSQL    = "(SELECT COUNT(*) FROM comment_reactions cr WHERE cr.comment_id = comments.id AND cr.kind = 'like')"
	dislikeCountSQL = "(SELECT COUNT(*) FROM comment_reactions cr WHERE cr.comment_id = comments.id AND cr.kind = 'dislike')"

	refreshEngagementSQL = `UPDATE comments SET engagement_score = ` +
		likeCountSQL + ` + 2 * reply_count - ` + dislikeCountSQL + ` WHERE id = ?`
)

type gormStore struct {
	db       *gorm.DB
	driver   string
	comments *gormCommentRepository
	users    *gormUserRepository
}

// NewGormStore wraps an open GORM connection. driver is used for metric and
// span labels only.
func NewGormStore(db *gorm.DB, driver string) Store {
	return &gormStore{
		db:       db,
		driver:   driver,
		comments: &gormCommentRepository{db: db, driver: driver},
		users:    &gormUserRepository{db: db, driver: driver},
	}
}

func (s *gormStore) Driver() string              { return s.driver }
func (s *gormStore) Comments() CommentRepository { return s.comments }
func (s *gormStore) Users() UserRepository       { return s.users }

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *gormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormCommentRepository struct {
	db     *gorm.DB
	driver string
}

// NewGormCommentRepository creates a CommentRepository over db.
func NewGormCommentRepository(db *gorm.DB, driver string) CommentRepository {
	return &gormCommentRepository{db: db, driver: driver}
}

func (r *gormCommentRepository) observe(ctx context.Context, op string) (context.Context, func(error)) {
	done := observability.TrackStoreQuery(r.driver, op)
	ctx, span := observability.StartStoreSpan(ctx, r.driver, op)
	return ctx, func(err error) {
		done()
		observability.EndSpan(span, err)
	}
}

func (r *gormCommentRepository) Create(ctx context.Context, comment *models.Comment) (err error) {
	ctx, finish := r.observe(ctx, "create")
	defer func() { finish(err) }()

	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.IsActive = true
	if comment.Likes == nil {
		comment.Likes = []string{}
	}
	if comment.Dislikes == nil {
		comment.Dislikes = []string{}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		if !comment.IsReply() {
			return nil
		}
		if err := tx.Model(&models.Comment{}).
			Where("id = ?", *comment.ParentID).
			UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error; err != nil {
			return err
		}
		return refreshEngagement(tx, *comment.ParentID)
	})
}

func (r *gormCommentRepository) GetByID(ctx context.Context, id string) (_ *models.Comment, err error) {
	ctx, finish := r.observe(ctx, "get")
	defer func() { finish(err) }()

	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := loadReactions(r.db.WithContext(ctx), []*models.Comment{&comment}); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *gormCommentRepository) List(ctx context.Context, q ListQuery) (_ []*models.Comment, err error) {
	ctx, finish := r.observe(ctx, "list")
	defer func() { finish(err) }()

	db := applyFilter(r.db.WithContext(ctx).Model(&models.Comment{}), q.Filter)
	db = applySort(db, q.Sort)

	var comments []*models.Comment
	if err := db.Offset(q.Skip).Limit(q.Limit).Find(&comments).Error; err != nil {
		return nil, err
	}
	if err := loadReactions(r.db.WithContext(ctx), comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *gormCommentRepository) Count(ctx context.Context, f Filter) (_ int64, err error) {
	ctx, finish := r.observe(ctx, "count")
	defer func() { finish(err) }()

	var total int64
	err = applyFilter(r.db.WithContext(ctx).Model(&models.Comment{}), f).Count(&total).Error
	return total, err
}

func (r *gormCommentRepository) UpdateContent(ctx context.Context, id, content string, editedAt time.Time) (err error) {
	ctx, finish := r.observe(ctx, "update")
	defer func() { finish(err) }()

	res := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumns(map[string]interface{}{
			"content":    content,
			"is_edited":  true,
			"edited_at":  editedAt,
			"updated_at": editedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormCommentRepository) SoftDelete(ctx context.Context, id string) (err error) {
	ctx, finish := r.observe(ctx, "delete")
	defer func() { finish(err) }()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Select("id", "parent_id").
			Where("id = ? AND is_active = ?", id, true).
			First(&comment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		res := tx.Model(&models.Comment{}).
			Where("id = ? AND is_active = ?", id, true).
			UpdateColumns(map[string]interface{}{
				"is_active":  false,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if !comment.IsReply() {
			return nil
		}
		if err := tx.Model(&models.Comment{}).
			Where("id = ? AND reply_count > 0", *comment.ParentID).
			UpdateColumn("reply_count", gorm.Expr("reply_count - 1")).Error; err != nil {
			return err
		}
		return refreshEngagement(tx, *comment.ParentID)
	})
}

func (r *gormCommentRepository) SetReaction(ctx context.Context, commentID, userID string, kind models.ReactionKind) (err error) {
	ctx, finish := r.observe(ctx, "react")
	defer func() { finish(err) }()

	if kind != models.ReactionLike && kind != models.ReactionDislike {
		return fmt.Errorf("unsupported reaction kind %q", kind)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureActive(tx, commentID); err != nil {
			return err
		}
		reaction := models.CommentReaction{
			CommentID: commentID,
			UserID:    userID,
			Kind:      kind,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
		}).Create(&reaction).Error; err != nil {
			return err
		}
		return refreshEngagement(tx, commentID)
	})
}

func (r *gormCommentRepository) ClearReaction(ctx context.Context, commentID, userID string) (err error) {
	ctx, finish := r.observe(ctx, "unreact")
	defer func() { finish(err) }()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureActive(tx, commentID); err != nil {
			return err
		}
		if err := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).
			Delete(&models.CommentReaction{}).Error; err != nil {
			return err
		}
		return refreshEngagement(tx, commentID)
	})
}

func applyFilter(db *gorm.DB, f Filter) *gorm.DB {
	db = db.Where("is_active = ?", true)
	if f.ParentID == "" {
		return db.Where("parent_id IS NULL")
	}
	return db.Where("parent_id = ?", f.ParentID)
}

func applySort(db *gorm.DB, s SortSpec) *gorm.DB {
	switch s.Key {
	case SortMostLiked:
		return db.Order(likeCountSQL + " DESC").Order("created_at DESC")
	case SortMostDisliked:
		return db.Order(dislikeCountSQL + " DESC").Order("created_at DESC")
	case SortEngagement:
		return db.Order("engagement_score DESC").Order("created_at DESC")
	}

	column := "created_at"
	switch s.Key {
	case SortUpdatedAt:
		column = "updated_at"
	case SortReplyCount:
		column = "reply_count"
	}
	db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: s.Descending})
	if column != "created_at" {
		db = db.Order("created_at DESC")
	}
	return db
}

func ensureActive(tx *gorm.DB, commentID string) error {
	var n int64
	if err := tx.Model(&models.Comment{}).
		Where("id = ? AND is_active = ?", commentID, true).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func refreshEngagement(tx *gorm.DB, commentID string) error {
	return tx.Exec(refreshEngagementSQL, commentID).Error
}

// loadReactions fills Likes and Dislikes for comments with one query.
func loadReactions(db *gorm.DB, comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]string, 0, len(comments))
	byID := make(map[string]*models.Comment, len(comments))
	for _, c := range comments {
		c.Likes = []string{}
		c.Dislikes = []string{}
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}

	var reactions []models.CommentReaction
	if err := db.Where("comment_id IN ?", ids).
		Order("created_at ASC").
		Find(&reactions).Error; err != nil {
		return err
	}
	for _, rx := range reactions {
		c, ok := byID[rx.CommentID]
		if !ok {
			continue
		}
		switch rx.Kind {
		case models.ReactionLike:
			c.Likes = append(c.Likes, rx.UserID)
		case models.ReactionDislike:
			c.Dislikes = append(c.Dislikes, rx.UserID)
		}
	}
	return nil
}

type gormUserRepository struct {
	db     *gorm.DB
	driver string
}

// NewGormUserRepository creates a UserRepository over db.
func NewGormUserRepository(db *gorm.DB, driver string) UserRepository {
	return &gormUserRepository{db: db, driver: driver}
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer observability.TrackStoreQuery(r.driver, "user_get")()

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	defer observability.TrackStoreQuery(r.driver, "user_get_many")()

	ids = uniqueIDs(ids)
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []*models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *gormUserRepository) Upsert(ctx context.Context, user *models.User) error {
	defer observability.TrackStoreQuery(r.driver, "user_upsert")()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "avatar", "is_admin", "updated_at"}),
	}).Create(user).Error
}
