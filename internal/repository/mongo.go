package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrInvalidID is returned when an identifier cannot be used by the store,
// e.g. a non-hex viewer id against MongoDB.
var ErrInvalidID = errors.New("invalid id")

const (
	commentsCollection = "comments"
	usersCollection    = "users"
)

type commentDocument struct {
	ID              primitive.ObjectID   `bson:"_id"`
	Content         string               `bson:"content"`
	Author          primitive.ObjectID   `bson:"author"`
	ParentComment   *primitive.ObjectID  `bson:"parentComment"`
	Likes           []primitive.ObjectID `bson:"likes"`
	Dislikes        []primitive.ObjectID `bson:"dislikes"`
	ReplyCount      int                  `bson:"replyCount"`
	EngagementScore float64              `bson:"engagementScore"`
	IsActive        bool                 `bson:"isActive"`
	IsEdited        bool                 `bson:"isEdited"`
	EditedAt        *time.Time           `bson:"editedAt,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Username  string             `bson:"username"`
	Avatar    string             `bson:"avatar"`
	IsAdmin   bool               `bson:"isAdmin"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type mongoStore struct {
	client   *mongo.Client
	comments *mongoCommentRepository
	users    *mongoUserRepository
}

// NewMongoStore returns a Store over database dbName.
func NewMongoStore(client *mongo.Client, dbName string) Store {
	db := client.Database(dbName)
	return &mongoStore{
		client:   client,
		comments: &mongoCommentRepository{coll: db.Collection(commentsCollection)},
		users:    &mongoUserRepository{coll: db.Collection(usersCollection)},
	}
}

func (s *mongoStore) Driver() string              { return "mongo" }
func (s *mongoStore) Comments() CommentRepository { return s.comments }
func (s *mongoStore) Users() UserRepository       { return s.users }

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes list and sort queries rely on.
func EnsureIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	_, err := db.Collection(commentsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "parentComment", Value: 1}, {Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "engagementScore", Value: -1}}},
		{Keys: bson.D{{Key: "author", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create comment indexes: %w", err)
	}
	_, err = db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

type mongoCommentRepository struct {
	coll *mongo.Collection
}

func (r *mongoCommentRepository) observe(ctx context.Context, op string) (context.Context, func(error)) {
	done := observability.TrackStoreQuery("mongo", op)
	ctx, span := observability.StartStoreSpan(ctx, "mongo", op)
	return ctx, func(err error) {
		done()
		observability.EndSpan(span, err)
	}
}

func (r *mongoCommentRepository) Create(ctx context.Context, comment *models.Comment) (err error) {
	ctx, finish := r.observe(ctx, "create")
	defer func() { finish(err) }()

	author, err := primitive.ObjectIDFromHex(comment.AuthorID)
	if err != nil {
		return fmt.Errorf("author %q: %w", comment.AuthorID, ErrInvalidID)
	}

	now := time.Now().UTC()
	doc := commentDocument{
		ID:        primitive.NewObjectID(),
		Content:   comment.Content,
		Author:    author,
		Likes:     []primitive.ObjectID{},
		Dislikes:  []primitive.ObjectID{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if comment.IsReply() {
		parent, err := primitive.ObjectIDFromHex(*comment.ParentID)
		if err != nil {
			return ErrNotFound
		}
		doc.ParentComment = &parent
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return err
	}

	if doc.ParentComment != nil {
		r.adjustReplyCount(ctx, *doc.ParentComment, 1)
	}

	*comment = *doc.toModel()
	return nil
}

func (r *mongoCommentRepository) GetByID(ctx context.Context, id string) (_ *models.Comment, err error) {
	ctx, finish := r.observe(ctx, "get")
	defer func() { finish(err) }()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc commentDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *mongoCommentRepository) List(ctx context.Context, q ListQuery) (_ []*models.Comment, err error) {
	ctx, finish := r.observe(ctx, "list")
	defer func() { finish(err) }()

	filter, err := buildFilter(q.Filter)
	if err != nil {
		return []*models.Comment{}, nil
	}

	var cursor *mongo.Cursor
	if pipeline := rankedPipeline(filter, q); pipeline != nil {
		cursor, err = r.coll.Aggregate(ctx, pipeline)
	} else {
		cursor, err = r.coll.Find(ctx, filter, buildFindOptions(q))
	}
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []commentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*models.Comment, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (r *mongoCommentRepository) Count(ctx context.Context, f Filter) (_ int64, err error) {
	ctx, finish := r.observe(ctx, "count")
	defer func() { finish(err) }()

	filter, err := buildFilter(f)
	if err != nil {
		return 0, nil
	}
	return r.coll.CountDocuments(ctx, filter)
}

func (r *mongoCommentRepository) UpdateContent(ctx context.Context, id, content string, editedAt time.Time) (err error) {
	ctx, finish := r.observe(ctx, "update")
	defer func() { finish(err) }()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "isActive": true},
		bson.M{"$set": bson.M{
			"content":   content,
			"isEdited":  true,
			"editedAt":  editedAt,
			"updatedAt": editedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoCommentRepository) SoftDelete(ctx context.Context, id string) (err error) {
	ctx, finish := r.observe(ctx, "delete")
	defer func() { finish(err) }()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	var before commentDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.Before).
			SetProjection(bson.M{"_id": 1, "parentComment": 1}),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}

	if before.ParentComment != nil {
		r.adjustReplyCount(ctx, *before.ParentComment, -1)
	}
	return nil
}

// adjustReplyCount moves the parent's replyCount and engagementScore by delta.
// It runs after the reply write is committed, so a failure leaves the counter
// stale rather than failing the request.
func (r *mongoCommentRepository) adjustReplyCount(ctx context.Context, parent primitive.ObjectID, delta int) {
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": parent}, replyCountPipeline(delta)); err != nil {
		observability.ReplyCountDrift.WithLabelValues("mongo").Inc()
		middleware.Logger.WarnContext(ctx, "reply count update failed",
			slog.String("parent_id", parent.Hex()),
			slog.Int("delta", delta),
			slog.String("error", err.Error()),
		)
	}
}

func (r *mongoCommentRepository) SetReaction(ctx context.Context, commentID, userID string, kind models.ReactionKind) (err error) {
	ctx, finish := r.observe(ctx, "react")
	defer func() { finish(err) }()

	return r.react(ctx, commentID, userID, kind)
}

func (r *mongoCommentRepository) ClearReaction(ctx context.Context, commentID, userID string) (err error) {
	ctx, finish := r.observe(ctx, "unreact")
	defer func() { finish(err) }()

	return r.react(ctx, commentID, userID, models.ReactionNone)
}

func (r *mongoCommentRepository) react(ctx context.Context, commentID, userID string, kind models.ReactionKind) error {
	oid, err := primitive.ObjectIDFromHex(commentID)
	if err != nil {
		return ErrNotFound
	}
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("viewer %q: %w", userID, ErrInvalidID)
	}
	pipeline, err := reactionPipeline(uid, kind)
	if err != nil {
		return err
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid, "isActive": true}, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// buildFilter selects active comments at one thread level. A parent id that
// is not an ObjectID cannot match anything and yields ErrInvalidID.
func buildFilter(f Filter) (bson.M, error) {
	filter := bson.M{"isActive": true}
	if f.ParentID == "" {
		filter["parentComment"] = nil
		return filter, nil
	}
	parent, err := primitive.ObjectIDFromHex(f.ParentID)
	if err != nil {
		return nil, ErrInvalidID
	}
	filter["parentComment"] = parent
	return filter, nil
}

var sortFields = map[SortKey]string{
	SortCreatedAt:  "createdAt",
	SortUpdatedAt:  "updatedAt",
	SortReplyCount: "replyCount",
	SortEngagement: "engagementScore",
}

func sortDocument(s SortSpec) bson.D {
	dir := 1
	if s.Descending {
		dir = -1
	}
	field, ok := sortFields[s.Key]
	if !ok {
		field = "createdAt"
	}
	sort := bson.D{{Key: field, Value: dir}}
	if field != "createdAt" {
		sort = append(sort, bson.E{Key: "createdAt", Value: -1})
	}
	return sort
}

func buildFindOptions(q ListQuery) *options.FindOptions {
	return options.Find().
		SetSort(sortDocument(q.Sort)).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))
}

// rankedPipeline returns the aggregation for sorts on reaction set sizes, or
// nil when a plain find can serve the query.
func rankedPipeline(filter bson.M, q ListQuery) mongo.Pipeline {
	var set string
	switch q.Sort.Key {
	case SortMostLiked:
		set = "$likes"
	case SortMostDisliked:
		set = "$dislikes"
	default:
		return nil
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$addFields", Value: bson.M{
			"reactionCount": bson.M{"$size": bson.M{"$ifNull": bson.A{set, bson.A{}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "reactionCount", Value: -1}, {Key: "createdAt", Value: -1}}}},
		{{Key: "$skip", Value: int64(q.Skip)}},
		{{Key: "$limit", Value: int64(q.Limit)}},
		{{Key: "$project", Value: bson.M{"reactionCount": 0}}},
	}
}

var engagementStage = bson.D{{Key: "$set", Value: bson.M{
	"engagementScore": bson.M{"$toDouble": bson.M{"$subtract": bson.A{
		bson.M{"$add": bson.A{
			bson.M{"$size": "$likes"},
			bson.M{"$multiply": bson.A{2, bson.M{"$ifNull": bson.A{"$replyCount", 0}}}},
		}},
		bson.M{"$size": "$dislikes"},
	}}},
}}}

func withDefaultSet(field string) bson.M {
	return bson.M{"$ifNull": bson.A{field, bson.A{}}}
}

// reactionPipeline moves uid into the set for kind and out of the other one,
// then recomputes engagementScore in the same update.
func reactionPipeline(uid primitive.ObjectID, kind models.ReactionKind) (mongo.Pipeline, error) {
	only := bson.A{uid}
	var set bson.M
	switch kind {
	case models.ReactionLike:
		set = bson.M{
			"likes":    bson.M{"$setUnion": bson.A{withDefaultSet("$likes"), only}},
			"dislikes": bson.M{"$setDifference": bson.A{withDefaultSet("$dislikes"), only}},
		}
	case models.ReactionDislike:
		set = bson.M{
			"likes":    bson.M{"$setDifference": bson.A{withDefaultSet("$likes"), only}},
			"dislikes": bson.M{"$setUnion": bson.A{withDefaultSet("$dislikes"), only}},
		}
	case models.ReactionNone:
		set = bson.M{
			"likes":    bson.M{"$setDifference": bson.A{withDefaultSet("$likes"), only}},
			"dislikes": bson.M{"$setDifference": bson.A{withDefaultSet("$dislikes"), only}},
		}
	default:
		return nil, fmt.Errorf("unsupported reaction kind %q", kind)
	}
	return mongo.Pipeline{{{Key: "$set", Value: set}}, engagementStage}, nil
}

func replyCountPipeline(delta int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"replyCount": bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$replyCount", 0}}, delta}}}},
			"likes":      withDefaultSet("$likes"),
			"dislikes":   withDefaultSet("$dislikes"),
		}}},
		engagementStage,
	}
}

func (d *commentDocument) toModel() *models.Comment {
	c := &models.Comment{
		ID:              d.ID.Hex(),
		Content:         d.Content,
		AuthorID:        d.Author.Hex(),
		IsActive:        d.IsActive,
		IsEdited:        d.IsEdited,
		EditedAt:        d.EditedAt,
		ReplyCount:      d.ReplyCount,
		EngagementScore: d.EngagementScore,
		Likes:           hexIDs(d.Likes),
		Dislikes:        hexIDs(d.Dislikes),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.ParentComment != nil {
		parent := d.ParentComment.Hex()
		c.ParentID = &parent
	}
	return c
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		out = append(out, oid)
	}
	return out
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer observability.TrackStoreQuery("mongo", "user_get")()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc userDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	defer observability.TrackStoreQuery("mongo", "user_get_many")()

	oids := objectIDs(uniqueIDs(ids))
	out := make(map[string]*models.User, len(oids))
	if len(oids) == 0 {
		return out, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		u := docs[i].toModel()
		out[u.ID] = u
	}
	return out, nil
}

func (r *mongoUserRepository) Upsert(ctx context.Context, user *models.User) error {
	defer observability.TrackStoreQuery("mongo", "user_upsert")()

	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return fmt.Errorf("user %q: %w", user.ID, ErrInvalidID)
	}

	now := time.Now().UTC()
	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$set": bson.M{
				"username":  user.Username,
				"avatar":    user.Avatar,
				"isAdmin":   user.IsAdmin,
				"updatedAt": now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:        d.ID.Hex(),
		Username:  d.Username,
		Avatar:    d.Avatar,
		IsAdmin:   d.IsAdmin,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
