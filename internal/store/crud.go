package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/picahq/pica-gateway/internal/apperr"
	"github.com/picahq/pica-gateway/internal/entities"
)

func nowMillis() int64 { return time.Now().UTC().UnixMilli() }

// ListQuery is the admin-CRUD list grammar from spec.md §6: pagination,
// equality filters, and the two composite operators (contains, regex).
type ListQuery struct {
	Limit              int
	Skip               int
	Equals             map[string]string
	Contains           map[string][]string // field -> values, becomes $in
	Regex              map[string]string   // field -> pattern, becomes case-insensitive regex
	ShowAllEnvironments bool
}

// DefaultLimit and MaxLimit bound ListQuery.Limit per spec.md §6.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// CRUDStore is a generic Mongo-backed repository for one collection,
// parameterized on the entity type T. Every admin catalog endpoint
// (eventAccess, connections, connection-definitions, ...) is backed by one
// instantiation of this type.
type CRUDStore[T any] struct {
	coll *mongo.Collection
}

// NewCRUDStore returns a CRUDStore bound to collection name in db.
func NewCRUDStore[T any](db *DB, name string) *CRUDStore[T] {
	return &CRUDStore[T]{coll: db.Database.Collection(name)}
}

// Collection exposes the underlying *mongo.Collection for callers that
// need an operation CRUDStore doesn't generalize (e.g. atomic $inc).
func (s *CRUDStore[T]) Collection() *mongo.Collection { return s.coll }

// Get fetches one document by id, scoped to ownership unless
// ownershipID is empty (an empty ownershipID skips the ownership filter).
func (s *CRUDStore[T]) Get(ctx context.Context, id entities.Id, ownershipID string) (T, error) {
	var out T
	filter := bson.M{"_id": string(id), "recordMetadata.deleted": bson.M{"$ne": true}}
	if ownershipID != "" {
		filter["ownership.buildableId"] = ownershipID
	}
	err := s.coll.FindOne(ctx, filter).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, apperr.New(apperr.KindNotFound, "record not found")
	}
	if err != nil {
		return out, apperr.Wrap(apperr.KindIOErr, "failed to load record", err)
	}
	return out, nil
}

// Insert stores a new document.
func (s *CRUDStore[T]) Insert(ctx context.Context, doc T) error {
	_, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return apperr.Wrap(apperr.KindIOErr, "failed to insert record", err)
	}
	return nil
}

// Update applies a partial $set of fields to one document, also setting
// recordMetadata's updated flag and updatedAt. Unlike RecordMetadata.Touch
// it does not bump the version.
func (s *CRUDStore[T]) Update(ctx context.Context, id entities.Id, ownershipID string, fields bson.M) (T, error) {
	var out T
	filter := bson.M{"_id": string(id)}
	if ownershipID != "" {
		filter["ownership.buildableId"] = ownershipID
	}

	set := bson.M{"recordMetadata.updated": true, "recordMetadata.updatedAt": nowMillis()}
	for k, v := range fields {
		set[k] = v
	}

	err := s.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return out, apperr.New(apperr.KindNotFound, "record not found")
	}
	if err != nil {
		return out, apperr.Wrap(apperr.KindIOErr, "failed to update record", err)
	}
	return out, nil
}

// SoftDelete marks a record deleted rather than removing it, matching the
// RecordMetadata.Deleted soft-delete convention spec.md §3 describes.
func (s *CRUDStore[T]) SoftDelete(ctx context.Context, id entities.Id, ownershipID string) error {
	filter := bson.M{"_id": string(id)}
	if ownershipID != "" {
		filter["ownership.buildableId"] = ownershipID
	}
	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"recordMetadata.deleted": true,
		"recordMetadata.active":  false,
	}})
	if err != nil {
		return apperr.Wrap(apperr.KindIOErr, "failed to delete record", err)
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.KindNotFound, "record not found")
	}
	return nil
}

// List runs a ListQuery against the collection scoped to ownershipID.
func (s *CRUDStore[T]) List(ctx context.Context, ownershipID string, q ListQuery) ([]T, error) {
	filter := buildFilter(ownershipID, q)

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(q.Skip)).
		SetSort(bson.D{{Key: "recordMetadata.createdAt", Value: -1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOErr, "failed to list records", err)
	}
	defer cur.Close(ctx)

	out := make([]T, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Wrap(apperr.KindIOErr, "failed to decode records", err)
	}
	return out, nil
}

// buildFilter translates a ListQuery into the bson filter document
// implementing spec.md §6's list grammar: equality filters, `contains`
// (field,v1,v2,... -> $in), `regex` (field,pattern -> case-insensitive
// regex), and the x-pica-show-all-environments override that drops the
// environment equality filter while leaving the ownership filter intact.
func buildFilter(ownershipID string, q ListQuery) bson.M {
	filter := bson.M{"recordMetadata.deleted": bson.M{"$ne": true}}
	if ownershipID != "" {
		filter["ownership.buildableId"] = ownershipID
	}

	for field, val := range q.Equals {
		if field == "environment" && q.ShowAllEnvironments {
			continue
		}
		filter[field] = val
	}
	for field, values := range q.Contains {
		filter[field] = bson.M{"$in": values}
	}
	for field, pattern := range q.Regex {
		filter[field] = bson.M{"$regex": pattern, "$options": "i"}
	}
	return filter
}

// ParseContains parses the "field,v1,v2,v3" query-param shape spec.md §6
// defines for the contains operator.
func ParseContains(raw string) (field string, values []string) {
	parts := strings.Split(raw, ",")
	if len(parts) < 2 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// ParseRegex parses the "field,pattern" query-param shape spec.md §6
// defines for the regex operator.
func ParseRegex(raw string) (field, pattern string) {
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
