package auditlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection MongoStorage writes to unless
// configured otherwise.
const DefaultCollection = "flag_audit_log"

// MongoStorage persists audit records to a MongoDB collection. Records are
// insert-only; there is no update or delete path.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage creates a MongoStorage on the given database. An empty
// collection name selects DefaultCollection.
func NewMongoStorage(db *mongo.Database, collection string) *MongoStorage {
	if collection == "" {
		collection = DefaultCollection
	}
	return &MongoStorage{coll: db.Collection(collection)}
}

var (
	_ Writer = (*MongoStorage)(nil)
	_ Reader = (*MongoStorage)(nil)
)

// EnsureIndexes creates the query indexes. Call once at startup.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "action_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return errors.Join(ErrStorageFailed, err)
	}
	return nil
}

// Record validates and inserts the entry.
func (s *MongoStorage) Record(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if _, err := s.coll.InsertOne(ctx, entry); err != nil {
		return errors.Join(ErrStorageFailed, err)
	}
	return nil
}

// Find returns matching entries, newest first.
func (s *MongoStorage) Find(ctx context.Context, criteria Criteria) ([]Entry, error) {
	filter := bson.M{}
	if criteria.TenantID != "" {
		filter["tenant_id"] = criteria.TenantID
	}
	if criteria.ActorID != "" {
		filter["actor_id"] = criteria.ActorID
	}
	if criteria.ActionID != "" {
		filter["action_id"] = criteria.ActionID
	}
	if !criteria.Since.IsZero() || !criteria.Until.IsZero() {
		window := bson.M{}
		if !criteria.Since.IsZero() {
			window["$gte"] = criteria.Since
		}
		if !criteria.Until.IsZero() {
			window["$lte"] = criteria.Until
		}
		filter["created_at"] = window
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if criteria.Limit > 0 {
		opts.SetLimit(int64(criteria.Limit))
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}
	return entries, nil
}
