package docstore

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore implements Store on a MongoDB database. A path
// "collection/documentID" maps to a document with that string _id; SetMerge
// translates nested fields into dotted $set paths so sibling keys survive,
// and Subscribe tails a change stream filtered to the one document.
//
// Change streams require a replica set or a sharded cluster, which is how the
// managed offerings run by default.
type MongoStore struct {
	db  *mongo.Database
	log *slog.Logger
}

// NewMongoStore creates a MongoStore over the given database. A nil logger
// falls back to slog.Default().
func NewMongoStore(db *mongo.Database, log *slog.Logger) *MongoStore {
	if log == nil {
		log = slog.Default()
	}
	return &MongoStore{db: db, log: log}
}

var _ Store = (*MongoStore)(nil)

// Get reads the current state of a document.
func (s *MongoStore) Get(ctx context.Context, path string) (Snapshot, error) {
	coll, id, err := s.locate(path)
	if err != nil {
		return Snapshot{}, err
	}

	var doc bson.M
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{Path: path, Exists: false, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return Snapshot{}, errors.Join(ErrReadFailed, err)
	}
	return snapshotFromDocument(path, doc), nil
}

// SetMerge merges fields into the document, creating it if absent.
func (s *MongoStore) SetMerge(ctx context.Context, path string, fields map[string]any) error {
	coll, id, err := s.locate(path)
	if err != nil {
		return err
	}

	set := bson.M{}
	flattenFields("", fields, set)
	if len(set) == 0 {
		return nil
	}

	_, err = coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return errors.Join(ErrWriteFailed, err)
	}
	return nil
}

// Subscribe opens a change-stream-backed snapshot stream for the document.
// The current state is read and delivered before the stream starts.
func (s *MongoStore) Subscribe(ctx context.Context, path string) (Subscription, error) {
	coll, id, err := s.locate(path)
	if err != nil {
		return nil, err
	}

	initial, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"documentKey._id": id,
			"operationType":   bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
		}}},
	}
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := coll.Watch(streamCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, errors.Join(ErrSubscriptionFailed, err)
	}

	sub := &mongoSubscription{
		ch:     make(chan Snapshot, subscriptionBuffer),
		cancel: cancel,
	}
	sub.ch <- initial

	go s.consume(streamCtx, stream, path, sub)
	return sub, nil
}

func (s *MongoStore) consume(ctx context.Context, stream *mongo.ChangeStream, path string, sub *mongoSubscription) {
	defer func() {
		if err := stream.Close(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("closing change stream", slog.String("path", path), slog.Any("error", err))
		}
	}()

	for stream.Next(ctx) {
		var event struct {
			OperationType string `bson:"operationType"`
			FullDocument  bson.M `bson:"fullDocument"`
		}
		if err := stream.Decode(&event); err != nil {
			s.log.Warn("decoding change event", slog.String("path", path), slog.Any("error", err))
			continue
		}

		if event.OperationType == "delete" {
			sub.push(Snapshot{Path: path, Exists: false, UpdatedAt: time.Now()})
			continue
		}
		sub.push(snapshotFromDocument(path, event.FullDocument))
	}

	err := stream.Err()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		err = errors.Join(ErrSubscriptionFailed, err)
	}
	sub.finish(err)
}

func (s *MongoStore) locate(path string) (*mongo.Collection, string, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, "", ErrInvalidPath
	}
	return s.db.Collection(parts[0]), parts[1], nil
}

type mongoSubscription struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	ch     chan Snapshot
	err    error
	closed bool
}

func (s *mongoSubscription) Snapshots() <-chan Snapshot { return s.ch }

func (s *mongoSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *mongoSubscription) Unsubscribe() {
	s.cancel()
	s.finish(nil)
}

func (s *mongoSubscription) push(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
	default:
	}
}

func (s *mongoSubscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}

func snapshotFromDocument(path string, doc bson.M) Snapshot {
	data, _ := normalizeValue(doc).(map[string]any)
	delete(data, "_id")
	return Snapshot{Path: path, Exists: true, Data: data, UpdatedAt: time.Now()}
}

// flattenFields turns nested maps into dotted $set paths so that merging
// {"flags": {"x": {...}}} leaves sibling flags untouched.
func flattenFields(prefix string, fields map[string]any, out bson.M) {
	for key, value := range fields {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenFields(full, nested, out)
			continue
		}
		out[full] = value
	}
}

// normalizeValue converts BSON container and date types into the plain Go
// shapes the rest of the module works with.
func normalizeValue(v any) any {
	switch vv := v.(type) {
	case bson.M:
		out := make(map[string]any, len(vv))
		for key, value := range vv {
			out[key] = normalizeValue(value)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(vv))
		for _, elem := range vv {
			out[elem.Key] = normalizeValue(elem.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = normalizeValue(item)
		}
		return out
	case bson.DateTime:
		return vv.Time()
	default:
		return v
	}
}
