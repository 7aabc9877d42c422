package dedup

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection holds deduplication markers.
const DefaultCollection = "manufacture_deduplication"

type mongoRecord struct {
	Key       string     `bson:"_id"`
	CreatedAt time.Time  `bson:"created_at"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// MongoStore persists markers in MongoDB, one document per key.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a store over db. An empty name uses DefaultCollection.
func NewMongoStore(db *mongo.Database, name string) *MongoStore {
	if name == "" {
		name = DefaultCollection
	}
	return &MongoStore{collection: db.Collection(name)}
}

// EnsureIndexes creates the TTL index that reaps expired markers.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_expires_at_ttl"),
	})
	return err
}

func (s *MongoStore) Exists(ctx context.Context, key string) (bool, error) {
	filter := bson.M{
		"_id": key,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": time.Now().UTC()}},
		},
	}
	count, err := s.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoStore) Mark(ctx context.Context, key string, ttl time.Duration) error {
	now := time.Now().UTC()
	rec := mongoRecord{Key: key, CreatedAt: now}
	if ttl > 0 {
		expires := now.Add(ttl)
		rec.ExpiresAt = &expires
	}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, rec, options.Replace().SetUpsert(true))
	return err
}
