package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/part"
)

const (
	PartCollection  = "manufacture_part"
	EventCollection = "manufacture_part_event"
)

// partDocument denormalizes the current status, profile, action and
// modification time so the open-batch and status queries do not need a join.
type partDocument struct {
	part.Part `bson:",inline"`
	Status    part.Status `bson:"status"`
	Profile   string      `bson:"profile"`
	Action    string      `bson:"action"`
	Modified  time.Time   `bson:"modified"`
}

type eventDocument struct {
	Key        string `bson:"_id"`
	part.Event `bson:",inline"`
}

// MongoRepository stores batches and event versions in two collections.
type MongoRepository struct {
	parts  *mongo.Collection
	events *mongo.Collection
}

// NewMongoRepository creates a repository over db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		parts:  db.Collection(PartCollection),
		events: db.Collection(EventCollection),
	}
}

// EnsureIndexes creates the lookup indexes used by FindOpen, the status
// listings and Delete.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.parts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "profile", Value: 1}, {Key: "action", Value: 1}},
			Options: options.Index().SetName("idx_status_profile_action"),
		},
		{
			Keys:    bson.D{{Key: "number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_number_unique"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "modified", Value: 1}},
			Options: options.Index().SetName("idx_status_modified"),
		},
	})
	if err != nil {
		return err
	}
	_, err = r.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "main", Value: 1}},
		Options: options.Index().SetName("idx_main"),
	})
	return err
}

func (r *MongoRepository) Part(ctx context.Context, id string) (*part.Part, error) {
	doc, err := r.findPart(ctx, id)
	if err != nil {
		return nil, err
	}
	p := doc.Part
	return &p, nil
}

func (r *MongoRepository) CurrentEvent(ctx context.Context, partID string) (*part.Event, error) {
	doc, err := r.findPart(ctx, partID)
	if err != nil {
		return nil, err
	}
	return r.Event(ctx, doc.EventID)
}

func (r *MongoRepository) Event(ctx context.Context, eventID string) (*part.Event, error) {
	var doc eventDocument
	err := r.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFoundEvent(eventID)
	}
	if err != nil {
		return nil, err
	}
	e := doc.Event
	return &e, nil
}

func (r *MongoRepository) Products(ctx context.Context, partID string) ([]part.Product, error) {
	e, err := r.CurrentEvent(ctx, partID)
	if err != nil {
		return nil, err
	}
	return e.SortedProducts(), nil
}

func (r *MongoRepository) Create(ctx context.Context, p *part.Part, e *part.Event) error {
	if p == nil || e == nil {
		return manufacture.NewError(manufacture.ErrValidation, "part and event are required", nil, nil)
	}
	if _, err := r.events.InsertOne(ctx, eventDocument{Key: e.ID, Event: *e}); err != nil {
		return err
	}
	p.EventID = e.ID
	doc := partDocument{Part: *p, Status: e.Status, Profile: e.Profile, Action: e.Action, Modified: e.Modified}
	if _, err := r.parts.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return manufacture.NewError(manufacture.ErrOpenPartExists, "manufacture part already stored", err, map[string]any{
				"part_id": p.ID,
			})
		}
		return err
	}
	return nil
}

func (r *MongoRepository) Save(ctx context.Context, e *part.Event) error {
	if e == nil {
		return manufacture.NewError(manufacture.ErrValidation, "event is required", nil, nil)
	}
	if _, err := r.findPart(ctx, e.Main); err != nil {
		return err
	}
	_, err := r.events.ReplaceOne(ctx, bson.M{"_id": e.ID}, eventDocument{Key: e.ID, Event: *e}, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}
	_, err = r.parts.UpdateOne(ctx, bson.M{"_id": e.Main}, bson.M{"$set": bson.M{
		"event_id": e.ID,
		"status":   e.Status,
		"profile":  e.Profile,
		"action":   e.Action,
		"modified": e.Modified,
	}})
	return err
}

func (r *MongoRepository) SetQuantity(ctx context.Context, partID string, quantity int) error {
	res, err := r.parts.UpdateOne(ctx, bson.M{"_id": partID}, bson.M{"$set": bson.M{"quantity": quantity}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFoundPart(partID)
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, partID string) error {
	res, err := r.parts.DeleteOne(ctx, bson.M{"_id": partID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return notFoundPart(partID)
	}
	_, err = r.events.DeleteMany(ctx, bson.M{"main": partID})
	return err
}

func (r *MongoRepository) FindOpen(ctx context.Context, profile, action string) (*part.Snapshot, error) {
	var doc partDocument
	err := r.parts.FindOne(ctx, bson.M{
		"status":  part.StatusOpen,
		"profile": profile,
		"action":  action,
	}, options.FindOne().SetSort(bson.D{{Key: "created", Value: 1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e, err := r.Event(ctx, doc.EventID)
	if err != nil {
		return nil, err
	}
	p := doc.Part
	return &part.Snapshot{Part: &p, Event: e}, nil
}

func (r *MongoRepository) ListByStatus(ctx context.Context, statuses ...part.Status) ([]part.Snapshot, error) {
	return r.list(ctx, bson.M{"status": bson.M{"$in": statuses}})
}

func (r *MongoRepository) ListModifiedSince(ctx context.Context, since time.Time, statuses ...part.Status) ([]part.Snapshot, error) {
	return r.list(ctx, bson.M{
		"status":   bson.M{"$in": statuses},
		"modified": bson.M{"$gte": since},
	})
}

func (r *MongoRepository) list(ctx context.Context, filter bson.M) ([]part.Snapshot, error) {
	cursor, err := r.parts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []partDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]part.Snapshot, 0, len(docs))
	for _, doc := range docs {
		e, err := r.Event(ctx, doc.EventID)
		if err != nil {
			return nil, err
		}
		p := doc.Part
		out = append(out, part.Snapshot{Part: &p, Event: e})
	}
	return out, nil
}

func (r *MongoRepository) findPart(ctx context.Context, id string) (*partDocument, error) {
	var doc partDocument
	err := r.parts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFoundPart(id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
