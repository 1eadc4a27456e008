package inbox

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentals/internal/app/policies"
)

// Store records processed upstream deliveries, one document per (event, consumer).
type Store struct {
	col *mongo.Collection
}

func NewStore(ctx context.Context, db *mongo.Database) (*Store, error) {
	col := db.Collection("app_inbox")
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &Store{col: col}, nil
}

// Claim inserts the delivery marker. The unique index turns a second delivery into
// a duplicate key error, reported as already claimed.
func (s *Store) Claim(ctx context.Context, consumer, eventID string) (bool, error) {
	doc := bson.M{"event_id": eventID, "consumer": consumer, "received_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	return false, err
}

// Release forgets a claim so a failed delivery can be processed on retry.
func (s *Store) Release(ctx context.Context, consumer, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": consumer})
	return err
}

var _ policies.InboxStore = (*Store)(nil)
