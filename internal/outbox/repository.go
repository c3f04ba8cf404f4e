package outbox

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database, collection string) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collection)}
}

// Enqueue must be called with the transaction context of the business write.
func (r *MongoRepository) Enqueue(ctx context.Context, ev Event) error {
	_, err := r.coll.InsertOne(ctx, ev)
	return err
}

func (r *MongoRepository) FetchUnpublished(ctx context.Context, limit int64) ([]Event, error) {
	filter := bson.M{
		"publishedAt": nil,
		"attempts":    bson.M{"$lt": maxAttempts},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Event
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) MarkPublished(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"publishedAt": at},
		"$inc":   bson.M{"attempts": 1},
		"$unset": bson.M{"lastError": ""},
	})
	return err
}

func (r *MongoRepository) MarkFailed(ctx context.Context, id primitive.ObjectID, cause error) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"lastError": cause.Error()},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}
