package database

import (
	"context"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"b2bmarket/internal/models"
)

const (
	SeqCategory = "categoryId"
	SeqProduct  = "productId"
)

// SubcategorySeq names the per-category subcategory counter.
func SubcategorySeq(categoryID int64) string {
	return "subcategory_" + strconv.FormatInt(categoryID, 10)
}

// NextSequence atomically increments the named counter and returns the new
// value. It is not part of the caller's insert; a crash in between leaves a gap.
func NextSequence(ctx context.Context, db *mongo.Database, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter models.Counter
	err := db.Collection(CollCounters).FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return counter.Seq, nil
}
