package database

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/multierr"
)

type collectionIndex struct {
	collection string
	model      mongo.IndexModel
}

func uniqueIndex(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(name).SetUnique(true),
	}
}

func plainIndex(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(name),
	}
}

var indexes = []collectionIndex{
	{CollCategories, uniqueIndex("slug_unique", bson.D{{Key: "slug", Value: 1}})},
	{CollCategories, uniqueIndex("id_unique", bson.D{{Key: "id", Value: 1}})},
	{CollSubcategories, uniqueIndex("category_slug_unique", bson.D{{Key: "categoryId", Value: 1}, {Key: "slug", Value: 1}})},
	{CollProducts, uniqueIndex("slug_unique", bson.D{{Key: "slug", Value: 1}})},
	{CollProducts, plainIndex("category_subcategory", bson.D{{Key: "categoryId", Value: 1}, {Key: "subcategoryId", Value: 1}})},
	{CollRequirements, uniqueIndex("reqId_unique", bson.D{{Key: "reqId", Value: 1}})},
	{CollRequirements, plainIndex("email_status", bson.D{{Key: "email", Value: 1}, {Key: "status", Value: 1}})},
	{CollQuotations, uniqueIndex("requirementId_unique", bson.D{{Key: "requirementId", Value: 1}})},
	{CollQuotations, plainIndex("seller_email", bson.D{{Key: "selectedCompanies.email", Value: 1}})},
	{CollQuotas, uniqueIndex("reqId_seller_unique", bson.D{{Key: "reqId", Value: 1}, {Key: "seller_email", Value: 1}})},
	{CollQuotas, plainIndex("buyer_status", bson.D{{Key: "buyer_email", Value: 1}, {Key: "status", Value: 1}})},
	{CollNegotiations, uniqueIndex("negId_unique", bson.D{{Key: "negId", Value: 1}})},
	{CollPayments, uniqueIndex("paymentId_unique", bson.D{{Key: "paymentId", Value: 1}})},
	{CollUsers, uniqueIndex("email_unique", bson.D{{Key: "email", Value: 1}})},
	{CollRefreshTokens, uniqueIndex("tokenHash_unique", bson.D{{Key: "tokenHash", Value: 1}})},
	{CollOutbox, plainIndex("unpublished", bson.D{{Key: "publishedAt", Value: 1}, {Key: "createdAt", Value: 1}})},
}

// EnsureIndexes creates every index the handlers rely on. Each failure is
// logged; the combined error is returned so startup can decide what to do.
func EnsureIndexes(db *mongo.Database) error {
	var errs error
	for _, idx := range indexes {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		name, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model)
		cancel()
		if err != nil {
			log.Warn().Err(err).
				Str("collection", idx.collection).
				Msg("EnsureIndexes: index error")
			errs = multierr.Append(errs, err)
			continue
		}
		log.Debug().Str("collection", idx.collection).Str("index", name).Msg("EnsureIndexes: index ready")
	}
	return errs
}
