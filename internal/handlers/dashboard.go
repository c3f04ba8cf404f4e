package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"b2bmarket/internal/database"
	"b2bmarket/internal/workflow"
)

type statusCount struct {
	Status string `bson:"_id"`
	Count  int64  `bson:"count"`
}

type amountTotal struct {
	Total float64 `bson:"total"`
	Count int64   `bson:"count"`
}

func countByStatus(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) (map[string]int64, error) {
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{
		"_id":   "$status",
		"count": bson.M{"$sum": 1},
	}}})

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []statusCount
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func sumField(ctx context.Context, coll *mongo.Collection, match bson.M, field string) (amountTotal, error) {
	var result amountTotal
	cursor, err := coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$" + field},
			"count": bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return result, err
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return result, err
		}
	}
	return result, cursor.Err()
}

/*
GET /api/v1/dashboard/buyer
*/
func BuyerDashboard(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /dashboard/buyer"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}
		email := normalizeEmail(actor.Email)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var (
			requirements map[string]int64
			quotas       map[string]int64
			paid         amountTotal
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			requirements, err = countByStatus(gctx, db.Collection(database.CollRequirements), mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"email": email}}},
			})
			return err
		})
		g.Go(func() (err error) {
			quotas, err = countByStatus(gctx, db.Collection(database.CollQuotas), mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"buyer_email": email}}},
			})
			return err
		})
		g.Go(func() (err error) {
			paid, err = sumField(gctx, db.Collection(database.CollPayments), bson.M{"buyerEmail": email}, "amount")
			return err
		})
		if err := g.Wait(); err != nil {
			routeLogger(c, route).Error().Err(err).Msg("dashboard aggregation failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"requirements": requirements,
			"quotas":       quotas,
			"payments": gin.H{
				"count":     paid.Count,
				"totalPaid": paid.Total,
			},
		})
	}
}

/*
GET /api/v1/dashboard/seller
*/
func SellerDashboard(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /dashboard/seller"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}
		email := normalizeEmail(actor.Email)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var (
			quotes    map[string]int64
			completed amountTotal
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			quotes, err = countByStatus(gctx, db.Collection(database.CollQuotations), mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"selectedCompanies.email": email}}},
				{{Key: "$unwind", Value: "$selectedCompanies"}},
				{{Key: "$match", Value: bson.M{"selectedCompanies.email": email}}},
				{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$selectedCompanies"}}},
			})
			return err
		})
		g.Go(func() (err error) {
			completed, err = sumField(gctx, db.Collection(database.CollQuotas), bson.M{
				"seller_email": email,
				"status":       workflow.QuotaCompleted,
			}, "sellerAmount")
			return err
		})
		if err := g.Wait(); err != nil {
			routeLogger(c, route).Error().Err(err).Msg("dashboard aggregation failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"quotes": quotes,
			"completedQuotas": gin.H{
				"count":  completed.Count,
				"amount": completed.Total,
			},
		})
	}
}
