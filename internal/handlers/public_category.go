package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"b2bmarket/internal/cache"
	"b2bmarket/internal/database"
	"b2bmarket/internal/models"
)

type treeProduct struct {
	models.ProductSummary `bson:",inline"`
	CategoryID            int64 `bson:"categoryId"`
	SubcategoryID         int64 `bson:"subcategoryId"`
}

type subKey struct {
	category    int64
	subcategory int64
}

// loadCategoryTree assembles active categories, their active subcategories and
// the live products filed under each subcategory.
func loadCategoryTree(ctx context.Context, db *mongo.Database) ([]models.Category, error) {
	cursor, err := db.Collection(database.CollCategories).Find(ctx,
		bson.M{"isActive": true},
		options.Find().SetSort(bson.D{{Key: "id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	categories := make([]models.Category, 0)
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return categories, nil
	}

	ids := make([]int64, 0, len(categories))
	for _, cat := range categories {
		ids = append(ids, cat.CategoryID)
	}

	cursor, err = db.Collection(database.CollSubcategories).Find(ctx,
		bson.M{"isActive": true, "categoryId": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "categoryId", Value: 1}, {Key: "subcategoryId", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var subs []models.Subcategory
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}

	cursor, err = db.Collection(database.CollProducts).Find(ctx,
		bson.M{"isActive": true, "isDeleted": bson.M{"$ne": true}, "categoryId": bson.M{"$in": ids}},
		options.Find().
			SetSort(bson.D{{Key: "name", Value: 1}}).
			SetProjection(bson.M{"pid": 1, "name": 1, "slug": 1, "imagePath": 1, "categoryId": 1, "subcategoryId": 1}),
	)
	if err != nil {
		return nil, err
	}
	var products []treeProduct
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}

	bySub := make(map[subKey][]models.ProductSummary)
	for _, p := range products {
		key := subKey{p.CategoryID, p.SubcategoryID}
		bySub[key] = append(bySub[key], p.ProductSummary)
	}

	byCategory := make(map[int64][]models.Subcategory)
	for _, sub := range subs {
		sub.Products = bySub[subKey{sub.CategoryID, sub.SubcategoryID}]
		if sub.Products == nil {
			sub.Products = []models.ProductSummary{}
		}
		byCategory[sub.CategoryID] = append(byCategory[sub.CategoryID], sub)
	}

	for i := range categories {
		categories[i].Subcategories = byCategory[categories[i].CategoryID]
		if categories[i].Subcategories == nil {
			categories[i].Subcategories = []models.Subcategory{}
		}
	}
	return categories, nil
}

/*
GET /api/v1/categories/all
- cached category tree
*/
func GetCategoryTree(db *mongo.Database, tree cache.CategoryTree) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories/all"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		if cached, ok := tree.Get(c.Request.Context()); ok {
			logger.Debug().Int("categories", len(cached)).Msg("served from cache")
			c.JSON(http.StatusOK, cached)
			return
		}

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		categories, err := loadCategoryTree(ctx, db)
		if err != nil {
			logger.Error().Err(err).Msg("load category tree failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		tree.Set(c.Request.Context(), categories)
		logger.Info().Int("categories", len(categories)).Msg("returning category tree")
		c.JSON(http.StatusOK, categories)
	}
}

/*
GET /api/v1/categories/:slug
*/
func GetCategoryBySlug(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories/:slug"
		defer handlePanic(c, route)

		slugValue := strings.ToLower(strings.TrimSpace(c.Param("slug")))

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var category models.Category
		err := db.Collection(database.CollCategories).FindOne(ctx, bson.M{"slug": slugValue, "isActive": true}).Decode(&category)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		cursor, err := db.Collection(database.CollSubcategories).Find(ctx,
			bson.M{"categoryId": category.CategoryID, "isActive": true},
			options.Find().SetSort(bson.D{{Key: "subcategoryId", Value: 1}}),
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		category.Subcategories = make([]models.Subcategory, 0)
		if err := cursor.All(ctx, &category.Subcategories); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, category)
	}
}
