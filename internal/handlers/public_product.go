package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"b2bmarket/internal/database"
	"b2bmarket/internal/models"
)

var errUnknownCategory = errors.New("unknown category")

func regexQuote(s string) string {
	return regexp.QuoteMeta(s)
}

// resolveCategoryID accepts a numeric id or a category slug.
func resolveCategoryID(ctx context.Context, db *mongo.Database, value string) (int64, error) {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, nil
	}
	var category models.Category
	err := db.Collection(database.CollCategories).FindOne(ctx, bson.M{"slug": strings.ToLower(value)}).Decode(&category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, errUnknownCategory
	}
	if err != nil {
		return 0, err
	}
	return category.CategoryID, nil
}

func resolveSubcategoryID(ctx context.Context, db *mongo.Database, categoryID int64, value string) (int64, error) {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, nil
	}
	if categoryID == 0 {
		return 0, errUnknownCategory
	}
	var sub models.Subcategory
	err := db.Collection(database.CollSubcategories).FindOne(ctx, bson.M{
		"categoryId": categoryID,
		"slug":       strings.ToLower(value),
	}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, errUnknownCategory
	}
	if err != nil {
		return 0, err
	}
	return sub.SubcategoryID, nil
}

/*
GET /api/v1/products
- pagination is optional
- without page and limit every product is returned
*/
func GetProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		logger.Debug().
			Str("page", c.Query("page")).
			Str("limit", c.Query("limit")).
			Str("category", c.Query("category")).
			Str("subcategory", c.Query("subcategory")).
			Str("search", c.Query("search")).
			Msg("hit")

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		filter := bson.M{
			"isActive":  bson.M{"$ne": false},
			"isDeleted": bson.M{"$ne": true},
		}

		var categoryID int64
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			id, err := resolveCategoryID(ctx, db, category)
			if errors.Is(err, errUnknownCategory) {
				c.JSON(http.StatusOK, []models.Product{})
				return
			}
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			categoryID = id
			filter["categoryId"] = id
		}

		if subcategory := strings.TrimSpace(c.Query("subcategory")); subcategory != "" {
			id, err := resolveSubcategoryID(ctx, db, categoryID, subcategory)
			if errors.Is(err, errUnknownCategory) {
				c.JSON(http.StatusOK, []models.Product{})
				return
			}
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			filter["subcategoryId"] = id
		}

		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["name"] = bson.M{"$regex": regexQuote(search), "$options": "i"}
		}

		findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

		pageStr := c.Query("page")
		limitStr := c.Query("limit")
		paged := pageStr != "" && limitStr != ""
		var page, limit int64
		if paged {
			var err error
			page, limit, err = parsePaginationParams(pageStr, limitStr)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			applyPage(findOptions, page, limit)
		}

		cursor, err := db.Collection(database.CollProducts).Find(ctx, filter, findOptions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		logger.Info().Int("count", len(products)).Msg("returning products")
		if !paged {
			c.JSON(http.StatusOK, products)
			return
		}

		total, err := db.Collection(database.CollProducts).CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":       products,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

/*
GET /api/v1/products/:slug
*/
func GetProductBySlug(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:slug"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var raw bson.M
		err := db.Collection(database.CollProducts).FindOne(ctx, bson.M{
			"slug":      strings.ToLower(strings.TrimSpace(c.Param("slug"))),
			"isActive":  bson.M{"$ne": false},
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&raw)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		product, err := normalizeProductDocument(raw)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}
		c.JSON(http.StatusOK, product)
	}
}
