package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"b2bmarket/internal/cache"
	"b2bmarket/internal/database"
	"b2bmarket/internal/models"
	"b2bmarket/internal/slug"
)

type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ImagePath   string `json:"imagePath"`
	IsActive    *bool  `json:"isActive"`
}

type CategoryUpdateRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	ImagePath   *string `json:"imagePath"`
	IsActive    *bool   `json:"isActive"`
}

type SubcategoryCreateRequest struct {
	Name     string `json:"name" binding:"required"`
	Slug     string `json:"slug"`
	IsActive *bool  `json:"isActive"`
}

type SubcategoryUpdateRequest struct {
	Name     *string `json:"name"`
	Slug     *string `json:"slug"`
	IsActive *bool   `json:"isActive"`
}

// resolveSlug prefers an explicit slug and falls back to the name.
func resolveSlug(explicit, name string) string {
	if s := slug.Make(explicit); s != "" {
		return s
	}
	return slug.Make(name)
}

// categoryFilter accepts the numeric display id or the document id.
func categoryFilter(param string) (bson.M, bool) {
	param = strings.TrimSpace(param)
	if n, err := strconv.ParseInt(param, 10, 64); err == nil && n > 0 {
		return bson.M{"id": n}, true
	}
	if oid, err := primitive.ObjectIDFromHex(param); err == nil {
		return bson.M{"_id": oid}, true
	}
	return nil, false
}

/*
GET /admin/categories
- every category, active or not
*/
func GetAllCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/categories"
		defer handlePanic(c, route)

		filter := bson.M{}
		if v := strings.TrimSpace(c.Query("isActive")); v != "" {
			filter["isActive"] = v == "true"
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.CollCategories).
			Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		categories := make([]models.Category, 0)
		if err := cursor.All(ctx, &categories); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": categories})
	}
}

/*
POST /admin/categories
- slug unique, id from the categoryId counter
*/
func CreateCategory(db *mongo.Database, tree cache.CategoryTree) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/categories"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		var req CategoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		slugValue := resolveSlug(req.Slug, name)
		if name == "" || slugValue == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		count, err := db.Collection(database.CollCategories).CountDocuments(ctx, bson.M{"slug": slugValue})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			respondWithError(c, http.StatusConflict, route, "category already exists")
			return
		}

		seq, err := database.NextSequence(ctx, db, database.SeqCategory)
		if err != nil {
			logger.Error().Err(err).Msg("category sequence failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}

		now := time.Now().UTC()
		category := models.Category{
			CategoryID:  seq,
			Name:        name,
			Slug:        slugValue,
			Description: strings.TrimSpace(req.Description),
			ImagePath:   strings.TrimSpace(req.ImagePath),
			IsActive:    isActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		result, err := db.Collection(database.CollCategories).InsertOne(ctx, category)
		if database.IsDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, route, "category already exists")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		category.ID = result.InsertedID.(primitive.ObjectID)

		tree.Invalidate(c.Request.Context())
		logger.Info().Int64("categoryId", seq).Str("slug", slugValue).Msg("category created")
		c.JSON(http.StatusCreated, category)
	}
}

/*
PUT /admin/categories/:id
*/
func UpdateCategory(db *mongo.Database, tree cache.CategoryTree) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/categories/:id"
		defer handlePanic(c, route)

		filter, ok := categoryFilter(c.Param("id"))
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req CategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		update := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if req.Slug != nil {
			s := slug.Make(*req.Slug)
			if s == "" {
				respondWithError(c, http.StatusBadRequest, route, "slug cannot be empty")
				return
			}
			update["slug"] = s
		}
		if req.Description != nil {
			update["description"] = strings.TrimSpace(*req.Description)
		}
		if req.ImagePath != nil {
			update["imagePath"] = strings.TrimSpace(*req.ImagePath)
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}
		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		update["updatedAt"] = time.Now().UTC()

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var updated models.Category
		err := db.Collection(database.CollCategories).
			FindOneAndUpdate(ctx, filter, bson.M{"$set": update},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).
			Decode(&updated)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		case database.IsDuplicateKey(err):
			respondWithError(c, http.StatusConflict, route, "slug already in use")
			return
		case err != nil:
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		tree.Invalidate(c.Request.Context())
		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /admin/categories/:id
- Soft delete
*/
func DeleteCategory(db *mongo.Database, tree cache.CategoryTree) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/categories/:id"
		defer handlePanic(c, route)

		filter, ok := categoryFilter(c.Param("id"))
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection(database.CollCategories).UpdateOne(ctx, filter,
			bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		}

		tree.Invalidate(c.Request.Context())
		c.Status(http.StatusNoContent)
	}
}

/*
POST /admin/categories/:id/subcategories
- subcategoryId from the per-category counter
*/
func CreateSubcategory(db *mongo.Database, tree cache.CategoryTree) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/categories/:id/subcategories"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		filter, ok := categoryFilter(c.Param("id"))
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req SubcategoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		name := strings.TrimSpace(req.Name)
		slugValue := resolveSlug(req.Slug, name)
		if name == "" || slugValue == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var category models.Category
		err := db.Collection(database.CollCategories).FindOne(ctx, filter).Decode(&category)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "category not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		count, err := db.Collection(database.CollSubcategories).CountDocuments(ctx, bson.M{"categoryId": category.CategoryID, "slug": slugValue})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			respondWithError(c, http.StatusConflict, route, "subcategory already exists")
			return
		}

		seq, err := database.NextSequence(ctx, db, database.SubcategorySeq(category.CategoryID))
		if err != nil {
			logger.Error().Err(err).Msg("subcategory sequence failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}
		sub := models.Subcategory{
			SubcategoryID: seq,
			CategoryID:    category.CategoryID,
			Name:          name,
			Slug:          slugValue,
			IsActive:      isActive,
			CreatedAt:     time.Now().UTC(),
		}

		result, err := db.Collection(database.CollSubcategories).InsertOne(ctx, sub)
		if database.IsDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, route, "subcategory already exists")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		sub.ID = result.InsertedID.(primitive.ObjectID)

		tree.Invalidate(c.Request.Context())
		c.JSON(http.StatusCreated, sub)
	}
}

/*
PUT /admin/subcategories/:id
*/
func UpdateSubcategory(db *mongo.Database, tree cache.CategoryTree) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/subcategories/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req SubcategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		update := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			update["name"] = name
		}
		if req.Slug != nil {
			s := slug.Make(*req.Slug)
			if s == "" {
				respondWithError(c, http.StatusBadRequest, route, "slug cannot be empty")
				return
			}
			update["slug"] = s
		}
		if req.IsActive != nil {
			update["isActive"] = *req.IsActive
		}
		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var updated models.Subcategory
		err = db.Collection(database.CollSubcategories).
			FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": update},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).
			Decode(&updated)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			respondWithError(c, http.StatusNotFound, route, "subcategory not found")
			return
		case database.IsDuplicateKey(err):
			respondWithError(c, http.StatusConflict, route, "slug already in use")
			return
		case err != nil:
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		tree.Invalidate(c.Request.Context())
		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /admin/subcategories/:id
- Soft delete
*/
func DeleteSubcategory(db *mongo.Database, tree cache.CategoryTree) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/subcategories/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := db.Collection(database.CollSubcategories).UpdateByID(ctx, id,
			bson.M{"$set": bson.M{"isActive": false}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "subcategory not found")
			return
		}

		tree.Invalidate(c.Request.Context())
		c.Status(http.StatusNoContent)
	}
}
