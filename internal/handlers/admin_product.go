package handlers

import (
	"context"
	"errors"
	"fmt"
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
	"b2bmarket/internal/ids"
	"b2bmarket/internal/models"
	"b2bmarket/internal/slug"
)

/* =======================
   HELPERS
======================= */

// ensureSubcategory checks that the subcategory exists under the category.
func ensureSubcategory(ctx context.Context, db *mongo.Database, categoryID, subcategoryID int64) error {
	count, err := db.Collection(database.CollCategories).CountDocuments(ctx, bson.M{"id": categoryID})
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("category not found: %d", categoryID)
	}
	count, err = db.Collection(database.CollSubcategories).CountDocuments(ctx, bson.M{
		"categoryId":    categoryID,
		"subcategoryId": subcategoryID,
	})
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("subcategory %d not found in category %d", subcategoryID, categoryID)
	}
	return nil
}

func productFilter(param string) (bson.M, bool) {
	param = strings.TrimSpace(param)
	if oid, err := primitive.ObjectIDFromHex(param); err == nil {
		return bson.M{"_id": oid}, true
	}
	if strings.HasPrefix(param, "PID") {
		return bson.M{"pid": param}, true
	}
	return nil, false
}

/* =======================
   GET (ADMIN) – LIST
======================= */

func GetAllProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{"isDeleted": bson.M{"$ne": true}}
		if v := strings.TrimSpace(c.Query("categoryId")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				filter["categoryId"] = n
			}
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			pattern := regexQuote(search)
			filter["$or"] = []bson.M{
				{"name": bson.M{"$regex": pattern, "$options": "i"}},
				{"pid": bson.M{"$regex": pattern, "$options": "i"}},
				{"description": bson.M{"$regex": pattern, "$options": "i"}},
				{"tags": bson.M{"$regex": pattern, "$options": "i"}},
			}
		}
		if isActive := strings.TrimSpace(c.Query("isActive")); isActive != "" {
			filter["isActive"] = strings.EqualFold(isActive, "true")
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := db.Collection(database.CollProducts).CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := applyPage(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}), page, limit)
		cursor, err := db.Collection(database.CollProducts).Find(ctx, filter, opts)
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

		c.JSON(http.StatusOK, gin.H{
			"data":       products,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

/* =======================
   CREATE (MULTIPART)
======================= */

func CreateProduct(db *mongo.Database, tree cache.CategoryTree, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/products"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		if !strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
			respondWithError(c, http.StatusUnsupportedMediaType, route, "multipart/form-data required")
			return
		}

		input, err := parseMultipartProductRequest(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		slugValue := resolveSlug(input.Slug, input.Name)
		switch {
		case input.Name == "" || slugValue == "":
			respondWithError(c, http.StatusBadRequest, route, "name is required")
			return
		case !input.CategoryIDSet || !input.SubcategoryIDSet:
			respondWithError(c, http.StatusBadRequest, route, "categoryId and subcategoryId are required")
			return
		}
		if err := validatePriceRange(input.PriceMin, input.PriceMax); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := ensureSubcategory(ctx, db, input.CategoryID, input.SubcategoryID); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		count, err := db.Collection(database.CollProducts).CountDocuments(ctx, bson.M{"slug": slugValue})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			respondWithError(c, http.StatusConflict, route, "product slug already exists")
			return
		}

		seq, err := database.NextSequence(ctx, db, database.SeqProduct)
		if err != nil {
			logger.Error().Err(err).Msg("product sequence failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		imagePath := ""
		if input.Image != nil {
			if imagePath, err = saveImage(uploadDir, input.Image); err != nil {
				logger.Error().Err(err).Msg("image save failed")
				respondWithError(c, http.StatusInternalServerError, route, "image upload failed")
				return
			}
		}

		isActive := true
		if input.IsActiveSet {
			isActive = input.IsActive
		}
		tags := input.Tags
		if tags == nil {
			tags = []string{}
		}

		now := time.Now().UTC()
		product := models.Product{
			PID:           ids.ProductID(seq),
			Name:          input.Name,
			Slug:          slugValue,
			CategoryID:    input.CategoryID,
			SubcategoryID: input.SubcategoryID,
			Description:   input.Description,
			Measurement:   input.Measurement,
			MinQty:        input.MinQty,
			PriceMin:      input.PriceMin,
			PriceMax:      input.PriceMax,
			Tags:          tags,
			ImagePath:     imagePath,
			IsActive:      isActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		result, err := db.Collection(database.CollProducts).InsertOne(ctx, product)
		if err != nil {
			if cleanupErr := safeDeleteUpload(uploadDir, imagePath); cleanupErr != nil {
				logger.Warn().Err(cleanupErr).Msg("orphan image cleanup failed")
			}
			if database.IsDuplicateKey(err) {
				respondWithError(c, http.StatusConflict, route, "product slug already exists")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		product.ID = result.InsertedID.(primitive.ObjectID)
		product.PriceLabel = priceLabel(product.PriceMin, product.PriceMax)

		tree.Invalidate(c.Request.Context())
		logger.Info().Str("pid", product.PID).Str("slug", product.Slug).Msg("product created")
		c.JSON(http.StatusCreated, product)
	}
}

/* =======================
   UPDATE (MULTIPART, PARTIAL)
======================= */

func UpdateProduct(db *mongo.Database, tree cache.CategoryTree, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/products/:id"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		filter, ok := productFilter(c.Param("id"))
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}
		if !strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
			respondWithError(c, http.StatusUnsupportedMediaType, route, "multipart/form-data required")
			return
		}

		input, err := parseMultipartProductRequest(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		filter["isDeleted"] = bson.M{"$ne": true}
		var existing models.Product
		err = db.Collection(database.CollProducts).FindOne(ctx, filter).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		update := bson.M{}
		if input.NameSet {
			if input.Name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			update["name"] = input.Name
		}
		if input.SlugSet {
			s := slug.Make(input.Slug)
			if s == "" {
				respondWithError(c, http.StatusBadRequest, route, "slug cannot be empty")
				return
			}
			update["slug"] = s
		}
		if input.DescriptionSet {
			update["description"] = input.Description
		}
		if input.MeasurementSet {
			update["measurement"] = input.Measurement
		}
		if input.MinQtySet {
			update["minQty"] = input.MinQty
		}
		if input.TagsSet {
			update["tags"] = input.Tags
		}
		if input.IsActiveSet {
			update["isActive"] = input.IsActive
		}

		if input.CategoryIDSet || input.SubcategoryIDSet {
			categoryID, subcategoryID := existing.CategoryID, existing.SubcategoryID
			if input.CategoryIDSet {
				categoryID = input.CategoryID
			}
			if input.SubcategoryIDSet {
				subcategoryID = input.SubcategoryID
			}
			if err := ensureSubcategory(ctx, db, categoryID, subcategoryID); err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			update["categoryId"] = categoryID
			update["subcategoryId"] = subcategoryID
		}

		var priceInput priceRangeInput
		if input.PriceMinSet {
			priceInput.Min = &input.PriceMin
		}
		if input.PriceMaxSet {
			priceInput.Max = &input.PriceMax
		}
		if priceInput.Min != nil || priceInput.Max != nil {
			min, max, err := resolvePriceRange(existing.PriceMin, existing.PriceMax, priceInput)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			update["priceMin"] = min
			update["priceMax"] = max
		}

		oldImage := ""
		if input.Image != nil {
			imagePath, err := saveImage(uploadDir, input.Image)
			if err != nil {
				logger.Error().Err(err).Msg("image save failed")
				respondWithError(c, http.StatusInternalServerError, route, "image upload failed")
				return
			}
			update["imagePath"] = imagePath
			oldImage = existing.ImagePath
		} else if input.RemoveImage {
			update["imagePath"] = ""
			oldImage = existing.ImagePath
		}

		if len(update) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		update["updatedAt"] = time.Now().UTC()

		var updated models.Product
		err = db.Collection(database.CollProducts).FindOneAndUpdate(ctx,
			bson.M{"_id": existing.ID},
			bson.M{"$set": update},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err != nil {
			if newImage, ok := update["imagePath"].(string); ok && newImage != "" {
				_ = safeDeleteUpload(uploadDir, newImage)
			}
			if database.IsDuplicateKey(err) {
				respondWithError(c, http.StatusConflict, route, "product slug already exists")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if oldImage != "" {
			if err := safeDeleteUpload(uploadDir, oldImage); err != nil {
				logger.Warn().Err(err).Str("path", oldImage).Msg("old image delete failed")
			}
		}

		updated.PriceLabel = priceLabel(updated.PriceMin, updated.PriceMax)
		tree.Invalidate(c.Request.Context())
		c.JSON(http.StatusOK, updated)
	}
}

/* =======================
   DELETE (SOFT)
======================= */

func DeleteProduct(db *mongo.Database, tree cache.CategoryTree) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/products/:id"
		defer handlePanic(c, route)

		filter, ok := productFilter(c.Param("id"))
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}
		filter["isDeleted"] = bson.M{"$ne": true}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		now := time.Now().UTC()
		result, err := db.Collection(database.CollProducts).UpdateOne(ctx, filter, bson.M{"$set": bson.M{
			"isDeleted": true,
			"isActive":  false,
			"deletedAt": now,
			"updatedAt": now,
		}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		tree.Invalidate(c.Request.Context())
		c.Status(http.StatusNoContent)
	}
}
