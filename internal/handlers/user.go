package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"b2bmarket/internal/database"
	"b2bmarket/internal/middleware"
	"b2bmarket/internal/models"
)

type addressRequest struct {
	Title     string `json:"title" binding:"required"`
	Detail    string `json:"detail" binding:"required"`
	Pincode   string `json:"pincode" binding:"omitempty,pincode"`
	Note      string `json:"note"`
	IsDefault bool   `json:"isDefault"`
}

type profileRequest struct {
	Name        *string `json:"name"`
	Mobile      *string `json:"mobile" binding:"omitempty,mobile"`
	CompanyName *string `json:"companyName"`
	GSTNumber   *string `json:"gstNumber" binding:"omitempty,gstin"`
	Pincode     *string `json:"pincode" binding:"omitempty,pincode"`
}

// currentUser loads the authenticated user. It writes the error response and
// returns false when that is not possible.
func currentUser(ctx context.Context, c *gin.Context, db *mongo.Database, route string) (models.User, bool) {
	var user models.User
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
		return user, false
	}

	err := db.Collection(database.CollUsers).FindOne(ctx, bson.M{"_id": identity.UserID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respondWithError(c, http.StatusNotFound, route, "user not found")
		return user, false
	}
	if err != nil {
		routeLogger(c, route).Error().Err(err).Msg("user lookup failed")
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return user, false
	}
	return user, true
}

func GetMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, ok := currentUser(ctx, c, db, route)
		if !ok {
			return
		}
		if user.Addresses == nil {
			user.Addresses = []models.Address{}
		}

		c.JSON(http.StatusOK, user)
	}
}

/*
PUT /api/v1/profile
- only provided fields change
*/
func UpdateProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /profile"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		var req profileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		set := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			set["name"] = name
		}
		if req.Mobile != nil {
			set["mobile"] = strings.TrimSpace(*req.Mobile)
		}
		if req.CompanyName != nil {
			set["companyName"] = strings.TrimSpace(*req.CompanyName)
		}
		if req.GSTNumber != nil {
			set["gstNumber"] = strings.ToUpper(strings.TrimSpace(*req.GSTNumber))
		}
		if req.Pincode != nil {
			set["pincode"] = strings.TrimSpace(*req.Pincode)
		}
		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}
		set["updatedAt"] = time.Now().UTC()

		identity, ok := middleware.CurrentIdentity(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var user models.User
		err := db.Collection(database.CollUsers).FindOneAndUpdate(
			ctx,
			bson.M{"_id": identity.UserID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("profile update failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.Info().Str("userId", user.ID.Hex()).Msg("profile updated")
		c.JSON(http.StatusOK, user)
	}
}

/* =========================
   ADDRESSES
========================= */

func GetUserAddresses(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /user/addresses"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, ok := currentUser(ctx, c, db, route)
		if !ok {
			return
		}
		if user.Addresses == nil {
			user.Addresses = []models.Address{}
		}

		c.JSON(http.StatusOK, gin.H{"addresses": user.Addresses})
	}
}

func CreateUserAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /user/addresses"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, ok := currentUser(ctx, c, db, route)
		if !ok {
			return
		}

		// the first address is the default one
		isDefault := req.IsDefault || len(user.Addresses) == 0
		if isDefault {
			for i := range user.Addresses {
				user.Addresses[i].IsDefault = false
			}
		}

		address := models.Address{
			ID:        uuid.NewString(),
			Title:     strings.TrimSpace(req.Title),
			Detail:    strings.TrimSpace(req.Detail),
			Pincode:   strings.TrimSpace(req.Pincode),
			Note:      strings.TrimSpace(req.Note),
			IsDefault: isDefault,
		}
		user.Addresses = append(user.Addresses, address)

		if err := saveAddresses(ctx, db, user); err != nil {
			logger.Error().Err(err).Msg("insert address failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.Info().Str("addressId", address.ID).Msg("address created")
		c.JSON(http.StatusCreated, gin.H{"address": address})
	}
}

func UpdateUserAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /user/addresses/:id"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		addressID := strings.TrimSpace(c.Param("id"))
		if addressID == "" {
			respondWithError(c, http.StatusBadRequest, route, "invalid address id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, ok := currentUser(ctx, c, db, route)
		if !ok {
			return
		}

		index := findAddress(user.Addresses, addressID)
		if index == -1 {
			respondWithError(c, http.StatusNotFound, route, "address not found")
			return
		}

		if req.IsDefault {
			for i := range user.Addresses {
				user.Addresses[i].IsDefault = false
			}
		}

		user.Addresses[index].Title = strings.TrimSpace(req.Title)
		user.Addresses[index].Detail = strings.TrimSpace(req.Detail)
		user.Addresses[index].Pincode = strings.TrimSpace(req.Pincode)
		user.Addresses[index].Note = strings.TrimSpace(req.Note)
		user.Addresses[index].IsDefault = req.IsDefault || user.Addresses[index].IsDefault

		if err := saveAddresses(ctx, db, user); err != nil {
			logger.Error().Err(err).Msg("update address failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.Info().Str("addressId", addressID).Msg("address updated")
		c.JSON(http.StatusOK, gin.H{"address": user.Addresses[index]})
	}
}

func DeleteUserAddress(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /user/addresses/:id"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		addressID := strings.TrimSpace(c.Param("id"))
		if addressID == "" {
			respondWithError(c, http.StatusBadRequest, route, "invalid address id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, ok := currentUser(ctx, c, db, route)
		if !ok {
			return
		}

		index := findAddress(user.Addresses, addressID)
		if index == -1 {
			respondWithError(c, http.StatusNotFound, route, "address not found")
			return
		}

		removedDefault := user.Addresses[index].IsDefault
		user.Addresses = append(user.Addresses[:index], user.Addresses[index+1:]...)
		if removedDefault && len(user.Addresses) > 0 {
			user.Addresses[0].IsDefault = true
		}

		if err := saveAddresses(ctx, db, user); err != nil {
			logger.Error().Err(err).Msg("delete address failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		logger.Info().Str("addressId", addressID).Msg("address deleted")
		c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
	}
}

func findAddress(addresses []models.Address, id string) int {
	for i, addr := range addresses {
		if addr.ID == id {
			return i
		}
	}
	return -1
}

func saveAddresses(ctx context.Context, db *mongo.Database, user models.User) error {
	if user.Addresses == nil {
		user.Addresses = []models.Address{}
	}
	_, err := db.Collection(database.CollUsers).UpdateByID(ctx, user.ID, bson.M{
		"$set": bson.M{
			"addresses": user.Addresses,
			"updatedAt": time.Now().UTC(),
		},
	})
	return err
}
