package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"b2bmarket/internal/database"
	"b2bmarket/internal/models"
)

// TokenConfig carries the signing secret and lifetimes for issued tokens.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type RegisterRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Mobile      string `json:"mobile" binding:"required,mobile"`
	Role        string `json:"role" binding:"required,usertype"`
	CompanyName string `json:"companyName"`
	GSTNumber   string `json:"gstNumber" binding:"omitempty,gstin"`
	Pincode     string `json:"pincode" binding:"omitempty,pincode"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type LoginResponseUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	CompanyName string `json:"companyName,omitempty"`
}

func responseUser(u models.User) LoginResponseUser {
	return LoginResponseUser{
		ID:          u.ID.Hex(),
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		CompanyName: u.CompanyName,
	}
}

/*
POST /api/v1/auth/register
*/
func Register(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := normalizeEmail(req.Email)
		name := strings.TrimSpace(req.Name)
		if email == "" || name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name and email are required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		count, err := db.Collection(database.CollUsers).CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			logger.Error().Err(err).Msg("register lookup failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			respondWithError(c, http.StatusConflict, route, "email already registered")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error().Err(err).Msg("password hash failed")
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		now := time.Now().UTC()
		user := models.User{
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
			Mobile:       strings.TrimSpace(req.Mobile),
			Role:         req.Role,
			CompanyName:  strings.TrimSpace(req.CompanyName),
			GSTNumber:    strings.ToUpper(strings.TrimSpace(req.GSTNumber)),
			Pincode:      strings.TrimSpace(req.Pincode),
			Addresses:    []models.Address{},
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		res, err := db.Collection(database.CollUsers).InsertOne(ctx, user)
		if database.IsDuplicateKey(err) {
			respondWithError(c, http.StatusConflict, route, "email already registered")
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("register insert failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		user.ID = res.InsertedID.(primitive.ObjectID)

		issued, err := issueTokens(ctx, db, user, tokens)
		if err != nil {
			logger.Error().Err(err).Msg("token generation failed")
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		logger.Info().Str("email", email).Str("role", user.Role).Msg("user registered")
		c.JSON(http.StatusCreated, gin.H{
			"accessToken":  issued.AccessToken,
			"refreshToken": issued.RefreshToken,
			"expiresIn":    issued.ExpiresIn,
			"user":         responseUser(user),
		})
	}
}

/*
POST /api/v1/auth/login
*/
func Login(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return loginHandler(db, tokens, "POST /auth/login", "")
}

/*
POST /api/v1/admin/login
*/
func AdminLogin(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return loginHandler(db, tokens, "POST /admin/login", models.RoleAdmin)
}

func loginHandler(db *mongo.Database, tokens TokenConfig, route, requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := normalizeEmail(req.Email)
		if email == "" || strings.TrimSpace(req.Password) == "" {
			respondWithError(c, http.StatusBadRequest, route, "email and password are required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		filter := bson.M{"email": email}
		if requiredRole != "" {
			filter["role"] = requiredRole
		}

		var user models.User
		err := db.Collection(database.CollUsers).FindOne(ctx, filter).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("login lookup failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}
		if !user.IsActive {
			respondWithError(c, http.StatusForbidden, route, "user is inactive")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens)
		if err != nil {
			logger.Error().Err(err).Msg("token generation failed")
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		logger.Info().Str("email", user.Email).Str("role", user.Role).Msg("login succeeded")
		c.JSON(http.StatusOK, gin.H{
			"accessToken":  issued.AccessToken,
			"refreshToken": issued.RefreshToken,
			"expiresIn":    issued.ExpiresIn,
			"user":         responseUser(user),
		})
	}
}

/*
POST /api/v1/auth/refresh
- rotates the refresh token
*/
func Refresh(db *mongo.Database, tokens TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		plain := strings.TrimSpace(req.RefreshToken)
		if plain == "" {
			respondWithError(c, http.StatusBadRequest, route, "refreshToken is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		coll := db.Collection(database.CollRefreshTokens)
		var token models.RefreshToken
		if err := coll.FindOne(ctx, bson.M{
			"tokenHash": hashToken(plain),
			"revoked":   false,
		}).Decode(&token); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}

		if time.Now().After(token.ExpiresAt) {
			_, _ = coll.UpdateByID(ctx, token.ID, bson.M{"$set": bson.M{"revoked": true}})
			respondWithError(c, http.StatusUnauthorized, route, "refresh token expired")
			return
		}

		var user models.User
		if err := db.Collection(database.CollUsers).FindOne(ctx, bson.M{"_id": token.UserID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "user not found")
			return
		}
		if !user.IsActive {
			respondWithError(c, http.StatusForbidden, route, "user is inactive")
			return
		}

		issued, err := issueTokens(ctx, db, user, tokens)
		if err != nil {
			logger.Error().Err(err).Msg("token generation failed")
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		if _, err := coll.UpdateByID(ctx, token.ID, bson.M{
			"$set": bson.M{
				"revoked":    true,
				"replacedBy": issued.RefreshTokenID,
			},
		}); err != nil {
			logger.Warn().Err(err).Msg("old refresh token not revoked")
		}

		c.JSON(http.StatusOK, gin.H{
			"accessToken":  issued.AccessToken,
			"refreshToken": issued.RefreshToken,
			"expiresIn":    issued.ExpiresIn,
			"user":         responseUser(user),
		})
	}
}

/*
POST /api/v1/auth/logout
*/
func Logout(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		plain := strings.TrimSpace(req.RefreshToken)
		if plain == "" {
			respondWithError(c, http.StatusBadRequest, route, "refreshToken is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.CollRefreshTokens).UpdateOne(ctx, bson.M{
			"tokenHash": hashToken(plain),
			"revoked":   false,
		}, bson.M{"$set": bson.M{"revoked": true}})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusUnauthorized, route, "invalid refresh token")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

type issuedTokens struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID primitive.ObjectID
	ExpiresIn      int64
}

func signAccessToken(user models.User, cfg TokenConfig, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userId": user.ID.Hex(),
		"email":  user.Email,
		"role":   user.Role,
		"iat":    now.Unix(),
		"exp":    now.Add(cfg.AccessTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

func issueTokens(ctx context.Context, db *mongo.Database, user models.User, cfg TokenConfig) (*issuedTokens, error) {
	now := time.Now()
	accessToken, err := signAccessToken(user, cfg, now)
	if err != nil {
		return nil, err
	}

	plainRefresh, err := generateRefreshString()
	if err != nil {
		return nil, err
	}

	refresh := models.RefreshToken{
		UserID:    user.ID,
		Role:      user.Role,
		TokenHash: hashToken(plainRefresh),
		ExpiresAt: now.Add(cfg.RefreshTTL),
		CreatedAt: now,
	}

	res, err := db.Collection(database.CollRefreshTokens).InsertOne(ctx, refresh)
	if err != nil {
		return nil, err
	}

	refreshID, _ := res.InsertedID.(primitive.ObjectID)
	return &issuedTokens{
		AccessToken:    accessToken,
		RefreshToken:   plainRefresh,
		RefreshTokenID: refreshID,
		ExpiresIn:      int64(cfg.AccessTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
