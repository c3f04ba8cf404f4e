package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Context keys set by the auth middlewares.
const (
	ClaimsKey = "claims"
	UserIDKey = "userId"
	EmailKey  = "email"
	RoleKey   = "role"
)

var errInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller.
type Identity struct {
	UserID primitive.ObjectID
	Email  string
	Role   string
}

// CurrentIdentity returns what AuthGuard or UserAuth stored on the context.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	id, ok := c.Get(UserIDKey)
	if !ok {
		return Identity{}, false
	}
	userID, ok := id.(primitive.ObjectID)
	if !ok {
		return Identity{}, false
	}
	return Identity{UserID: userID, Email: c.GetString(EmailKey), Role: c.GetString(RoleKey)}, true
}

func bearerClaims(c *gin.Context, secret string) (jwt.MapClaims, string, error) {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if raw == "" {
		return nil, "missing token", errInvalidToken
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, "invalid token", errInvalidToken
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		if err == nil {
			err = errInvalidToken
		}
		return nil, "unauthorized", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "unauthorized", errInvalidToken
	}
	return claims, "", nil
}

// bind validates the identity claims and stores them on the context.
func bind(c *gin.Context, claims jwt.MapClaims) bool {
	userIDValue, _ := claims["userId"].(string)
	userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(userIDValue))
	if err != nil {
		return false
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	c.Set(ClaimsKey, claims)
	c.Set(UserIDKey, userID)
	c.Set(EmailKey, strings.ToLower(strings.TrimSpace(email)))
	c.Set(RoleKey, role)
	return true
}

// AuthGuard accepts a valid bearer token whose role is one of allowedRoles.
// No roles means any authenticated caller.
func AuthGuard(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zerolog.Ctx(c.Request.Context())

		claims, msg, err := bearerClaims(c, secret)
		if err != nil {
			logger.Warn().Err(err).Str("path", c.FullPath()).Msg("auth rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		if !bind(c, claims) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if len(allowedRoles) > 0 {
			role := c.GetString(RoleKey)
			match := false
			for _, r := range allowedRoles {
				if role == r {
					match = true
					break
				}
			}
			if !match {
				logger.Warn().Str("role", role).Str("path", c.FullPath()).Msg("role not allowed")
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		c.Next()
	}
}

func AdminAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret, "admin")
}
