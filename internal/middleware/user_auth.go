package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// UserAuth validates user JWT tokens and injects userId, email and role into the context.
func UserAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zerolog.Ctx(c.Request.Context())

		claims, msg, err := bearerClaims(c, secret)
		if err != nil {
			logger.Warn().Err(err).Msg("user token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		if !bind(c, claims) {
			logger.Warn().Msg("userId claim missing or invalid")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		logger.Debug().Str("role", c.GetString(RoleKey)).Msg("user token validated")
		c.Next()
	}
}
