package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"b2bmarket/internal/apperr"
	"b2bmarket/internal/database"
	"b2bmarket/internal/middleware"
	"b2bmarket/internal/sourcing"
)

const requestTimeout = 5 * time.Second

// routeLogger is the request logger tagged with the handler's route.
func routeLogger(c *gin.Context, route string) *zerolog.Logger {
	logger := zerolog.Ctx(c.Request.Context()).With().Str("route", route).Logger()
	return &logger
}

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		routeLogger(c, route).Error().Interface("panic", r).Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, db *mongo.Database) error {
	return database.Ping(ctx, db)
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	routeLogger(c, route).Warn().Int("status", status).Msg(message)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondAppError maps err through apperr. Internal causes are logged and
// never echoed to the client.
func respondAppError(c *gin.Context, route string, err error) {
	status := apperr.Status(err)
	logger := routeLogger(c, route)

	typed := apperr.As(err)
	if typed == nil {
		logger.Error().Err(err).Msg("unhandled error")
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error", "code": apperr.CodeInternal})
		return
	}
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg(typed.Message())
	} else {
		logger.Warn().Str("code", string(typed.Code())).Int("status", status).Msg(typed.Message())
	}
	c.AbortWithStatusJSON(status, gin.H{"error": typed.Message(), "code": typed.Code()})
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"code":    apperr.CodeValidation,
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body", "code": apperr.CodeValidation, "details": err.Error()})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// actorFrom turns the authenticated identity into the caller the sourcing
// service authorizes against.
func actorFrom(c *gin.Context) (sourcing.Actor, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return sourcing.Actor{}, false
	}
	return sourcing.Actor{Email: id.Email, Role: id.Role}, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
