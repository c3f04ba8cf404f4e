package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"b2bmarket/internal/database"
	"b2bmarket/internal/models"
	"b2bmarket/internal/reports"
	"b2bmarket/internal/sourcing"
	"b2bmarket/internal/workflow"
)

const noRequirementsMessage = "No requirements found for the provided email and status"

type requirementRequest struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Mobile        string `json:"mobile" binding:"omitempty,mobile"`
	Pincode       string `json:"pincode" binding:"omitempty,pincode"`
	UserType      string `json:"userType" binding:"omitempty,usertype"`
	PID           string `json:"pid"`
	ProductName   string `json:"productName"`
	MinQty        int    `json:"minQty" binding:"required,gt=0"`
	Measurement   string `json:"measurement" binding:"required"`
	Specification string `json:"specification"`
}

type requirementsByEmailRequest struct {
	Email  string `json:"email" form:"email"`
	Status string `json:"status" form:"status"`
}

type requirementStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

/*
POST /api/v1/requirements
*/
func CreateRequirement(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /requirements"
		defer handlePanic(c, route)

		var req requirementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		created, err := svc.CreateRequirement(ctx, sourcing.RequirementInput{
			Name:          req.Name,
			Email:         req.Email,
			Mobile:        req.Mobile,
			Pincode:       req.Pincode,
			UserType:      req.UserType,
			PID:           req.PID,
			ProductName:   req.ProductName,
			MinQty:        req.MinQty,
			Measurement:   req.Measurement,
			Specification: req.Specification,
		})
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		routeLogger(c, route).Info().Str("reqId", created.ReqID).Msg("requirement created")
		c.JSON(http.StatusCreated, gin.H{"message": "Requirement submitted successfully", "data": created})
	}
}

/*
GET|POST /api/v1/requirementsByEmail
- GET reads query params, POST reads the JSON body
*/
func RequirementsByEmail(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "requirementsByEmail"
		defer handlePanic(c, route)

		var req requirementsByEmailRequest
		var err error
		if c.Request.Method == http.MethodPost {
			err = c.ShouldBindJSON(&req)
		} else {
			err = c.ShouldBindQuery(&req)
		}
		if err != nil {
			respondValidationError(c, err)
			return
		}

		email := normalizeEmail(req.Email)
		if email == "" {
			respondWithError(c, http.StatusBadRequest, route, "email is required")
			return
		}

		filter := bson.M{"email": email}
		if status := strings.TrimSpace(req.Status); status != "" {
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.CollRequirements).Find(ctx, filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			routeLogger(c, route).Error().Err(err).Msg("requirements query failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		var requirements []models.Requirement
		if err := cursor.All(ctx, &requirements); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if len(requirements) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"message": noRequirementsMessage})
			return
		}

		c.JSON(http.StatusOK, requirements)
	}
}

/*
GET /api/v1/requirements/:reqId
*/
func GetRequirement(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /requirements/:reqId"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		req, err := svc.Requirement(ctx, c.Param("reqId"), actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, req)
	}
}

/* =========================
   ADMIN
========================= */

func requirementStatusFilter(raw string) (bson.M, error) {
	filter := bson.M{}
	if raw = strings.TrimSpace(raw); raw != "" {
		status, err := workflow.ParseRequirementStatus(raw)
		if err != nil {
			return nil, err
		}
		filter["status"] = status
	}
	return filter, nil
}

/*
GET /api/v1/admin/requirements
*/
func AdminListRequirements(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/requirements"
		defer handlePanic(c, route)
		logger := routeLogger(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter, err := requirementStatusFilter(c.Query("status"))
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		coll := db.Collection(database.CollRequirements)
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			logger.Error().Err(err).Msg("count failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := applyPage(options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}), page, limit)
		cursor, err := coll.Find(ctx, filter, opts)
		if err != nil {
			logger.Error().Err(err).Msg("find failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		requirements := []models.Requirement{}
		if err := cursor.All(ctx, &requirements); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       requirements,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

/*
PATCH /api/v1/admin/requirements/:reqId/status
*/
func UpdateRequirementStatus(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /admin/requirements/:reqId/status"
		defer handlePanic(c, route)

		var req requirementStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		updated, err := svc.UpdateRequirementStatus(ctx, c.Param("reqId"), strings.TrimSpace(req.Status))
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		routeLogger(c, route).Info().Str("reqId", updated.ReqID).Str("status", string(updated.Status)).Msg("requirement status updated")
		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /api/v1/admin/requirements/:reqId
- hard delete
*/
func DeleteRequirement(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/requirements/:reqId"
		defer handlePanic(c, route)

		reqID := strings.TrimSpace(c.Param("reqId"))
		if reqID == "" {
			respondWithError(c, http.StatusBadRequest, route, "reqId is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		res, err := db.Collection(database.CollRequirements).DeleteOne(ctx, bson.M{"reqId": reqID})
		if err != nil {
			routeLogger(c, route).Error().Err(err).Msg("delete failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "requirement not found")
			return
		}

		routeLogger(c, route).Info().Str("reqId", reqID).Msg("requirement deleted")
		c.JSON(http.StatusOK, gin.H{"message": "requirement deleted"})
	}
}

/*
GET /api/v1/admin/requirements/export
*/
func ExportRequirements(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/requirements/export"
		defer handlePanic(c, route)

		filter, err := requirementStatusFilter(c.Query("status"))
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 4*requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.CollRequirements).Find(ctx, filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
		if err != nil {
			routeLogger(c, route).Error().Err(err).Msg("export query failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		var requirements []models.Requirement
		if err := cursor.All(ctx, &requirements); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		filename := fmt.Sprintf("requirements-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Status(http.StatusOK)
		if err := reports.WriteRequirementsXLSX(c.Writer, requirements); err != nil {
			routeLogger(c, route).Error().Err(err).Msg("xlsx write failed")
			return
		}
		routeLogger(c, route).Info().Int("rows", len(requirements)).Msg("requirements exported")
	}
}
