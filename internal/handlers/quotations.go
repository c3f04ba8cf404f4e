package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"b2bmarket/internal/database"
	"b2bmarket/internal/models"
	"b2bmarket/internal/sourcing"
	"b2bmarket/internal/workflow"
)

type quotationRequest struct {
	RequirementID string   `json:"requirementId" binding:"required"`
	PID           string   `json:"pid"`
	Sellers       []string `json:"sellers" binding:"required,min=1,dive,required,email"`
}

type sellerQuoteRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Description string  `json:"description"`
}

// sellerQuotationView is one seller's entry flattened with its quotation.
type sellerQuotationView struct {
	RequirementID string                     `bson:"requirementId" json:"requirementId"`
	PID           string                     `bson:"pid,omitempty" json:"pid,omitempty"`
	Status        workflow.SellerQuoteStatus `bson:"status" json:"status"`
	Amount        float64                    `bson:"amount" json:"amount"`
	Description   string                     `bson:"description,omitempty" json:"description,omitempty"`
	QuotedAt      *time.Time                 `bson:"quotedAt,omitempty" json:"quotedAt,omitempty"`
	CreatedAt     time.Time                  `bson:"createdAt" json:"createdAt"`
}

/*
POST /api/v1/quotations
*/
func CreateQuotation(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /quotations"
		defer handlePanic(c, route)

		var req quotationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		q, err := svc.CreateQuotation(ctx, sourcing.QuotationInput{
			RequirementID: req.RequirementID,
			PID:           req.PID,
			Sellers:       req.Sellers,
		})
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		routeLogger(c, route).Info().
			Str("requirementId", q.RequirementID).
			Int("sellers", len(q.SelectedCompanies)).
			Msg("quotation created")
		c.JSON(http.StatusCreated, q)
	}
}

/*
GET /api/v1/quotations/:requirementId
- sellers only see their own entry
*/
func GetQuotation(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /quotations/:requirementId"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		q, err := svc.Quotation(ctx, c.Param("requirementId"), actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

/*
GET /api/v1/seller/quotations
- entries addressed to the calling seller
*/
func SellerQuotations(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /seller/quotations"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		entryMatch := bson.M{"selectedCompanies.email": normalizeEmail(actor.Email)}
		if raw := strings.TrimSpace(c.Query("status")); raw != "" {
			status := workflow.SellerQuoteStatus(raw)
			if status != workflow.SellerQuotePending && status != workflow.SellerQuoteQuoted {
				respondWithError(c, http.StatusBadRequest, route, "invalid status")
				return
			}
			entryMatch["selectedCompanies.status"] = status
		}

		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"selectedCompanies.email": normalizeEmail(actor.Email)}}},
			{{Key: "$unwind", Value: "$selectedCompanies"}},
			{{Key: "$match", Value: entryMatch}},
			{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
			{{Key: "$project", Value: bson.M{
				"_id":           0,
				"requirementId": 1,
				"pid":           1,
				"createdAt":     1,
				"status":        "$selectedCompanies.status",
				"amount":        "$selectedCompanies.amount",
				"description":   "$selectedCompanies.description",
				"quotedAt":      "$selectedCompanies.quotedAt",
			}}},
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.CollQuotations).Aggregate(ctx, pipeline)
		if err != nil {
			routeLogger(c, route).Error().Err(err).Msg("seller quotations query failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		entries := []sellerQuotationView{}
		if err := cursor.All(ctx, &entries); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": entries})
	}
}

/*
PUT /api/v1/seller/quotations/:requirementId
*/
func SubmitSellerQuote(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /seller/quotations/:requirementId"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req sellerQuoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		q, err := svc.SubmitSellerQuote(ctx, c.Param("requirementId"), actor.Email, req.Amount, strings.TrimSpace(req.Description))
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		routeLogger(c, route).Info().Str("requirementId", q.RequirementID).Str("seller", actor.Email).Msg("seller quote submitted")
		c.JSON(http.StatusOK, q)
	}
}

/* =========================
   QUOTAS
========================= */

type quotaRequest struct {
	ReqID       string   `json:"reqId" binding:"required"`
	SellerEmail string   `json:"seller_email" binding:"required,email"`
	Amount      float64  `json:"amount" binding:"required,gt=0"`
	Commission  *float64 `json:"commission"`
	Quantity    int      `json:"quantity" binding:"omitempty,gt=0"`
}

func (r quotaRequest) commission() string {
	if r.Commission == nil {
		return ""
	}
	return strconv.FormatFloat(*r.Commission, 'f', -1, 64)
}

/*
POST /api/v1/quotaRequirement
*/
func CreateQuota(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /quotaRequirement"
		defer handlePanic(c, route)

		var req quotaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		quota, err := svc.CreateQuota(ctx, sourcing.QuotaInput{
			ReqID:       req.ReqID,
			SellerEmail: req.SellerEmail,
			Amount:      req.Amount,
			Commission:  req.commission(),
			Quantity:    req.Quantity,
		})
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		routeLogger(c, route).Info().Str("quotaId", quota.ID.Hex()).Str("reqId", quota.ReqID).Msg("quota created")
		c.JSON(http.StatusCreated, quota)
	}
}

// quotaScope narrows a quota query to what the caller may see.
func quotaScope(actor sourcing.Actor, buyerEmail string) bson.M {
	filter := bson.M{}
	switch actor.Role {
	case models.RoleAdmin:
		if buyerEmail != "" {
			filter["buyer_email"] = buyerEmail
		}
	case models.RoleSeller:
		filter["seller_email"] = normalizeEmail(actor.Email)
	default:
		filter["buyer_email"] = normalizeEmail(actor.Email)
	}
	return filter
}

/*
GET /api/v1/quotaRequirement
*/
func ListQuotas(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /quotaRequirement"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		filter := quotaScope(actor, normalizeEmail(c.Query("buyer_email")))
		if raw := strings.TrimSpace(c.Query("status")); raw != "" {
			status, err := workflow.ParseQuotaStatus(raw)
			if err != nil {
				respondAppError(c, route, err)
				return
			}
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var quotas []models.QuotaRequirement
		if err := findSorted(ctx, db.Collection(database.CollQuotas), filter, &quotas); err != nil {
			routeLogger(c, route).Error().Err(err).Msg("quota query failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if quotas == nil {
			quotas = []models.QuotaRequirement{}
		}
		c.JSON(http.StatusOK, gin.H{"data": quotas})
	}
}

/*
GET /api/v1/quotaRequirement/:id
*/
func GetQuota(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /quotaRequirement/:id"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		quota, err := svc.Quota(ctx, c.Param("id"))
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		email := normalizeEmail(actor.Email)
		if !actor.IsAdmin() && quota.BuyerEmail != email && quota.SellerEmail != email {
			respondWithError(c, http.StatusForbidden, route, "forbidden")
			return
		}
		c.JSON(http.StatusOK, quota)
	}
}

/*
POST /api/v1/quotaRequirement/:id/accept
*/
func AcceptQuota(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /quotaRequirement/:id/accept"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		quota, err := svc.AcceptQuota(ctx, c.Param("id"), actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		routeLogger(c, route).Info().Str("quotaId", quota.ID.Hex()).Msg("quota accepted")
		c.JSON(http.StatusOK, quota)
	}
}

// findSorted decodes every match, newest first.
func findSorted(ctx context.Context, coll *mongo.Collection, filter bson.M, out any) error {
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}
