package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"b2bmarket/internal/database"
	"b2bmarket/internal/metrics"
	"b2bmarket/internal/models"
	"b2bmarket/internal/sourcing"
	"b2bmarket/internal/workflow"
)

type negotiationRequest struct {
	SellerEmail      string  `json:"SellerEmail" binding:"required,email"`
	ReqID            string  `json:"reqId" binding:"required"`
	NegotiationValue float64 `json:"negotiationValue" binding:"required,gt=0"`
	YourQty          int     `json:"yourQty" binding:"required,gt=0"`
	Comment          string  `json:"comment"`
}

type transitionRequest struct {
	Status     string   `json:"status" binding:"required"`
	Amount     *float64 `json:"amount" binding:"omitempty,gt=0"`
	Quantity   *int     `json:"quantity" binding:"omitempty,gt=0"`
	Comment    string   `json:"comment"`
	Commission *float64 `json:"commission"`
}

/*
POST /api/v1/negotiation
*/
func CreateNegotiation(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /negotiation"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req negotiationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		neg, err := svc.CreateNegotiation(ctx, sourcing.NegotiationInput{
			SellerEmail: req.SellerEmail,
			ReqID:       req.ReqID,
			Amount:      req.NegotiationValue,
			Quantity:    req.YourQty,
			Comment:     strings.TrimSpace(req.Comment),
		}, actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		metrics.RecordNegotiationTransition(string(neg.Status))
		routeLogger(c, route).Info().Str("negId", neg.NegID).Str("reqId", neg.ReqID).Msg("negotiation created")
		c.JSON(http.StatusCreated, neg)
	}
}

/*
GET /api/v1/negotiation/:negId
*/
func GetNegotiation(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /negotiation/:negId"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		neg, err := svc.Negotiation(ctx, c.Param("negId"))
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		email := normalizeEmail(actor.Email)
		if !actor.IsAdmin() && neg.BuyerEmail != email && neg.SellerEmail != email {
			respondWithError(c, http.StatusForbidden, route, "forbidden")
			return
		}
		c.JSON(http.StatusOK, neg)
	}
}

/*
GET /api/v1/negotiations
- admins filter freely, other callers only see their own threads
*/
func ListNegotiations(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /negotiations"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		filter := bson.M{}
		if seller := normalizeEmail(c.Query("sellerEmail")); seller != "" {
			filter["sellerEmail"] = seller
		}
		if buyer := normalizeEmail(c.Query("buyerEmail")); buyer != "" {
			filter["buyerEmail"] = buyer
		}
		switch actor.Role {
		case models.RoleAdmin:
		case models.RoleSeller:
			filter["sellerEmail"] = normalizeEmail(actor.Email)
		default:
			filter["buyerEmail"] = normalizeEmail(actor.Email)
		}

		if raw := strings.TrimSpace(c.Query("status")); raw != "" {
			status := workflow.NegotiationStatus(raw)
			if !status.IsValid() {
				respondWithError(c, http.StatusBadRequest, route, "invalid status")
				return
			}
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var negotiations []models.Negotiation
		if err := findSorted(ctx, db.Collection(database.CollNegotiations), filter, &negotiations); err != nil {
			routeLogger(c, route).Error().Err(err).Msg("negotiation query failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if negotiations == nil {
			negotiations = []models.Negotiation{}
		}
		c.JSON(http.StatusOK, gin.H{"data": negotiations})
	}
}

/*
POST /api/v1/negotiation/:negId/transition
*/
func TransitionNegotiation(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /negotiation/:negId/transition"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		commission := ""
		if req.Commission != nil {
			commission = strconv.FormatFloat(*req.Commission, 'f', -1, 64)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		neg, err := svc.TransitionNegotiation(ctx, c.Param("negId"), sourcing.TransitionInput{
			Status:     strings.TrimSpace(req.Status),
			Amount:     req.Amount,
			Quantity:   req.Quantity,
			Comment:    strings.TrimSpace(req.Comment),
			Commission: commission,
		}, actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		metrics.RecordNegotiationTransition(string(neg.Status))
		routeLogger(c, route).Info().
			Str("negId", neg.NegID).
			Str("status", string(neg.Status)).
			Int64("version", neg.Version).
			Msg("negotiation transitioned")
		c.JSON(http.StatusOK, neg)
	}
}

/*
GET /api/v1/updateNegotiationStatus/:id/:commission
GET /api/v1/updateNegotiation/:id/:commission
- legacy admin routes, both advance the negotiation one step
*/
func UpdateNegotiationStatus(svc *sourcing.Service) gin.HandlerFunc {
	return legacyNegotiationHandler("GET /updateNegotiationStatus/:id/:commission", svc.UpdateNegotiationStatus)
}

func UpdateNegotiation(svc *sourcing.Service) gin.HandlerFunc {
	return legacyNegotiationHandler("GET /updateNegotiation/:id/:commission", svc.UpdateNegotiation)
}

type legacyNegotiationFunc func(ctx context.Context, negID, commission string, actor sourcing.Actor) (*models.Negotiation, error)

func legacyNegotiationHandler(route string, apply legacyNegotiationFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		neg, err := apply(ctx, c.Param("id"), c.Param("commission"), actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		metrics.RecordNegotiationTransition(string(neg.Status))
		routeLogger(c, route).Info().Str("negId", neg.NegID).Str("status", string(neg.Status)).Msg("negotiation advanced")
		c.JSON(http.StatusOK, gin.H{"message": "Negotiation updated successfully", "data": neg})
	}
}
