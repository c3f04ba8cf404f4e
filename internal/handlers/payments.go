package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"b2bmarket/internal/database"
	"b2bmarket/internal/models"
	"b2bmarket/internal/reports"
	"b2bmarket/internal/sourcing"
)

/* =========================
   REQUEST DTOs
========================= */

type paymentItemRequest struct {
	ReqID       string  `json:"reqId"`
	QuotaID     string  `json:"quotaId" binding:"required"`
	SellerEmail string  `json:"sellerEmail"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity" binding:"omitempty,gte=0"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
}

type savePaymentRequest struct {
	PaymentID  string               `json:"paymentId"`
	OrderID    string               `json:"orderId"`
	Signature  string               `json:"signature"`
	Amount     float64              `json:"amount" binding:"required,gt=0"`
	Currency   string               `json:"currency"`
	BuyerEmail string               `json:"buyerEmail" binding:"omitempty,email"`
	Items      []paymentItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (r savePaymentRequest) input() sourcing.PaymentInput {
	items := make([]sourcing.PaymentItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, sourcing.PaymentItemInput{
			ReqID:       item.ReqID,
			QuotaID:     item.QuotaID,
			SellerEmail: item.SellerEmail,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Amount:      item.Amount,
		})
	}
	return sourcing.PaymentInput{
		PaymentID:  r.PaymentID,
		OrderID:    r.OrderID,
		Signature:  r.Signature,
		Amount:     r.Amount,
		Currency:   r.Currency,
		BuyerEmail: r.BuyerEmail,
		Items:      items,
	}
}

/* =========================
   SAVE PAYMENT
========================= */

func SavePayment(db *mongo.Database, svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/savePayment"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req savePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		payment, err := svc.SavePayment(ctx, req.input(), actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		routeLogger(c, route).Info().
			Str("paymentId", payment.PaymentID).
			Str("buyer", payment.BuyerEmail).
			Float64("amount", payment.Amount).
			Int("items", len(payment.OrderDetails.Items)).
			Msg("payment saved")
		c.JSON(http.StatusCreated, gin.H{"message": "Payment saved successfully", "data": payment})
	}
}

/* =========================
   READ
========================= */

func GetPayment(svc *sourcing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /payments/:paymentId"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		payment, err := svc.Payment(ctx, c.Param("paymentId"), actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

/*
GET /api/payments?email=
- non-admin callers always get their own payments
*/
func ListPayments(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /payments"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		filter := bson.M{}
		email := normalizeEmail(c.Query("email"))
		if !actor.IsAdmin() {
			email = normalizeEmail(actor.Email)
		}
		if email != "" {
			filter["buyerEmail"] = email
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var payments []models.Payment
		if err := findSorted(ctx, db.Collection(database.CollPayments), filter, &payments); err != nil {
			routeLogger(c, route).Error().Err(err).Msg("payments query failed")
			respondWithError(c, http.StatusInternalServerError, route, "Payments could not be fetched")
			return
		}
		if payments == nil {
			payments = []models.Payment{}
		}
		c.JSON(http.StatusOK, gin.H{"data": payments})
	}
}

/*
GET /api/payments/:paymentId/invoice
*/
func PaymentInvoice(svc *sourcing.Service, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /payments/:paymentId/invoice"
		defer handlePanic(c, route)

		actor, ok := actorFrom(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		payment, err := svc.Payment(ctx, c.Param("paymentId"), actor)
		if err != nil {
			respondAppError(c, route, err)
			return
		}

		var buf bytes.Buffer
		if err := reports.WriteInvoicePDF(&buf, issuer, payment); err != nil {
			routeLogger(c, route).Error().Err(err).Msg("invoice render failed")
			respondWithError(c, http.StatusInternalServerError, route, "invoice could not be generated")
			return
		}

		filename := "invoice-" + strings.ReplaceAll(payment.PaymentID, `"`, "") + ".pdf"
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	}
}
