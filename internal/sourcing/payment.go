package sourcing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"b2bmarket/internal/apperr"
	"b2bmarket/internal/events"
	"b2bmarket/internal/ids"
	"b2bmarket/internal/models"
	"b2bmarket/internal/workflow"
)

const defaultCurrency = "INR"

type PaymentItemInput struct {
	ReqID       string
	QuotaID     string
	SellerEmail string
	ProductName string
	Quantity    int
	Amount      float64
}

type PaymentInput struct {
	PaymentID  string
	OrderID    string
	Signature  string
	Amount     float64
	Currency   string
	BuyerEmail string
	Items      []PaymentItemInput
}

// Sign returns the hex HMAC-SHA256 of "orderId|paymentId" the gateway sends.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) verifySignature(in PaymentInput) error {
	if s.gatewaySecret == "" {
		return nil
	}
	if in.OrderID == "" || in.Signature == "" {
		return apperr.Validation("orderId and signature are required")
	}
	expected := Sign(s.gatewaySecret, in.OrderID, in.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(in.Signature))) {
		return apperr.New(apperr.CodeUnauthorized, "payment signature mismatch")
	}
	return nil
}

// SavePayment records a captured payment and completes every quota and
// requirement it pays for, all in one transaction.
func (s *Service) SavePayment(ctx context.Context, in PaymentInput, actor Actor) (*models.Payment, error) {
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.Signature = strings.TrimSpace(in.Signature)

	if len(in.Items) == 0 {
		return nil, apperr.Validation("items are required")
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if in.PaymentID == "" {
		if s.gatewaySecret != "" {
			return nil, apperr.Validation("paymentId is required")
		}
		ref, err := ids.PaymentReference(s.now())
		if err != nil {
			return nil, apperr.Internal(err)
		}
		in.PaymentID = ref
	}
	if err := s.verifySignature(in); err != nil {
		return nil, err
	}

	amounts := make([]float64, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Amount <= 0 {
			return nil, apperr.Validation("item amount must be greater than zero")
		}
		amounts = append(amounts, item.Amount)
	}
	if !workflow.AmountsMatch(workflow.SumAmounts(amounts...), decimal.NewFromFloat(in.Amount)) {
		return nil, apperr.Validation("amount does not match the sum of items")
	}

	buyer := normalizeEmail(in.BuyerEmail)
	if buyer == "" {
		buyer = normalizeEmail(actor.Email)
	}
	if !actor.IsAdmin() && buyer != normalizeEmail(actor.Email) {
		return nil, apperr.Forbidden("cannot pay on behalf of another buyer")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	now := s.now().UTC()
	payment := &models.Payment{
		PaymentID:      in.PaymentID,
		GatewayOrderID: in.OrderID,
		Signature:      in.Signature,
		Amount:         in.Amount,
		Currency:       currency,
		Status:         models.PaymentCaptured,
		BuyerEmail:     buyer,
		CreatedAt:      now,
	}

	var reqIDs []string
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		quotas := make([]*models.QuotaRequirement, 0, len(in.Items))
		items := make([]models.PaymentItem, 0, len(in.Items))
		seenQuota := make(map[string]struct{}, len(in.Items))
		seenReq := make(map[string]struct{}, len(in.Items))
		reqIDs = reqIDs[:0]

		if _, err := s.store.FindPayment(ctx, payment.PaymentID); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		for _, item := range in.Items {
			quota, err := s.payableQuota(ctx, item, buyer, seenQuota)
			if err != nil {
				return err
			}
			quotas = append(quotas, quota)
			items = append(items, paymentItem(item, quota))
			if _, dup := seenReq[quota.ReqID]; !dup {
				seenReq[quota.ReqID] = struct{}{}
				reqIDs = append(reqIDs, quota.ReqID)
			}
		}

		payment.OrderDetails = models.OrderDetails{Items: items}
		if err := s.store.InsertPayment(ctx, payment); err != nil {
			return err
		}

		for _, quota := range quotas {
			quota.Status = workflow.QuotaCompleted
			quota.UpdatedAt = now
			if err := s.store.ReplaceQuota(ctx, quota, workflow.QuotaAvailable); err != nil {
				return err
			}
		}
		for _, reqID := range reqIDs {
			if err := s.completeRequirement(ctx, reqID, now); err != nil {
				return err
			}
		}

		return s.enqueue(ctx, events.TypePaymentSaved, payment.PaymentID, events.PaymentSaved{
			PaymentID:  payment.PaymentID,
			BuyerEmail: buyer,
			Amount:     payment.Amount,
			Currency:   currency,
			ReqIDs:     reqIDs,
		})
	})
	if errors.Is(err, ErrDuplicate) {
		return nil, apperr.Conflict("payment already saved")
	}
	if err != nil {
		return nil, storeErr(err, "payment not found")
	}
	return payment, nil
}

func (s *Service) payableQuota(ctx context.Context, item PaymentItemInput, buyer string, seen map[string]struct{}) (*models.QuotaRequirement, error) {
	oid, err := parseObjectID(item.QuotaID, "quotaId")
	if err != nil {
		return nil, err
	}
	if _, dup := seen[oid.Hex()]; dup {
		return nil, apperr.Validation("quota listed twice")
	}
	seen[oid.Hex()] = struct{}{}

	quota, err := s.store.FindQuota(ctx, oid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("quota " + oid.Hex() + " not found")
		}
		return nil, err
	}
	if item.ReqID != "" && strings.TrimSpace(item.ReqID) != quota.ReqID {
		return nil, apperr.Validation("reqId does not match quota " + oid.Hex())
	}
	if quota.BuyerEmail != buyer {
		return nil, apperr.Forbidden("quota " + oid.Hex() + " belongs to another buyer")
	}
	if err := workflow.QuotaTransition(quota.Status, workflow.QuotaCompleted); err != nil {
		return nil, apperr.Newf(apperr.CodeStateConflict, "quota %s is %s and cannot be paid", oid.Hex(), quota.Status)
	}
	if !workflow.AmountsMatch(decimal.NewFromFloat(item.Amount), decimal.NewFromFloat(quota.Amount)) {
		return nil, apperr.Validation(fmt.Sprintf("item amount %.2f does not cover quota %s (%.2f)", item.Amount, oid.Hex(), quota.Amount))
	}
	if item.Quantity > 0 && item.Quantity != quota.Quantity {
		return nil, apperr.Validation(fmt.Sprintf("item quantity %d does not match quota %s (%d)", item.Quantity, oid.Hex(), quota.Quantity))
	}
	return quota, nil
}

func paymentItem(item PaymentItemInput, quota *models.QuotaRequirement) models.PaymentItem {
	productName := strings.TrimSpace(item.ProductName)
	if productName == "" {
		productName = quota.ProductName
	}
	return models.PaymentItem{
		ReqID:       quota.ReqID,
		QuotaID:     quota.ID,
		SellerEmail: quota.SellerEmail,
		ProductName: productName,
		Quantity:    quota.Quantity,
		Amount:      quota.Amount,
	}
}

func (s *Service) completeRequirement(ctx context.Context, reqID string, now time.Time) error {
	req, err := s.store.FindRequirement(ctx, reqID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("requirement " + reqID + " not found")
		}
		return err
	}
	if req.Status == workflow.RequirementCompleted {
		return nil
	}
	if err := workflow.RequirementTransition(req.Status, workflow.RequirementCompleted); err != nil {
		return err
	}
	return s.store.SetRequirementStatus(ctx, reqID, req.Status, workflow.RequirementCompleted, now)
}
