package sourcing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b2bmarket/internal/apperr"
	"b2bmarket/internal/events"
	"b2bmarket/internal/models"
	"b2bmarket/internal/workflow"
)

// availableQuota walks a fresh requirement to an accepted quota.
func availableQuota(t *testing.T, svc *Service, amount float64) (*models.Requirement, *models.QuotaRequirement) {
	t.Helper()
	req := createRequirement(t, svc)
	quota := createQuota(t, svc, req.ReqID, amount, "")
	accepted, err := svc.AcceptQuota(context.Background(), quota.ID.Hex(), buyer)
	require.NoError(t, err)
	return req, accepted
}

func TestSavePaymentCompletesQuotasAndRequirements(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	req, quota := availableQuota(t, svc, 1200)

	second, err := svc.CreateQuota(context.Background(), QuotaInput{ReqID: req.ReqID, SellerEmail: "b@steel.test", Amount: 300})
	require.NoError(t, err)
	_, err = svc.AcceptQuota(context.Background(), second.ID.Hex(), buyer)
	require.NoError(t, err)

	payment, err := svc.SavePayment(context.Background(), PaymentInput{
		PaymentID: "pay_001",
		Amount:    1500,
		Items: []PaymentItemInput{
			{QuotaID: quota.ID.Hex(), ReqID: req.ReqID, Amount: 1200},
			{QuotaID: second.ID.Hex(), Amount: 300},
		},
	}, buyer)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentCaptured, payment.Status)
	assert.Equal(t, "INR", payment.Currency)
	assert.Equal(t, "buyer@acme.test", payment.BuyerEmail)
	require.Len(t, payment.OrderDetails.Items, 2)
	assert.Equal(t, seller.Email, payment.OrderDetails.Items[0].SellerEmail)

	assert.Equal(t, workflow.QuotaCompleted, store.quotas[quota.ID].Status)
	assert.Equal(t, workflow.QuotaCompleted, store.quotas[second.ID].Status)
	assert.Equal(t, workflow.RequirementCompleted, store.requirements[req.ReqID].Status)
	assert.Contains(t, store.eventTypes(), events.TypePaymentSaved)
}

func TestSavePaymentRejectsDuplicates(t *testing.T) {
	svc := newTestService(newMemStore())
	_, quota := availableQuota(t, svc, 500)
	in := PaymentInput{
		PaymentID: "pay_dup",
		Amount:    500,
		Items:     []PaymentItemInput{{QuotaID: quota.ID.Hex(), Amount: 500}},
	}

	_, err := svc.SavePayment(context.Background(), in, buyer)
	require.NoError(t, err)

	_, err = svc.SavePayment(context.Background(), in, buyer)
	assertCode(t, err, apperr.CodeConflict)
}

func TestSavePaymentValidatesAmounts(t *testing.T) {
	svc := newTestService(newMemStore())
	_, quota := availableQuota(t, svc, 500)

	_, err := svc.SavePayment(context.Background(), PaymentInput{
		PaymentID: "pay_x",
		Amount:    499,
		Items:     []PaymentItemInput{{QuotaID: quota.ID.Hex(), Amount: 500}},
	}, buyer)
	assertCode(t, err, apperr.CodeValidation)

	_, err = svc.SavePayment(context.Background(), PaymentInput{PaymentID: "pay_x", Amount: 1}, buyer)
	assertCode(t, err, apperr.CodeValidation)
}

func TestSavePaymentRequiresAvailableQuota(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	req := createRequirement(t, svc)
	quota := createQuota(t, svc, req.ReqID, 100, "")

	_, err := svc.SavePayment(context.Background(), PaymentInput{
		PaymentID: "pay_early",
		Amount:    100,
		Items:     []PaymentItemInput{{QuotaID: quota.ID.Hex(), Amount: 100}},
	}, buyer)
	assertCode(t, err, apperr.CodeStateConflict)
	assert.Empty(t, store.payments)
	assert.Equal(t, workflow.QuotaQuoted, store.quotas[quota.ID].Status)
}

func TestSavePaymentForAnotherBuyerIsForbidden(t *testing.T) {
	svc := newTestService(newMemStore())
	_, quota := availableQuota(t, svc, 100)

	_, err := svc.SavePayment(context.Background(), PaymentInput{
		PaymentID:  "pay_y",
		Amount:     100,
		BuyerEmail: "buyer@acme.test",
		Items:      []PaymentItemInput{{QuotaID: quota.ID.Hex(), Amount: 100}},
	}, Actor{Email: "mallory@x.test", Role: models.RoleBuyer})
	assertCode(t, err, apperr.CodeForbidden)
}

func TestSavePaymentVerifiesGatewaySignature(t *testing.T) {
	const secret = "gateway-secret"
	svc := newTestService(newMemStore(), WithGatewaySecret(secret))
	_, quota := availableQuota(t, svc, 250)
	items := []PaymentItemInput{{QuotaID: quota.ID.Hex(), Amount: 250}}

	_, err := svc.SavePayment(context.Background(), PaymentInput{
		PaymentID: "pay_sig", OrderID: "order_1", Signature: "deadbeef", Amount: 250, Items: items,
	}, buyer)
	assertCode(t, err, apperr.CodeUnauthorized)

	_, err = svc.SavePayment(context.Background(), PaymentInput{
		OrderID: "order_1", Signature: "x", Amount: 250, Items: items,
	}, buyer)
	assertCode(t, err, apperr.CodeValidation)

	payment, err := svc.SavePayment(context.Background(), PaymentInput{
		PaymentID: "pay_sig",
		OrderID:   "order_1",
		Signature: Sign(secret, "order_1", "pay_sig"),
		Amount:    250,
		Items:     items,
	}, buyer)
	require.NoError(t, err)
	assert.Equal(t, "order_1", payment.GatewayOrderID)
}

func TestSavePaymentGeneratesReferenceWithoutGateway(t *testing.T) {
	svc := newTestService(newMemStore())
	_, quota := availableQuota(t, svc, 80)

	payment, err := svc.SavePayment(context.Background(), PaymentInput{
		Amount: 80,
		Items:  []PaymentItemInput{{QuotaID: quota.ID.Hex(), Amount: 80}},
	}, buyer)
	require.NoError(t, err)
	assert.Regexp(t, `^20250603PAY\d{8}$`, payment.PaymentID)
}

func TestSavePaymentMustCoverQuotaAmount(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	_, quota := availableQuota(t, svc, 1200)

	_, err := svc.SavePayment(context.Background(), PaymentInput{
		PaymentID: "pay_token",
		Amount:    1,
		Items:     []PaymentItemInput{{QuotaID: quota.ID.Hex(), Amount: 1}},
	}, buyer)
	assertCode(t, err, apperr.CodeValidation)
	assert.Empty(t, store.payments)
	assert.Equal(t, workflow.QuotaAvailable, store.quotas[quota.ID].Status)

	_, err = svc.SavePayment(context.Background(), PaymentInput{
		PaymentID: "pay_qty",
		Amount:    1200,
		Items:     []PaymentItemInput{{QuotaID: quota.ID.Hex(), Amount: 1200, Quantity: 1}},
	}, buyer)
	assertCode(t, err, apperr.CodeValidation)

	payment, err := svc.SavePayment(context.Background(), PaymentInput{
		PaymentID: "pay_full",
		Amount:    1200,
		Items:     []PaymentItemInput{{QuotaID: quota.ID.Hex(), Amount: 1200}},
	}, buyer)
	require.NoError(t, err)
	assert.Equal(t, 40, payment.OrderDetails.Items[0].Quantity)
	assert.Equal(t, 1200.0, payment.OrderDetails.Items[0].Amount)
}
