package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"b2bmarket/internal/models"
	"b2bmarket/internal/workflow"
)

func TestWriteRequirementsXLSX(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRequirementsXLSX(&buf, []models.Requirement{{
		ReqID:       "20250603REQ25015",
		Name:        "Acme",
		Email:       "buyer@acme.test",
		MinQty:      40,
		Measurement: "tonnes",
		Status:      workflow.RequirementPending,
		CreatedAt:   time.Date(2025, 6, 3, 9, 30, 15, 0, time.UTC),
	}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(requirementsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Req ID", rows[0][0])
	assert.Equal(t, "20250603REQ25015", rows[1][0])
	assert.Equal(t, "pending", rows[1][1])
	assert.Equal(t, "40", rows[1][9])
	assert.Equal(t, "2025-06-03 09:30:15", rows[1][12])
}

func TestWriteInvoicePDF(t *testing.T) {
	var buf bytes.Buffer
	err := WriteInvoicePDF(&buf, "B2B Market", &models.Payment{
		PaymentID:  "pay_001",
		Amount:     1500,
		Currency:   "INR",
		Status:     models.PaymentCaptured,
		BuyerEmail: "buyer@acme.test",
		OrderDetails: models.OrderDetails{Items: []models.PaymentItem{
			{ReqID: "20250603REQ25015", SellerEmail: "sales@steelco.test", ProductName: "TMT Bars", Quantity: 40, Amount: 1500},
		}},
		CreatedAt: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd~", truncate("abcdefgh", 5))
}
