package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirementIDLayout(t *testing.T) {
	at := time.Date(2024, time.March, 7, 10, 4, 9, 42*int(time.Millisecond), time.UTC)

	id := RequirementID(at)
	assert.Equal(t, "20240307REQ04209", id)
	assert.Regexp(t, `^\d{8}REQ\d{5}$`, id)
}

func TestNegotiationIDLayout(t *testing.T) {
	id, err := NegotiationID(time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Regexp(t, `^20250102NEG\d{6}$`, id)
}

func TestUploadNameKeepsExtension(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	name, err := UploadNameFor(at, "Photo.JPG")
	require.NoError(t, err)
	assert.Regexp(t, `^1700000000123-\d{6}\.jpg$`, name)

	name, err = UploadName(at, "png")
	require.NoError(t, err)
	assert.Regexp(t, `^1700000000123-\d{6}\.png$`, name)
}

func TestPaymentReferenceLayout(t *testing.T) {
	ref, err := PaymentReference(time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Regexp(t, `^20250520PAY\d{8}$`, ref)
}

func TestProductID(t *testing.T) {
	assert.Equal(t, "PID000042", ProductID(42))
}
