package sourcing

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"b2bmarket/internal/models"
	"b2bmarket/internal/outbox"
	"b2bmarket/internal/workflow"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	// ErrConflict means a conditional write matched nothing because the
	// document changed underneath the caller.
	ErrConflict = errors.New("write conflict")
)

// Store is the persistence the workflow needs. Every method called inside
// WithinTx must use the ctx it receives.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	InsertRequirement(ctx context.Context, r *models.Requirement) error
	FindRequirement(ctx context.Context, reqID string) (*models.Requirement, error)
	SetRequirementStatus(ctx context.Context, reqID string, from, to workflow.RequirementStatus, at time.Time) error

	InsertQuotation(ctx context.Context, q *models.Quotation) error
	FindQuotation(ctx context.Context, requirementID string) (*models.Quotation, error)
	SetSellerQuote(ctx context.Context, requirementID, sellerEmail string, amount float64, description string, at time.Time) error

	InsertQuota(ctx context.Context, q *models.QuotaRequirement) error
	FindQuota(ctx context.Context, id primitive.ObjectID) (*models.QuotaRequirement, error)
	FindQuotaBySeller(ctx context.Context, reqID, sellerEmail string) (*models.QuotaRequirement, error)
	ReplaceQuota(ctx context.Context, q *models.QuotaRequirement, expected workflow.QuotaStatus) error

	InsertNegotiation(ctx context.Context, n *models.Negotiation) error
	FindNegotiation(ctx context.Context, id string) (*models.Negotiation, error)
	ReplaceNegotiation(ctx context.Context, n *models.Negotiation, expectedVersion int64) error

	InsertPayment(ctx context.Context, p *models.Payment) error
	FindPayment(ctx context.Context, paymentID string) (*models.Payment, error)

	Enqueue(ctx context.Context, ev outbox.Event) error
}
