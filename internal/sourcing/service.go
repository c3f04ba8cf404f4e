// Package sourcing implements the requirement → quotation → quota →
// negotiation → payment workflow. Every operation that touches more than one
// collection runs inside a single store transaction together with its outbox
// event.
package sourcing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"b2bmarket/internal/apperr"
	"b2bmarket/internal/events"
	"b2bmarket/internal/ids"
	"b2bmarket/internal/models"
	"b2bmarket/internal/outbox"
	"b2bmarket/internal/workflow"
)

const idAttempts = 3

type Service struct {
	store         Store
	gatewaySecret string
	now           func() time.Time
}

type Option func(*Service)

// WithGatewaySecret enables payment signature verification.
func WithGatewaySecret(secret string) Option {
	return func(s *Service) { s.gatewaySecret = strings.TrimSpace(secret) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	Email string
	Role  string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) enqueue(ctx context.Context, eventType, aggregateID string, data any) error {
	ev, err := outbox.New(eventType, aggregateID, data, s.now())
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.store.Enqueue(ctx, ev); err != nil {
		return apperr.Internal(fmt.Errorf("enqueue %s: %w", eventType, err))
	}
	return nil
}

func storeErr(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, ErrConflict):
		return apperr.Wrap(apperr.CodeConflict, err, "resource was modified concurrently, reload and retry")
	case apperr.As(err) != nil:
		return err
	default:
		return apperr.Internal(err)
	}
}

/* =========================
   REQUIREMENTS
========================= */

type RequirementInput struct {
	Name          string
	Email         string
	Mobile        string
	Pincode       string
	UserType      string
	PID           string
	ProductName   string
	MinQty        int
	Measurement   string
	Specification string
}

func (in RequirementInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return apperr.Validation("name is required")
	case normalizeEmail(in.Email) == "":
		return apperr.Validation("email is required")
	case in.MinQty <= 0:
		return apperr.Validation("minQty must be greater than zero")
	case strings.TrimSpace(in.Measurement) == "":
		return apperr.Validation("measurement is required")
	}
	return nil
}

// CreateRequirement stores a pending requirement under a fresh reqId.
func (s *Service) CreateRequirement(ctx context.Context, in RequirementInput) (*models.Requirement, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req := &models.Requirement{
		Name:          strings.TrimSpace(in.Name),
		Email:         normalizeEmail(in.Email),
		Mobile:        strings.TrimSpace(in.Mobile),
		Pincode:       strings.TrimSpace(in.Pincode),
		UserType:      strings.TrimSpace(in.UserType),
		PID:           strings.TrimSpace(in.PID),
		ProductName:   strings.TrimSpace(in.ProductName),
		MinQty:        in.MinQty,
		Measurement:   strings.TrimSpace(in.Measurement),
		Specification: strings.TrimSpace(in.Specification),
		Status:        workflow.RequirementPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var err error
	for attempt := 0; attempt < idAttempts; attempt++ {
		// two submissions in the same millisecond collide; shift the clock
		req.ReqID = ids.RequirementID(now.Add(time.Duration(attempt) * time.Millisecond))
		err = s.store.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.store.InsertRequirement(ctx, req); err != nil {
				return err
			}
			return s.enqueue(ctx, events.TypeRequirementCreated, req.ReqID, events.RequirementCreated{
				ReqID:       req.ReqID,
				Name:        req.Name,
				Email:       req.Email,
				ProductName: req.ProductName,
				MinQty:      req.MinQty,
				Measurement: req.Measurement,
			})
		})
		if !errors.Is(err, ErrDuplicate) {
			break
		}
		zerolog.Ctx(ctx).Warn().Str("reqId", req.ReqID).Int("attempt", attempt+1).Msg("requirement id collision")
	}
	if errors.Is(err, ErrDuplicate) {
		return nil, apperr.Wrap(apperr.CodeConflict, err, "could not allocate a requirement id, retry")
	}
	if err != nil {
		return nil, storeErr(err, "requirement not found")
	}
	return req, nil
}

// UpdateRequirementStatus moves a requirement along its status table.
func (s *Service) UpdateRequirementStatus(ctx context.Context, reqID, status string) (*models.Requirement, error) {
	to, err := workflow.ParseRequirementStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, err
	}

	var out *models.Requirement
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.store.FindRequirement(ctx, reqID)
		if err != nil {
			return err
		}
		if err := workflow.RequirementTransition(req.Status, to); err != nil {
			return err
		}
		now := s.now().UTC()
		if req.Status != to {
			if err := s.store.SetRequirementStatus(ctx, reqID, req.Status, to, now); err != nil {
				return err
			}
		}
		req.Status = to
		req.UpdatedAt = now
		out = req
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "requirement not found")
	}
	return out, nil
}

/* =========================
   QUOTATIONS
========================= */

type QuotationInput struct {
	RequirementID string
	PID           string
	Sellers       []string
}

// CreateQuotation opens one pending seller entry per unique seller.
func (s *Service) CreateQuotation(ctx context.Context, in QuotationInput) (*models.Quotation, error) {
	reqID := strings.TrimSpace(in.RequirementID)
	if reqID == "" {
		return nil, apperr.Validation("requirementId is required")
	}

	seen := make(map[string]struct{}, len(in.Sellers))
	companies := make([]models.SellerQuote, 0, len(in.Sellers))
	for _, raw := range in.Sellers {
		email := normalizeEmail(raw)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		companies = append(companies, models.SellerQuote{Email: email, Status: workflow.SellerQuotePending})
	}
	if len(companies) == 0 {
		return nil, apperr.Validation("at least one seller is required")
	}

	now := s.now().UTC()
	quotation := &models.Quotation{
		RequirementID:     reqID,
		PID:               strings.TrimSpace(in.PID),
		SelectedCompanies: companies,
		Status:            workflow.SellerQuotePending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.store.FindRequirement(ctx, reqID)
		if err != nil {
			return err
		}
		if quotation.PID == "" {
			quotation.PID = req.PID
		}
		if err := s.store.InsertQuotation(ctx, quotation); err != nil {
			return err
		}
		for _, company := range companies {
			if err := s.enqueue(ctx, events.TypeQuotationRequested, reqID, events.QuotationRequested{
				RequirementID: reqID,
				PID:           quotation.PID,
				SellerEmail:   company.Email,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrDuplicate) {
		return nil, apperr.Conflict("quotation already exists for this requirement")
	}
	if err != nil {
		return nil, storeErr(err, "requirement not found")
	}
	return quotation, nil
}

// SubmitSellerQuote records a seller's price. A seller can quote once.
func (s *Service) SubmitSellerQuote(ctx context.Context, requirementID, sellerEmail string, amount float64, description string) (*models.Quotation, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	email := normalizeEmail(sellerEmail)

	quotation, err := s.store.FindQuotation(ctx, requirementID)
	if err != nil {
		return nil, storeErr(err, "quotation not found")
	}

	var entry *models.SellerQuote
	for i := range quotation.SelectedCompanies {
		if quotation.SelectedCompanies[i].Email == email {
			entry = &quotation.SelectedCompanies[i]
			break
		}
	}
	if entry == nil {
		return nil, apperr.Forbidden("seller is not part of this quotation")
	}
	if entry.Status != workflow.SellerQuotePending {
		return nil, apperr.New(apperr.CodeStateConflict, "seller has already quoted")
	}

	now := s.now().UTC()
	description = strings.TrimSpace(description)
	if err := s.store.SetSellerQuote(ctx, requirementID, email, amount, description, now); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, apperr.New(apperr.CodeStateConflict, "seller has already quoted")
		}
		return nil, storeErr(err, "quotation not found")
	}

	entry.Amount = amount
	entry.Description = description
	entry.Status = workflow.SellerQuoteQuoted
	entry.QuotedAt = &now
	quotation.Status = workflow.SellerQuoteQuoted
	quotation.UpdatedAt = now
	return quotation, nil
}

/* =========================
   QUOTAS
========================= */

type QuotaInput struct {
	ReqID       string
	SellerEmail string
	Amount      float64
	Commission  string
	Quantity    int
}

// CreateQuota publishes a seller's price to the buyer with the platform
// markup applied and marks the requirement Quoted.
func (s *Service) CreateQuota(ctx context.Context, in QuotaInput) (*models.QuotaRequirement, error) {
	if strings.TrimSpace(in.ReqID) == "" {
		return nil, apperr.Validation("reqId is required")
	}
	seller := normalizeEmail(in.SellerEmail)
	if seller == "" {
		return nil, apperr.Validation("seller_email is required")
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if in.Quantity < 0 {
		return nil, apperr.Validation("quantity cannot be negative")
	}
	pct, err := workflow.ParseCommission(in.Commission)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var quota *models.QuotaRequirement
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.store.FindRequirement(ctx, strings.TrimSpace(in.ReqID))
		if err != nil {
			return err
		}
		if err := workflow.RequirementTransition(req.Status, workflow.RequirementQuoted); err != nil {
			return err
		}

		quantity := in.Quantity
		if quantity == 0 {
			quantity = req.MinQty
		}
		quota = &models.QuotaRequirement{
			ReqID:        req.ReqID,
			BuyerEmail:   req.Email,
			SellerEmail:  seller,
			ProductName:  req.ProductName,
			Quantity:     quantity,
			Measurement:  req.Measurement,
			SellerAmount: in.Amount,
			Amount:       workflow.AddMarkup(in.Amount, pct),
			Commission:   pct.InexactFloat64(),
			Status:       workflow.QuotaQuoted,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.InsertQuota(ctx, quota); err != nil {
			return err
		}
		if req.Status != workflow.RequirementQuoted {
			if err := s.store.SetRequirementStatus(ctx, req.ReqID, req.Status, workflow.RequirementQuoted, now); err != nil {
				return err
			}
		}
		return s.enqueue(ctx, events.TypeQuotaCreated, req.ReqID, events.QuotaCreated{
			QuotaID:     quota.ID.Hex(),
			ReqID:       req.ReqID,
			BuyerEmail:  req.Email,
			SellerEmail: seller,
			ProductName: req.ProductName,
			Quantity:    quantity,
			Amount:      quota.Amount,
		})
	})
	if errors.Is(err, ErrDuplicate) {
		return nil, apperr.Conflict("seller already has a quota for this requirement")
	}
	if err != nil {
		return nil, storeErr(err, "requirement not found")
	}
	return quota, nil
}

// AcceptQuota lets the buyer take a quoted price without negotiating.
func (s *Service) AcceptQuota(ctx context.Context, quotaID string, actor Actor) (*models.QuotaRequirement, error) {
	oid, err := parseObjectID(quotaID, "quota id")
	if err != nil {
		return nil, err
	}

	var quota *models.QuotaRequirement
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		q, err := s.store.FindQuota(ctx, oid)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && q.BuyerEmail != normalizeEmail(actor.Email) {
			return apperr.Forbidden("quota belongs to another buyer")
		}
		if q.Status != workflow.QuotaQuoted {
			return apperr.Newf(apperr.CodeStateConflict, "quota is %s and cannot be accepted", q.Status)
		}
		q.Status = workflow.QuotaAvailable
		q.UpdatedAt = s.now().UTC()
		if err := s.store.ReplaceQuota(ctx, q, workflow.QuotaQuoted); err != nil {
			return err
		}
		quota = q
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "quota not found")
	}
	return quota, nil
}
