package sourcing

import (
	"context"
	"strings"

	"b2bmarket/internal/apperr"
	"b2bmarket/internal/models"
)

// Requirement returns the requirement when actor is its buyer or an admin.
func (s *Service) Requirement(ctx context.Context, reqID string, actor Actor) (*models.Requirement, error) {
	req, err := s.store.FindRequirement(ctx, strings.TrimSpace(reqID))
	if err != nil {
		return nil, storeErr(err, "requirement not found")
	}
	if !actor.IsAdmin() && req.Email != normalizeEmail(actor.Email) {
		return nil, apperr.Forbidden("requirement belongs to another buyer")
	}
	return req, nil
}

// Quotation returns the quotation as actor may see it. Admins and the
// requirement's buyer get every seller entry; a selected seller only gets
// its own.
func (s *Service) Quotation(ctx context.Context, requirementID string, actor Actor) (*models.Quotation, error) {
	requirementID = strings.TrimSpace(requirementID)
	q, err := s.store.FindQuotation(ctx, requirementID)
	if err != nil {
		return nil, storeErr(err, "quotation not found")
	}
	if actor.IsAdmin() {
		return q, nil
	}

	email := normalizeEmail(actor.Email)
	if actor.Role == models.RoleSeller {
		for _, company := range q.SelectedCompanies {
			if company.Email == email {
				q.SelectedCompanies = []models.SellerQuote{company}
				return q, nil
			}
		}
		return nil, apperr.Forbidden("seller was not selected for this quotation")
	}

	req, err := s.store.FindRequirement(ctx, requirementID)
	if err != nil {
		return nil, storeErr(err, "requirement not found")
	}
	if req.Email != email {
		return nil, apperr.Forbidden("quotation belongs to another buyer")
	}
	return q, nil
}

func (s *Service) Quota(ctx context.Context, quotaID string) (*models.QuotaRequirement, error) {
	oid, err := parseObjectID(quotaID, "quota id")
	if err != nil {
		return nil, err
	}
	q, err := s.store.FindQuota(ctx, oid)
	if err != nil {
		return nil, storeErr(err, "quota not found")
	}
	return q, nil
}

// Negotiation accepts a negId or the document's hex id.
func (s *Service) Negotiation(ctx context.Context, id string) (*models.Negotiation, error) {
	n, err := s.store.FindNegotiation(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, storeErr(err, "negotiation not found")
	}
	return n, nil
}

// Payment returns the payment when actor is its buyer or an admin.
func (s *Service) Payment(ctx context.Context, paymentID string, actor Actor) (*models.Payment, error) {
	p, err := s.store.FindPayment(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		return nil, storeErr(err, "payment not found")
	}
	if !actor.IsAdmin() && p.BuyerEmail != normalizeEmail(actor.Email) {
		return nil, apperr.Forbidden("payment belongs to another buyer")
	}
	return p, nil
}
