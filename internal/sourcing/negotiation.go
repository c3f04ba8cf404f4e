package sourcing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"b2bmarket/internal/apperr"
	"b2bmarket/internal/events"
	"b2bmarket/internal/ids"
	"b2bmarket/internal/models"
	"b2bmarket/internal/workflow"
)

func parseObjectID(raw, what string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid " + what)
	}
	return oid, nil
}

type NegotiationInput struct {
	SellerEmail string
	ReqID       string
	Amount      float64
	Quantity    int
	Comment     string
}

// CreateNegotiation opens a negotiation on a Quoted quota. The quota moves to
// Negotiation with negotiation=false in the same transaction.
func (s *Service) CreateNegotiation(ctx context.Context, in NegotiationInput, actor Actor) (*models.Negotiation, error) {
	seller := normalizeEmail(in.SellerEmail)
	reqID := strings.TrimSpace(in.ReqID)
	switch {
	case seller == "":
		return nil, apperr.Validation("SellerEmail is required")
	case reqID == "":
		return nil, apperr.Validation("reqId is required")
	case in.Amount <= 0:
		return nil, apperr.Validation("negotiationValue must be greater than zero")
	case in.Quantity <= 0:
		return nil, apperr.Validation("yourQty must be greater than zero")
	}

	now := s.now().UTC()
	details := models.NegotiationDetails{
		NegotiationAmount:   in.Amount,
		NegotiationQuantity: in.Quantity,
		PreviewAmount:       in.Amount,
		PreviewQuantity:     in.Quantity,
		NewAmount:           in.Amount,
		Comment:             strings.TrimSpace(in.Comment),
	}

	var neg *models.Negotiation
	var err error
	for attempt := 0; attempt < idAttempts; attempt++ {
		var negID string
		negID, err = ids.NegotiationID(now)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		err = s.store.WithinTx(ctx, func(ctx context.Context) error {
			quota, err := s.store.FindQuotaBySeller(ctx, reqID, seller)
			if err != nil {
				return err
			}
			if !actor.IsAdmin() && quota.BuyerEmail != normalizeEmail(actor.Email) {
				return apperr.Forbidden("quota belongs to another buyer")
			}
			if err := workflow.QuotaTransition(quota.Status, workflow.QuotaNegotiation); err != nil {
				return err
			}

			neg = &models.Negotiation{
				NegID:              negID,
				ReqID:              reqID,
				QuotaID:            quota.ID,
				BuyerEmail:         quota.BuyerEmail,
				SellerEmail:        seller,
				NegotiationDetails: details,
				Status:             workflow.NegotiationAdminPending,
				Commission:         quota.Commission,
				History: []models.NegotiationEvent{{
					To:       workflow.NegotiationAdminPending,
					Actor:    normalizeEmail(actor.Email),
					Amount:   in.Amount,
					Quantity: in.Quantity,
					Comment:  details.Comment,
					At:       now,
				}},
				Version:   1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.store.InsertNegotiation(ctx, neg); err != nil {
				return err
			}

			quotaDetails := details
			quota.Status = workflow.QuotaNegotiation
			quota.Negotiation = false
			quota.NegID = negID
			quota.NegotiationDetails = &quotaDetails
			quota.UpdatedAt = now
			if err := s.store.ReplaceQuota(ctx, quota, workflow.QuotaQuoted); err != nil {
				return err
			}

			return s.enqueue(ctx, events.TypeNegotiationCreated, negID, events.NegotiationCreated{
				NegID:       negID,
				ReqID:       reqID,
				BuyerEmail:  quota.BuyerEmail,
				SellerEmail: seller,
				Amount:      in.Amount,
				Quantity:    in.Quantity,
			})
		})
		if !errors.Is(err, ErrDuplicate) {
			break
		}
	}
	if errors.Is(err, ErrDuplicate) {
		return nil, apperr.Wrap(apperr.CodeConflict, err, "could not allocate a negotiation id, retry")
	}
	if err != nil {
		return nil, storeErr(err, "quota not found for this requirement and seller")
	}
	return neg, nil
}

type TransitionInput struct {
	Status     string
	Amount     *float64
	Quantity   *int
	Comment    string
	Commission string
}

// TransitionNegotiation validates the move against the state machine and the
// caller's role, then applies the submitted figures.
func (s *Service) TransitionNegotiation(ctx context.Context, negID string, in TransitionInput, actor Actor) (*models.Negotiation, error) {
	to, err := workflow.ParseNegotiationStatus(strings.TrimSpace(in.Status))
	if err != nil {
		return nil, err
	}
	if in.Amount != nil && *in.Amount <= 0 {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if in.Quantity != nil && *in.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be greater than zero")
	}
	var pct *decimal.Decimal
	if strings.TrimSpace(in.Commission) != "" {
		parsed, err := workflow.ParseCommission(in.Commission)
		if err != nil {
			return nil, err
		}
		pct = &parsed
	}

	return s.advance(ctx, negID, actor, func(neg *models.Negotiation) (workflow.NegotiationStatus, error) {
		if err := authorizeTransition(neg, to, actor); err != nil {
			return "", err
		}
		d := &neg.NegotiationDetails
		if in.Amount != nil {
			d.NegotiationAmount = *in.Amount
			d.PreviewAmount = *in.Amount
			d.NewAmount = *in.Amount
			if pct != nil {
				d.NewAmount = workflow.StripMarkup(*in.Amount, *pct)
			}
		}
		if pct != nil {
			neg.Commission = pct.InexactFloat64()
		}
		if in.Quantity != nil {
			d.NegotiationQuantity = *in.Quantity
			d.PreviewQuantity = *in.Quantity
		}
		if c := strings.TrimSpace(in.Comment); c != "" {
			d.Comment = c
		}
		return to, nil
	})
}

// UpdateNegotiationStatus is the legacy admin step that strips the commission
// as a markup: newAmount = negotiationAmount / (1 + c/100).
func (s *Service) UpdateNegotiationStatus(ctx context.Context, negID, commission string, actor Actor) (*models.Negotiation, error) {
	pct, err := workflow.ParseCommission(commission)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, negID, actor, func(neg *models.Negotiation) (workflow.NegotiationStatus, error) {
		next, err := workflow.Next(neg.Status)
		if err != nil {
			return "", err
		}
		d := &neg.NegotiationDetails
		d.NewAmount = workflow.StripMarkup(d.NegotiationAmount, pct)
		d.PreviewAmount = d.NewAmount
		neg.Commission = pct.InexactFloat64()
		return next, nil
	})
}

// UpdateNegotiation is the legacy admin step with a flat 5% deduction. The
// commission argument is validated and recorded but not applied.
func (s *Service) UpdateNegotiation(ctx context.Context, negID, commission string, actor Actor) (*models.Negotiation, error) {
	pct, err := workflow.ParseCommission(commission)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, negID, actor, func(neg *models.Negotiation) (workflow.NegotiationStatus, error) {
		next, err := workflow.Next(neg.Status)
		if err != nil {
			return "", err
		}
		d := &neg.NegotiationDetails
		d.NewAmount = workflow.FlatDeduction(d.NegotiationAmount)
		neg.Commission = pct.InexactFloat64()
		return next, nil
	})
}

// authorizeTransition checks that the caller is the party expected to move the
// negotiation into to. Admins may perform any move; anyone involved may reject.
func authorizeTransition(neg *models.Negotiation, to workflow.NegotiationStatus, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	email := normalizeEmail(actor.Email)
	isSeller := actor.Role == models.RoleSeller && email == neg.SellerEmail
	isBuyer := actor.Role == models.RoleBuyer && email == neg.BuyerEmail

	if to == workflow.NegotiationRejected {
		if isSeller || isBuyer {
			return nil
		}
		return apperr.Forbidden("not a party to this negotiation")
	}

	party, _ := to.Actor()
	switch {
	case party == workflow.PartySeller && isSeller:
		return nil
	case party == workflow.PartyBuyer && isBuyer:
		return nil
	}
	return apperr.Forbidden("status " + to.String() + " must be set by " + string(party))
}

type mutation func(neg *models.Negotiation) (workflow.NegotiationStatus, error)

// advance loads the negotiation, lets mutate pick the target status and
// adjust figures, then persists negotiation and quota with a version check.
func (s *Service) advance(ctx context.Context, negID string, actor Actor, mutate mutation) (*models.Negotiation, error) {
	var out *models.Negotiation
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		neg, err := s.store.FindNegotiation(ctx, strings.TrimSpace(negID))
		if err != nil {
			return err
		}
		from := neg.Status
		expected := neg.Version

		to, err := mutate(neg)
		if err != nil {
			return err
		}
		if err := workflow.Transition(from, to); err != nil {
			return err
		}

		now := s.now().UTC()
		d := neg.NegotiationDetails
		neg.Status = to
		neg.Version = expected + 1
		neg.UpdatedAt = now
		neg.History = append(neg.History, models.NegotiationEvent{
			From:     from,
			To:       to,
			Actor:    normalizeEmail(actor.Email),
			Amount:   d.NewAmount,
			Quantity: d.NegotiationQuantity,
			Comment:  d.Comment,
			At:       now,
		})
		if err := s.store.ReplaceNegotiation(ctx, neg, expected); err != nil {
			return err
		}

		if err := s.syncQuota(ctx, neg, now); err != nil {
			return err
		}

		nextActor := ""
		if party, ok := to.Awaiting(); ok {
			nextActor = string(party)
		}
		out = neg
		return s.enqueue(ctx, events.TypeNegotiationUpdated, neg.NegID, events.NegotiationUpdated{
			NegID:       neg.NegID,
			ReqID:       neg.ReqID,
			BuyerEmail:  neg.BuyerEmail,
			SellerEmail: neg.SellerEmail,
			From:        from.String(),
			To:          to.String(),
			NextActor:   nextActor,
			NewAmount:   d.NewAmount,
			Quantity:    d.NegotiationQuantity,
		})
	})
	if err != nil {
		return nil, storeErr(err, "negotiation not found")
	}
	return out, nil
}

// syncQuota mirrors the negotiation figures onto its quota and applies the
// terminal outcomes. On acceptance the buyer pays previewAmount and the seller
// is owed newAmount.
func (s *Service) syncQuota(ctx context.Context, neg *models.Negotiation, now time.Time) error {
	quota, err := s.store.FindQuota(ctx, neg.QuotaID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.New(apperr.CodeStateConflict, "negotiation has no quota")
		}
		return err
	}
	if quota.Status != workflow.QuotaNegotiation {
		return apperr.Newf(apperr.CodeStateConflict, "quota is %s, not in negotiation", quota.Status)
	}

	details := neg.NegotiationDetails
	quota.NegotiationDetails = &details
	quota.UpdatedAt = now

	switch neg.Status {
	case workflow.NegotiationAccepted:
		quota.Status = workflow.QuotaAvailable
		quota.Amount = details.PreviewAmount
		quota.SellerAmount = details.NewAmount
		quota.Quantity = details.NegotiationQuantity
		quota.Negotiation = true
	case workflow.NegotiationRejected:
		quota.Status = workflow.QuotaQuoted
		quota.Negotiation = true
	}
	return s.store.ReplaceQuota(ctx, quota, workflow.QuotaNegotiation)
}
