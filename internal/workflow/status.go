package workflow

import (
	"fmt"

	"b2bmarket/internal/apperr"
)

// QuotaStatus tracks a buyer-facing quoted line item.
type QuotaStatus string

const (
	QuotaQuoted      QuotaStatus = "Quoted"
	QuotaNegotiation QuotaStatus = "Negotiation"
	QuotaAvailable   QuotaStatus = "available"
	QuotaCompleted   QuotaStatus = "completed"
)

var quotaTransitions = map[QuotaStatus][]QuotaStatus{
	QuotaQuoted:      {QuotaNegotiation, QuotaAvailable},
	QuotaNegotiation: {QuotaAvailable, QuotaQuoted},
	QuotaAvailable:   {QuotaCompleted},
	QuotaCompleted:   nil,
}

func (s QuotaStatus) IsValid() bool {
	_, ok := quotaTransitions[s]
	return ok
}

func ParseQuotaStatus(value string) (QuotaStatus, error) {
	status := QuotaStatus(value)
	if !status.IsValid() {
		return "", apperr.Validation(fmt.Sprintf("invalid quota status %q", value))
	}
	return status, nil
}

func QuotaTransition(from, to QuotaStatus) error {
	for _, candidate := range quotaTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return apperr.New(apperr.CodeStateConflict, fmt.Sprintf("quota cannot move from %s to %s", from, to))
}

// RequirementStatus tracks a buyer requirement from intake to fulfilment.
type RequirementStatus string

const (
	RequirementPending   RequirementStatus = "pending"
	RequirementQuoted    RequirementStatus = "Quoted"
	RequirementCompleted RequirementStatus = "completed"
	RequirementCancelled RequirementStatus = "cancelled"
)

var requirementTransitions = map[RequirementStatus][]RequirementStatus{
	RequirementPending:   {RequirementQuoted, RequirementCancelled},
	RequirementQuoted:    {RequirementCompleted, RequirementCancelled},
	RequirementCompleted: nil,
	RequirementCancelled: nil,
}

func (s RequirementStatus) IsValid() bool {
	_, ok := requirementTransitions[s]
	return ok
}

func ParseRequirementStatus(value string) (RequirementStatus, error) {
	status := RequirementStatus(value)
	if !status.IsValid() {
		return "", apperr.Validation(fmt.Sprintf("invalid requirement status %q", value))
	}
	return status, nil
}

func RequirementTransition(from, to RequirementStatus) error {
	if from == to && to == RequirementQuoted {
		// a requirement collects several quotes; re-quoting is a no-op
		return nil
	}
	for _, candidate := range requirementTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return apperr.New(apperr.CodeStateConflict, fmt.Sprintf("requirement cannot move from %s to %s", from, to))
}

// SellerQuoteStatus is the per-seller state inside a quotation.
type SellerQuoteStatus string

const (
	SellerQuotePending SellerQuoteStatus = "pending"
	SellerQuoteQuoted  SellerQuoteStatus = "Quoted"
)
