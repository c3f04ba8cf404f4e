package workflow

import (
	"fmt"

	"b2bmarket/internal/apperr"
)

// NegotiationStatus is the lifecycle of a counter-offer thread between buyer, admin and seller.
type NegotiationStatus string

const (
	NegotiationAdminPending              NegotiationStatus = "admin_pending"
	NegotiationSellerResponded           NegotiationStatus = "seller_responded"
	NegotiationAdminCounterOffer         NegotiationStatus = "admin_counter_offer"
	NegotiationSellerPending             NegotiationStatus = "seller_pending"
	NegotiationAdminResponded            NegotiationStatus = "admin_responded"
	NegotiationSellerCounterOffer        NegotiationStatus = "seller_counter_offer"
	NegotiationAdminToCustomerPending    NegotiationStatus = "admin_to_customer_pending"
	NegotiationCustomerResponded         NegotiationStatus = "customer_responded"
	NegotiationAdminCustomerCounterOffer NegotiationStatus = "admin_customer_counter_offer"
	NegotiationAccepted                  NegotiationStatus = "accepted"
	NegotiationRejected                  NegotiationStatus = "rejected"
)

// happyPath is the canonical forward order of a negotiation.
var happyPath = []NegotiationStatus{
	NegotiationAdminPending,
	NegotiationSellerResponded,
	NegotiationAdminCounterOffer,
	NegotiationSellerPending,
	NegotiationAdminResponded,
	NegotiationSellerCounterOffer,
	NegotiationAdminToCustomerPending,
	NegotiationCustomerResponded,
	NegotiationAdminCustomerCounterOffer,
	NegotiationAccepted,
}

var negotiationTransitions = map[NegotiationStatus][]NegotiationStatus{
	NegotiationAdminPending:              {NegotiationSellerResponded, NegotiationRejected},
	NegotiationSellerResponded:           {NegotiationAdminCounterOffer, NegotiationAdminToCustomerPending, NegotiationRejected},
	NegotiationAdminCounterOffer:         {NegotiationSellerPending, NegotiationRejected},
	NegotiationSellerPending:             {NegotiationAdminResponded, NegotiationRejected},
	NegotiationAdminResponded:            {NegotiationSellerCounterOffer, NegotiationAdminToCustomerPending, NegotiationRejected},
	NegotiationSellerCounterOffer:        {NegotiationAdminToCustomerPending, NegotiationAdminCounterOffer, NegotiationRejected},
	NegotiationAdminToCustomerPending:    {NegotiationCustomerResponded, NegotiationAccepted, NegotiationRejected},
	NegotiationCustomerResponded:         {NegotiationAdminCustomerCounterOffer, NegotiationAccepted, NegotiationRejected},
	NegotiationAdminCustomerCounterOffer: {NegotiationCustomerResponded, NegotiationAccepted, NegotiationRejected},
	NegotiationAccepted:                  nil,
	NegotiationRejected:                  nil,
}

// Party identifies who is expected to move a negotiation into a status.
type Party string

const (
	PartyAdmin  Party = "admin"
	PartySeller Party = "seller"
	PartyBuyer  Party = "buyer"
)

var actorByStatus = map[NegotiationStatus]Party{
	NegotiationSellerResponded:           PartySeller,
	NegotiationAdminCounterOffer:         PartyAdmin,
	NegotiationSellerPending:             PartyAdmin,
	NegotiationAdminResponded:            PartyAdmin,
	NegotiationSellerCounterOffer:        PartySeller,
	NegotiationAdminToCustomerPending:    PartyAdmin,
	NegotiationCustomerResponded:         PartyBuyer,
	NegotiationAdminCustomerCounterOffer: PartyAdmin,
	NegotiationAccepted:                  PartyBuyer,
}

func (s NegotiationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known NegotiationStatus.
func (s NegotiationStatus) IsValid() bool {
	_, ok := negotiationTransitions[s]
	return ok
}

func (s NegotiationStatus) IsTerminal() bool {
	return s == NegotiationAccepted || s == NegotiationRejected
}

// Actor returns the party allowed to move a negotiation into s. Rejection is open to any party.
func (s NegotiationStatus) Actor() (Party, bool) {
	party, ok := actorByStatus[s]
	return party, ok
}

// Awaiting returns the party expected to make the next non-rejecting move.
func (s NegotiationStatus) Awaiting() (Party, bool) {
	for _, next := range negotiationTransitions[s] {
		if next == NegotiationRejected {
			continue
		}
		if party, ok := next.Actor(); ok {
			return party, true
		}
	}
	return "", false
}

func ParseNegotiationStatus(value string) (NegotiationStatus, error) {
	status := NegotiationStatus(value)
	if !status.IsValid() {
		return "", apperr.Validation(fmt.Sprintf("invalid negotiation status %q", value))
	}
	return status, nil
}

func CanTransition(from, to NegotiationStatus) bool {
	for _, candidate := range negotiationTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition validates a move between two statuses.
func Transition(from, to NegotiationStatus) error {
	if !from.IsValid() {
		return apperr.New(apperr.CodeStateConflict, fmt.Sprintf("negotiation is in unknown status %q", from))
	}
	if !to.IsValid() {
		return apperr.Validation(fmt.Sprintf("invalid negotiation status %q", to))
	}
	if !CanTransition(from, to) {
		return apperr.New(apperr.CodeStateConflict, fmt.Sprintf("negotiation cannot move from %s to %s", from, to))
	}
	return nil
}

// Next returns the happy-path successor of from.
func Next(from NegotiationStatus) (NegotiationStatus, error) {
	for i, status := range happyPath {
		if status == from && i+1 < len(happyPath) {
			return happyPath[i+1], nil
		}
	}
	if from.IsTerminal() {
		return "", apperr.New(apperr.CodeStateConflict, fmt.Sprintf("negotiation already %s", from))
	}
	return "", apperr.New(apperr.CodeStateConflict, fmt.Sprintf("negotiation is in unknown status %q", from))
}
