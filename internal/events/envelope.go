// Package events defines the domain events emitted by the sourcing workflow
// and the transports that carry them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeRequirementCreated = "requirement.created"
	TypeQuotationRequested = "quotation.requested"
	TypeQuotaCreated       = "quota.created"
	TypeNegotiationCreated = "negotiation.created"
	TypeNegotiationUpdated = "negotiation.updated"
	TypePaymentSaved       = "payment.saved"
)

// Envelope is the wire form of every event.
type Envelope struct {
	EventID     string          `json:"eventId"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Data        json.RawMessage `json:"data"`
}

// Decode unmarshals Data into T.
func Decode[T any](env Envelope) (T, error) {
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return out, nil
}

// Publisher delivers envelopes to subscribers.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Handler must return nil only when the event was fully processed.
type Handler func(ctx context.Context, env Envelope) error

type RequirementCreated struct {
	ReqID       string `json:"reqId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	ProductName string `json:"productName,omitempty"`
	MinQty      int    `json:"minQty"`
	Measurement string `json:"measurement"`
}

type QuotationRequested struct {
	RequirementID string `json:"requirementId"`
	PID           string `json:"pid,omitempty"`
	SellerEmail   string `json:"sellerEmail"`
}

type QuotaCreated struct {
	QuotaID     string  `json:"quotaId"`
	ReqID       string  `json:"reqId"`
	BuyerEmail  string  `json:"buyerEmail"`
	SellerEmail string  `json:"sellerEmail"`
	ProductName string  `json:"productName,omitempty"`
	Quantity    int     `json:"quantity"`
	Amount      float64 `json:"amount"`
}

type NegotiationCreated struct {
	NegID       string  `json:"negId"`
	ReqID       string  `json:"reqId"`
	BuyerEmail  string  `json:"buyerEmail"`
	SellerEmail string  `json:"sellerEmail"`
	Amount      float64 `json:"amount"`
	Quantity    int     `json:"quantity"`
}

type NegotiationUpdated struct {
	NegID       string  `json:"negId"`
	ReqID       string  `json:"reqId"`
	BuyerEmail  string  `json:"buyerEmail"`
	SellerEmail string  `json:"sellerEmail"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	NextActor   string  `json:"nextActor,omitempty"`
	NewAmount   float64 `json:"newAmount"`
	Quantity    int     `json:"quantity"`
}

type PaymentSaved struct {
	PaymentID  string   `json:"paymentId"`
	BuyerEmail string   `json:"buyerEmail"`
	Amount     float64  `json:"amount"`
	Currency   string   `json:"currency"`
	ReqIDs     []string `json:"reqIds"`
}
