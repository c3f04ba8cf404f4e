package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"b2bmarket/internal/workflow"
)

// Requirement is a buyer's submitted product need.
type Requirement struct {
	ID            primitive.ObjectID         `bson:"_id,omitempty" json:"_id"`
	ReqID         string                     `bson:"reqId" json:"reqId"`
	Name          string                     `bson:"name" json:"name"`
	Email         string                     `bson:"email" json:"email"`
	Mobile        string                     `bson:"mobile,omitempty" json:"mobile,omitempty"`
	Pincode       string                     `bson:"pincode,omitempty" json:"pincode,omitempty"`
	UserType      string                     `bson:"userType,omitempty" json:"userType,omitempty"`
	PID           string                     `bson:"pid,omitempty" json:"pid,omitempty"`
	ProductName   string                     `bson:"productName,omitempty" json:"productName,omitempty"`
	MinQty        int                        `bson:"minQty" json:"minQty"`
	Measurement   string                     `bson:"measurement" json:"measurement"`
	Specification string                     `bson:"specification,omitempty" json:"specification,omitempty"`
	Status        workflow.RequirementStatus `bson:"status" json:"status"`
	CreatedAt     time.Time                  `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time                  `bson:"updatedAt" json:"updatedAt"`
}

// SellerQuote is one seller's answer inside a quotation.
type SellerQuote struct {
	Email       string                     `bson:"email" json:"email"`
	Amount      float64                    `bson:"amount" json:"amount"`
	Status      workflow.SellerQuoteStatus `bson:"status" json:"status"`
	Description string                     `bson:"description,omitempty" json:"description,omitempty"`
	QuotedAt    *time.Time                 `bson:"quotedAt,omitempty" json:"quotedAt,omitempty"`
}

// Quotation groups the sellers an operator selected for one requirement.
type Quotation struct {
	ID                primitive.ObjectID         `bson:"_id,omitempty" json:"_id"`
	RequirementID     string                     `bson:"requirementId" json:"requirementId"`
	PID               string                     `bson:"pid,omitempty" json:"pid,omitempty"`
	SelectedCompanies []SellerQuote              `bson:"selectedCompanies" json:"selectedCompanies"`
	Status            workflow.SellerQuoteStatus `bson:"status" json:"status"`
	CreatedAt         time.Time                  `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time                  `bson:"updatedAt" json:"updatedAt"`
}

// QuotaRequirement is the buyer-facing line item combining requirement and
// seller quote. Stored in quotaRequirementCollection.
type QuotaRequirement struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	ReqID              string               `bson:"reqId" json:"reqId"`
	BuyerEmail         string               `bson:"buyer_email" json:"buyer_email"`
	SellerEmail        string               `bson:"seller_email" json:"seller_email"`
	ProductName        string               `bson:"productName,omitempty" json:"productName,omitempty"`
	Quantity           int                  `bson:"quantity" json:"quantity"`
	Measurement        string               `bson:"measurement,omitempty" json:"measurement,omitempty"`
	SellerAmount       float64              `bson:"sellerAmount" json:"-"`
	Amount             float64              `bson:"amount" json:"amount"`
	Commission         float64              `bson:"commission" json:"-"`
	Negotiation        bool                 `bson:"negotiation" json:"negotiation"`
	NegotiationDetails *NegotiationDetails  `bson:"negotiationDetails,omitempty" json:"negotiationDetails,omitempty"`
	NegID              string               `bson:"negId,omitempty" json:"negId,omitempty"`
	Status             workflow.QuotaStatus `bson:"status" json:"status"`
	CreatedAt          time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type NegotiationDetails struct {
	NegotiationAmount   float64 `bson:"negotiationAmount" json:"negotiationAmount"`
	NegotiationQuantity int     `bson:"negotiationQuantity" json:"negotiationQuantity"`
	PreviewAmount       float64 `bson:"previewAmount" json:"previewAmount"`
	PreviewQuantity     int     `bson:"previewQuantity" json:"previewQuantity"`
	NewAmount           float64 `bson:"newAmount" json:"newAmount"`
	Comment             string  `bson:"comment,omitempty" json:"comment,omitempty"`
}

// NegotiationEvent records one accepted transition.
type NegotiationEvent struct {
	From     workflow.NegotiationStatus `bson:"from" json:"from"`
	To       workflow.NegotiationStatus `bson:"to" json:"to"`
	Actor    string                     `bson:"actor" json:"actor"`
	Amount   float64                    `bson:"amount" json:"amount"`
	Quantity int                        `bson:"quantity" json:"quantity"`
	Comment  string                     `bson:"comment,omitempty" json:"comment,omitempty"`
	At       time.Time                  `bson:"at" json:"at"`
}

// Negotiation is linked to its quota by reqId and seller email.
// Version is bumped on every write and guards against lost updates.
type Negotiation struct {
	ID                 primitive.ObjectID         `bson:"_id,omitempty" json:"_id"`
	NegID              string                     `bson:"negId" json:"negId"`
	ReqID              string                     `bson:"reqId" json:"reqId"`
	QuotaID            primitive.ObjectID         `bson:"quotaId" json:"quotaId"`
	BuyerEmail         string                     `bson:"buyerEmail" json:"buyerEmail"`
	SellerEmail        string                     `bson:"sellerEmail" json:"sellerEmail"`
	NegotiationDetails NegotiationDetails         `bson:"negotiationDetails" json:"negotiationDetails"`
	Status             workflow.NegotiationStatus `bson:"status" json:"status"`
	Commission         float64                    `bson:"commission" json:"commission"`
	History            []NegotiationEvent         `bson:"history" json:"history"`
	Version            int64                      `bson:"version" json:"version"`
	CreatedAt          time.Time                  `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time                  `bson:"updatedAt" json:"updatedAt"`
}
