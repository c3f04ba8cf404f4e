package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const PaymentCaptured = "captured"

// PaymentItem is one paid quota line.
type PaymentItem struct {
	ReqID       string             `bson:"reqId" json:"reqId"`
	QuotaID     primitive.ObjectID `bson:"quotaId" json:"quotaId"`
	SellerEmail string             `bson:"sellerEmail" json:"sellerEmail"`
	ProductName string             `bson:"productName,omitempty" json:"productName,omitempty"`
	Quantity    int                `bson:"quantity" json:"quantity"`
	Amount      float64            `bson:"amount" json:"amount"`
}

// OrderDetails is the snapshot of what the buyer paid for.
type OrderDetails struct {
	Items []PaymentItem `bson:"items" json:"items"`
}

type Payment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	PaymentID      string             `bson:"paymentId" json:"paymentId"`
	GatewayOrderID string             `bson:"orderId,omitempty" json:"orderId,omitempty"`
	Signature      string             `bson:"signature,omitempty" json:"-"`
	Amount         float64            `bson:"amount" json:"amount"`
	Currency       string             `bson:"currency" json:"currency"`
	Status         string             `bson:"status" json:"status"`
	BuyerEmail     string             `bson:"buyerEmail" json:"buyerEmail"`
	OrderDetails   OrderDetails       `bson:"orderDetails" json:"orderDetails"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}
