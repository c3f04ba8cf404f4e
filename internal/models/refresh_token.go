package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshToken stores only the sha256 of the issued token.
type RefreshToken struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID  `bson:"userId" json:"userId"`
	Role       string              `bson:"role" json:"role"`
	TokenHash  string              `bson:"tokenHash" json:"-"`
	ExpiresAt  time.Time           `bson:"expiresAt" json:"expiresAt"`
	Revoked    bool                `bson:"revoked" json:"revoked"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	ReplacedBy *primitive.ObjectID `bson:"replacedBy,omitempty" json:"replacedBy,omitempty"`
}
