package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// Address represents a single delivery address entry for a user.
type Address struct {
	ID        string `bson:"id" json:"id"`
	Title     string `bson:"title" json:"title"`
	Detail    string `bson:"detail" json:"detail"`
	Pincode   string `bson:"pincode,omitempty" json:"pincode,omitempty"`
	Note      string `bson:"note,omitempty" json:"note,omitempty"`
	IsDefault bool   `bson:"isDefault" json:"isDefault"`
}

// User is a buyer, seller or admin account.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Mobile       string             `bson:"mobile,omitempty" json:"mobile,omitempty"`
	Role         string             `bson:"role" json:"role"`
	CompanyName  string             `bson:"companyName,omitempty" json:"companyName,omitempty"`
	GSTNumber    string             `bson:"gstNumber,omitempty" json:"gstNumber,omitempty"`
	Pincode      string             `bson:"pincode,omitempty" json:"pincode,omitempty"`
	Addresses    []Address          `bson:"addresses" json:"addresses"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Counter backs the auto-increment sequences.
type Counter struct {
	ID  string `bson:"_id" json:"id"`
	Seq int64  `bson:"seq" json:"seq"`
}
