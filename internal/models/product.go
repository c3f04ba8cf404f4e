package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	PID           string             `bson:"pid" json:"pid"`
	Name          string             `bson:"name" json:"name"`
	Slug          string             `bson:"slug" json:"slug"`
	CategoryID    int64              `bson:"categoryId" json:"categoryId"`
	SubcategoryID int64              `bson:"subcategoryId" json:"subcategoryId"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Measurement   string             `bson:"measurement,omitempty" json:"measurement,omitempty"`
	MinQty        int                `bson:"minQty" json:"minQty"`
	PriceMin      float64            `bson:"priceMin" json:"priceMin"`
	PriceMax      float64            `bson:"priceMax" json:"priceMax"`
	PriceLabel    string             `bson:"-" json:"priceLabel,omitempty"`
	Tags          StringList         `bson:"tags" json:"tags"`
	ImagePath     string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	IsDeleted     bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt     *time.Time         `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
