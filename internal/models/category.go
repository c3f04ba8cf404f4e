package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is a top-level catalog group. CategoryID is the sequential display id.
type Category struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CategoryID    int64              `bson:"id" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Slug          string             `bson:"slug" json:"slug"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	ImagePath     string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	Subcategories []Subcategory      `bson:"-" json:"subcategories,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Subcategory ids are sequential per parent category.
type Subcategory struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	SubcategoryID int64              `bson:"subcategoryId" json:"subcategoryId"`
	CategoryID    int64              `bson:"categoryId" json:"categoryId"`
	Name          string             `bson:"name" json:"name"`
	Slug          string             `bson:"slug" json:"slug"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	Products      []ProductSummary   `bson:"-" json:"products,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// ProductSummary is the slice of a product embedded in the category tree.
type ProductSummary struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	PID       string             `bson:"pid" json:"pid"`
	Name      string             `bson:"name" json:"name"`
	Slug      string             `bson:"slug" json:"slug"`
	ImagePath string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
}
