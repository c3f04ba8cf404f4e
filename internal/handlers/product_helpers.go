package handlers

import (
	"context"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"b2bmarket/internal/models"
)

// normalizeProductDocument coerces fields that spreadsheet imports store as
// strings or doubles before decoding into models.Product.
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	for _, key := range []string{"categoryId", "subcategoryId", "minQty"} {
		val, ok := raw[key]
		if !ok {
			continue
		}
		switch typed := val.(type) {
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
			if err != nil {
				n = 0
			}
			raw[key] = n
		case float64:
			raw[key] = int64(typed)
		}
	}
	for _, key := range []string{"priceMin", "priceMax"} {
		if typed, ok := raw[key].(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
			if err != nil {
				f = 0
			}
			raw[key] = f
		}
	}
	if _, ok := raw["isActive"]; !ok {
		raw["isActive"] = true
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}

	p.PriceLabel = priceLabel(p.PriceMin, p.PriceMax)
	return p, nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
