package sourcing

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"b2bmarket/internal/database"
	"b2bmarket/internal/models"
	"b2bmarket/internal/outbox"
	"b2bmarket/internal/workflow"
)

type MongoStore struct {
	db           *mongo.Database
	transactions bool
	outbox       *outbox.MongoRepository
}

func NewMongoStore(db *mongo.Database, transactions bool) *MongoStore {
	return &MongoStore{
		db:           db,
		transactions: transactions,
		outbox:       outbox.NewMongoRepository(db, database.CollOutbox),
	}
}

func (s *MongoStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTransaction(ctx, s.db.Client(), s.transactions, fn)
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if database.IsDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func matchedOrConflict(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return mapWriteErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

/* =========================
   REQUIREMENTS
========================= */

func (s *MongoStore) InsertRequirement(ctx context.Context, r *models.Requirement) error {
	res, err := s.db.Collection(database.CollRequirements).InsertOne(ctx, r)
	if err != nil {
		return mapWriteErr(err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		r.ID = oid
	}
	return nil
}

func (s *MongoStore) FindRequirement(ctx context.Context, reqID string) (*models.Requirement, error) {
	return findOne[models.Requirement](ctx, s.db.Collection(database.CollRequirements), bson.M{"reqId": reqID})
}

func (s *MongoStore) SetRequirementStatus(ctx context.Context, reqID string, from, to workflow.RequirementStatus, at time.Time) error {
	res, err := s.db.Collection(database.CollRequirements).UpdateOne(ctx,
		bson.M{"reqId": reqID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": at}},
	)
	return matchedOrConflict(res, err)
}

/* =========================
   QUOTATIONS
========================= */

func (s *MongoStore) InsertQuotation(ctx context.Context, q *models.Quotation) error {
	res, err := s.db.Collection(database.CollQuotations).InsertOne(ctx, q)
	if err != nil {
		return mapWriteErr(err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		q.ID = oid
	}
	return nil
}

func (s *MongoStore) FindQuotation(ctx context.Context, requirementID string) (*models.Quotation, error) {
	return findOne[models.Quotation](ctx, s.db.Collection(database.CollQuotations), bson.M{"requirementId": requirementID})
}

// SetSellerQuote only matches a seller entry that is still pending.
func (s *MongoStore) SetSellerQuote(ctx context.Context, requirementID, sellerEmail string, amount float64, description string, at time.Time) error {
	filter := bson.M{
		"requirementId": requirementID,
		"selectedCompanies": bson.M{"$elemMatch": bson.M{
			"email":  sellerEmail,
			"status": workflow.SellerQuotePending,
		}},
	}
	update := bson.M{"$set": bson.M{
		"selectedCompanies.$.amount":      amount,
		"selectedCompanies.$.description": description,
		"selectedCompanies.$.status":      workflow.SellerQuoteQuoted,
		"selectedCompanies.$.quotedAt":    at,
		"status":                          workflow.SellerQuoteQuoted,
		"updatedAt":                       at,
	}}
	res, err := s.db.Collection(database.CollQuotations).UpdateOne(ctx, filter, update)
	return matchedOrConflict(res, err)
}

/* =========================
   QUOTAS
========================= */

func (s *MongoStore) InsertQuota(ctx context.Context, q *models.QuotaRequirement) error {
	res, err := s.db.Collection(database.CollQuotas).InsertOne(ctx, q)
	if err != nil {
		return mapWriteErr(err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		q.ID = oid
	}
	return nil
}

func (s *MongoStore) FindQuota(ctx context.Context, id primitive.ObjectID) (*models.QuotaRequirement, error) {
	return findOne[models.QuotaRequirement](ctx, s.db.Collection(database.CollQuotas), bson.M{"_id": id})
}

func (s *MongoStore) FindQuotaBySeller(ctx context.Context, reqID, sellerEmail string) (*models.QuotaRequirement, error) {
	return findOne[models.QuotaRequirement](ctx, s.db.Collection(database.CollQuotas), bson.M{
		"reqId":        reqID,
		"seller_email": sellerEmail,
	})
}

func (s *MongoStore) ReplaceQuota(ctx context.Context, q *models.QuotaRequirement, expected workflow.QuotaStatus) error {
	res, err := s.db.Collection(database.CollQuotas).ReplaceOne(ctx,
		bson.M{"_id": q.ID, "status": expected},
		q,
	)
	return matchedOrConflict(res, err)
}

/* =========================
   NEGOTIATIONS
========================= */

func (s *MongoStore) InsertNegotiation(ctx context.Context, n *models.Negotiation) error {
	res, err := s.db.Collection(database.CollNegotiations).InsertOne(ctx, n)
	if err != nil {
		return mapWriteErr(err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		n.ID = oid
	}
	return nil
}

// FindNegotiation accepts either the negId or the document's ObjectID hex.
func (s *MongoStore) FindNegotiation(ctx context.Context, id string) (*models.Negotiation, error) {
	filter := bson.M{"negId": id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		filter = bson.M{"$or": bson.A{bson.M{"negId": id}, bson.M{"_id": oid}}}
	}
	return findOne[models.Negotiation](ctx, s.db.Collection(database.CollNegotiations), filter)
}

func (s *MongoStore) ReplaceNegotiation(ctx context.Context, n *models.Negotiation, expectedVersion int64) error {
	res, err := s.db.Collection(database.CollNegotiations).ReplaceOne(ctx,
		bson.M{"_id": n.ID, "version": expectedVersion},
		n,
	)
	return matchedOrConflict(res, err)
}

/* =========================
   PAYMENTS + OUTBOX
========================= */

func (s *MongoStore) InsertPayment(ctx context.Context, p *models.Payment) error {
	res, err := s.db.Collection(database.CollPayments).InsertOne(ctx, p)
	if err != nil {
		return mapWriteErr(err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = oid
	}
	return nil
}

func (s *MongoStore) FindPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return findOne[models.Payment](ctx, s.db.Collection(database.CollPayments), bson.M{"paymentId": paymentID})
}

func (s *MongoStore) Enqueue(ctx context.Context, ev outbox.Event) error {
	return s.outbox.Enqueue(ctx, ev)
}
