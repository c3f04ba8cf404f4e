package sourcing

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"b2bmarket/internal/models"
	"b2bmarket/internal/outbox"
	"b2bmarket/internal/workflow"
)

// memStore is an in-memory Store. WithinTx restores the previous state when
// fn fails, which is what a Mongo transaction abort does.
type memStore struct {
	mu sync.Mutex

	requirements map[string]models.Requirement
	quotations   map[string]models.Quotation
	quotas       map[primitive.ObjectID]models.QuotaRequirement
	negotiations map[string]models.Negotiation
	payments     map[string]models.Payment
	outbox       []outbox.Event

	duplicateRequirementInserts int
	requirementInserts          []string
	enqueueErr                  error
	beforeReplaceNegotiation    func(s *memStore, negID string)
}

func newMemStore() *memStore {
	return &memStore{
		requirements: map[string]models.Requirement{},
		quotations:   map[string]models.Quotation{},
		quotas:       map[primitive.ObjectID]models.QuotaRequirement{},
		negotiations: map[string]models.Negotiation{},
		payments:     map[string]models.Payment{},
	}
}

type memSnapshot struct {
	requirements map[string]models.Requirement
	quotations   map[string]models.Quotation
	quotas       map[primitive.ObjectID]models.QuotaRequirement
	negotiations map[string]models.Negotiation
	payments     map[string]models.Payment
	outbox       []outbox.Event
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snap := memSnapshot{
		requirements: cloneMap(s.requirements),
		quotations:   cloneMap(s.quotations),
		quotas:       cloneMap(s.quotas),
		negotiations: cloneMap(s.negotiations),
		payments:     cloneMap(s.payments),
		outbox:       append([]outbox.Event(nil), s.outbox...),
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.requirements = snap.requirements
		s.quotations = snap.quotations
		s.quotas = snap.quotas
		s.negotiations = snap.negotiations
		s.payments = snap.payments
		s.outbox = snap.outbox
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) InsertRequirement(ctx context.Context, r *models.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requirementInserts = append(s.requirementInserts, r.ReqID)
	if s.duplicateRequirementInserts > 0 {
		s.duplicateRequirementInserts--
		return ErrDuplicate
	}
	if _, ok := s.requirements[r.ReqID]; ok {
		return ErrDuplicate
	}
	r.ID = primitive.NewObjectID()
	s.requirements[r.ReqID] = *r
	return nil
}

func (s *memStore) FindRequirement(ctx context.Context, reqID string) (*models.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requirements[reqID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *memStore) SetRequirementStatus(ctx context.Context, reqID string, from, to workflow.RequirementStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requirements[reqID]
	if !ok || r.Status != from {
		return ErrConflict
	}
	r.Status = to
	r.UpdatedAt = at
	s.requirements[reqID] = r
	return nil
}

func (s *memStore) InsertQuotation(ctx context.Context, q *models.Quotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quotations[q.RequirementID]; ok {
		return ErrDuplicate
	}
	q.ID = primitive.NewObjectID()
	stored := *q
	stored.SelectedCompanies = append([]models.SellerQuote(nil), q.SelectedCompanies...)
	s.quotations[q.RequirementID] = stored
	return nil
}

func (s *memStore) FindQuotation(ctx context.Context, requirementID string) (*models.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotations[requirementID]
	if !ok {
		return nil, ErrNotFound
	}
	q.SelectedCompanies = append([]models.SellerQuote(nil), q.SelectedCompanies...)
	return &q, nil
}

func (s *memStore) SetSellerQuote(ctx context.Context, requirementID, sellerEmail string, amount float64, description string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotations[requirementID]
	if !ok {
		return ErrConflict
	}
	companies := append([]models.SellerQuote(nil), q.SelectedCompanies...)
	for i := range companies {
		if companies[i].Email == sellerEmail && companies[i].Status == workflow.SellerQuotePending {
			quotedAt := at
			companies[i].Amount = amount
			companies[i].Description = description
			companies[i].Status = workflow.SellerQuoteQuoted
			companies[i].QuotedAt = &quotedAt
			q.SelectedCompanies = companies
			q.Status = workflow.SellerQuoteQuoted
			q.UpdatedAt = at
			s.quotations[requirementID] = q
			return nil
		}
	}
	return ErrConflict
}

func (s *memStore) InsertQuota(ctx context.Context, q *models.QuotaRequirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.quotas {
		if existing.ReqID == q.ReqID && existing.SellerEmail == q.SellerEmail {
			return ErrDuplicate
		}
	}
	q.ID = primitive.NewObjectID()
	s.quotas[q.ID] = copyQuota(*q)
	return nil
}

func copyQuota(q models.QuotaRequirement) models.QuotaRequirement {
	if q.NegotiationDetails != nil {
		d := *q.NegotiationDetails
		q.NegotiationDetails = &d
	}
	return q
}

func (s *memStore) FindQuota(ctx context.Context, id primitive.ObjectID) (*models.QuotaRequirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[id]
	if !ok {
		return nil, ErrNotFound
	}
	q = copyQuota(q)
	return &q, nil
}

func (s *memStore) FindQuotaBySeller(ctx context.Context, reqID, sellerEmail string) (*models.QuotaRequirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.quotas {
		if q.ReqID == reqID && q.SellerEmail == sellerEmail {
			q = copyQuota(q)
			return &q, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) ReplaceQuota(ctx context.Context, q *models.QuotaRequirement, expected workflow.QuotaStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.quotas[q.ID]
	if !ok || current.Status != expected {
		return ErrConflict
	}
	s.quotas[q.ID] = copyQuota(*q)
	return nil
}

func (s *memStore) InsertNegotiation(ctx context.Context, n *models.Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.negotiations[n.NegID]; ok {
		return ErrDuplicate
	}
	n.ID = primitive.NewObjectID()
	stored := *n
	stored.History = append([]models.NegotiationEvent(nil), n.History...)
	s.negotiations[n.NegID] = stored
	return nil
}

func (s *memStore) FindNegotiation(ctx context.Context, id string) (*models.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, n := range s.negotiations {
		if key == id || n.ID.Hex() == id {
			n.History = append([]models.NegotiationEvent(nil), n.History...)
			return &n, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) ReplaceNegotiation(ctx context.Context, n *models.Negotiation, expectedVersion int64) error {
	if s.beforeReplaceNegotiation != nil {
		s.beforeReplaceNegotiation(s, n.NegID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.negotiations[n.NegID]
	if !ok || current.Version != expectedVersion {
		return ErrConflict
	}
	stored := *n
	stored.History = append([]models.NegotiationEvent(nil), n.History...)
	s.negotiations[n.NegID] = stored
	return nil
}

func (s *memStore) InsertPayment(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.PaymentID]; ok {
		return ErrDuplicate
	}
	p.ID = primitive.NewObjectID()
	s.payments[p.PaymentID] = *p
	return nil
}

func (s *memStore) FindPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *memStore) Enqueue(ctx context.Context, ev outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.outbox = append(s.outbox, ev)
	return nil
}

func (s *memStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.outbox))
	for _, ev := range s.outbox {
		out = append(out, ev.Type)
	}
	return out
}
