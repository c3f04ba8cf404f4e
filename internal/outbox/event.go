// Package outbox persists domain events in the same transaction as the
// business write and relays them to the event transport afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"b2bmarket/internal/events"
)

const maxAttempts = 10

type Event struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	EventID     string             `bson:"eventId"`
	Type        string             `bson:"type"`
	AggregateID string             `bson:"aggregateId"`
	Payload     []byte             `bson:"payload"`
	CreatedAt   time.Time          `bson:"createdAt"`
	PublishedAt *time.Time         `bson:"publishedAt"`
	Attempts    int                `bson:"attempts"`
	LastError   string             `bson:"lastError,omitempty"`
}

// New marshals data as the event payload.
func New(eventType, aggregateID string, data any, at time.Time) (Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		EventID:     uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		CreatedAt:   at.UTC(),
	}, nil
}

func (e Event) Envelope() events.Envelope {
	return events.Envelope{
		EventID:     e.EventID,
		Type:        e.Type,
		AggregateID: e.AggregateID,
		OccurredAt:  e.CreatedAt,
		Data:        json.RawMessage(e.Payload),
	}
}
