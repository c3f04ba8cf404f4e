package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"b2bmarket/internal/events"
	"b2bmarket/internal/metrics"
)

type Repository interface {
	FetchUnpublished(ctx context.Context, limit int64) ([]Event, error)
	MarkPublished(ctx context.Context, id primitive.ObjectID, at time.Time) error
	MarkFailed(ctx context.Context, id primitive.ObjectID, cause error) error
}

// Relay moves unpublished outbox rows to a publisher in creation order.
type Relay struct {
	repo    Repository
	pub     events.Publisher
	batch   int64
	timeout time.Duration
	now     func() time.Time
	running atomic.Bool
}

func NewRelay(repo Repository, pub events.Publisher, batch int64) *Relay {
	if batch <= 0 {
		batch = 50
	}
	return &Relay{
		repo:    repo,
		pub:     pub,
		batch:   batch,
		timeout: 15 * time.Second,
		now:     time.Now,
	}
}

// RunOnce publishes one batch. A failed event is recorded and left for the
// next run; the rest of the batch still goes out.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.repo.FetchUnpublished(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, ev := range pending {
		pubCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.pub.Publish(pubCtx, ev.Envelope())
		cancel()
		metrics.RecordOutbox(ev.Type, err == nil)

		if err != nil {
			log.Warn().Err(err).
				Str("event_id", ev.EventID).
				Str("type", ev.Type).
				Int("attempts", ev.Attempts+1).
				Msg("outbox publish failed")
			if markErr := r.repo.MarkFailed(ctx, ev.ID, err); markErr != nil {
				return published, markErr
			}
			continue
		}
		if err := r.repo.MarkPublished(ctx, ev.ID, r.now().UTC()); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}

// Schedule registers the relay on c. Overlapping runs are skipped.
func (r *Relay) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if !r.running.CompareAndSwap(false, true) {
			return
		}
		defer r.running.Store(false)

		n, err := r.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("outbox relay run failed")
			return
		}
		if n > 0 {
			log.Debug().Int("published", n).Msg("outbox relay run")
		}
	})
}
