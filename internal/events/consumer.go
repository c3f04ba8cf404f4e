package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	retryInitialBackoff = 200 * time.Millisecond
	retryMaxBackoff     = 30 * time.Second
)

// Consumer reads envelopes with a consumer group and dispatches them to a
// worker pool. A partition always lands on the same worker, and a message is
// retried until it succeeds, so offsets are committed in order and a failed
// message is never skipped by a later commit.
type Consumer struct {
	r       *kafka.Reader
	workers int
	backoff Backoff
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	return &Consumer{
		r:       r,
		workers: workers,
		backoff: Backoff{Initial: retryInitialBackoff, Max: retryMaxBackoff},
	}
}

// workerFor pins a partition to one worker.
func workerFor(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}

// Run blocks until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message)
		wg.Add(1)
		go func(worker int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, worker, m, h)
			}
		}(i, queues[i])
	}
	defer wg.Wait()
	defer func() {
		for _, q := range queues {
			close(q)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case queues[workerFor(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, worker int, m kafka.Message, h Handler) {
	logger := log.With().
		Int("worker", worker).
		Int("partition", m.Partition).
		Int64("offset", m.Offset).
		Logger()

	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// undecodable messages are committed so the partition keeps moving
		logger.Error().Err(err).Msg("dropping undecodable event")
		c.commit(ctx, logger, m)
		return
	}

	err := c.backoff.Retry(ctx, func(attempt int) error {
		err := h(ctx, env)
		if err != nil {
			logger.Error().Err(err).
				Str("event_id", env.EventID).
				Str("type", env.Type).
				Int("attempt", attempt).
				Msg("event handler failed")
		}
		return err
	})
	if err != nil {
		// shutdown: leave the offset uncommitted so the group redelivers it
		return
	}
	c.commit(ctx, logger, m)
}

func (c *Consumer) commit(ctx context.Context, logger zerolog.Logger, m kafka.Message) {
	if err := c.r.CommitMessages(ctx, m); err != nil {
		logger.Error().Err(err).Msg("commit failed")
	}
}

// Backoff retries with exponential delays capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Retry calls fn until it succeeds or ctx is done, returning ctx's error in
// the latter case.
func (b Backoff) Retry(ctx context.Context, fn func(attempt int) error) error {
	delay := b.Initial
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fn(attempt) == nil {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > b.Max {
			delay = b.Max
		}
	}
}
