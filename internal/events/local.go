package events

import (
	"context"
	"sync"
)

// LocalBus delivers envelopes to in-process handlers. It stands in for Kafka
// when no brokers are configured.
type LocalBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish runs every handler synchronously and returns the first error.
func (b *LocalBus) Publish(ctx context.Context, env Envelope) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, env); err != nil {
			return err
		}
	}
	return nil
}
