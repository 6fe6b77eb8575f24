package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/storepay/internal/domain/model"
	"github.com/polkiloo/storepay/internal/domain/repository"
)

const (
	defaultLease   = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// OutboxDispatcher relays committed outbox events to the publisher.
type OutboxDispatcher struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	interval  time.Duration
	batchSize int
	lease     time.Duration
	logger    *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewOutboxDispatcher constructs OutboxDispatcher.
func NewOutboxDispatcher(outbox repository.OutboxRepository, publisher Publisher, interval time.Duration, batch int, logger *slog.Logger) *OutboxDispatcher {
	if batch <= 0 {
		batch = 1
	}
	return &OutboxDispatcher{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batch,
		lease:     defaultLease,
		logger:    logger,
	}
}

// Start launches the dispatch loop.
func (d *OutboxDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.loop(runCtx)
}

// Stop cancels the loop and waits for in-flight publishing.
func (d *OutboxDispatcher) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *OutboxDispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.dispatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("outbox dispatch failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatch publishes one claimed batch and reports how many messages were delivered.
func (d *OutboxDispatcher) dispatch(ctx context.Context) (int, error) {
	messages, err := d.outbox.Claim(ctx, d.batchSize, d.lease)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range messages {
		if err := d.publishOne(ctx, msg); err != nil {
			d.logger.Warn("publish event failed",
				slog.Int64("message_id", msg.ID),
				slog.String("event_type", msg.EventType),
				slog.Int("attempts", msg.Attempts+1),
				slog.String("error", err.Error()))
			continue
		}
		sent++
	}
	return sent, nil
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, msg model.OutboxMessage) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, msg.EventType, msg.Payload); err != nil {
		if markErr := d.outbox.MarkFailed(ctx, msg.ID, time.Now().Add(retryDelay(msg.Attempts+1))); markErr != nil {
			d.logger.Error("schedule outbox retry failed", slog.Int64("message_id", msg.ID), slog.String("error", markErr.Error()))
		}
		return err
	}

	return d.outbox.MarkSent(ctx, msg.ID)
}

func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 5 {
		attempts = 5
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}
