package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiryFacade exposes order expiry to the sweeper.
type ExpiryFacade interface {
	ExpireOrders(ctx context.Context, now time.Time, limit int) (int, error)
}

// ExpirySweeper periodically expires overdue pending orders.
type ExpirySweeper struct {
	facade    ExpiryFacade
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	now       func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewExpirySweeper constructs ExpirySweeper.
func NewExpirySweeper(facade ExpiryFacade, interval time.Duration, batchSize int, logger *slog.Logger) *ExpirySweeper {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &ExpirySweeper{
		facade:    facade,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Start launches the sweep loop.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(runCtx)
}

// Stop waits for the running sweep to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep drains overdue orders batch by batch.
func (s *ExpirySweeper) sweep(ctx context.Context) {
	for ctx.Err() == nil {
		count, err := s.facade.ExpireOrders(ctx, s.now(), s.batchSize)
		if err != nil {
			s.logger.Error("expire overdue orders failed", slog.String("error", err.Error()))
			return
		}
		if count < s.batchSize {
			return
		}
	}
}
