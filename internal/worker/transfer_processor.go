package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/storepay/internal/adapter/sepay"
	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
	"github.com/polkiloo/storepay/internal/domain/model"
)

// PaymentFacade exposes the subset of application functionality required by the backfill worker.
type PaymentFacade interface {
	RecentTransfers(ctx context.Context) ([]model.Transfer, error)
	ApplyTransfer(ctx context.Context, t model.Transfer) (model.Reconciliation, error)
}

// TransferProcessor polls the aggregator for recent transfers and feeds them
// through reconciliation concurrently. Transfers already applied through the
// webhook come back as duplicates.
type TransferProcessor struct {
	facade       PaymentFacade
	pollInterval time.Duration
	workers      int
	logger       *slog.Logger

	jobs   chan model.Transfer
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewTransferProcessor constructs transfer processor worker pool.
func NewTransferProcessor(facade PaymentFacade, pollInterval time.Duration, workers int, logger *slog.Logger) *TransferProcessor {
	if workers <= 0 {
		workers = 1
	}
	return &TransferProcessor{
		facade:       facade,
		pollInterval: pollInterval,
		workers:      workers,
		logger:       logger,
		jobs:         make(chan model.Transfer, workers*4),
	}
}

// Start launches background processing.
func (p *TransferProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (p *TransferProcessor) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *TransferProcessor) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchAndDispatch(ctx)
		}
	}
}

func (p *TransferProcessor) fetchAndDispatch(ctx context.Context) {
	transfers, err := p.facade.RecentTransfers(ctx)
	if err != nil {
		var rateLimited sepay.TooManyRequestsError
		switch {
		case errors.As(err, &rateLimited):
			p.logger.Warn("sepay rate limited", slog.Duration("retry_after", rateLimited.RetryAfter))
			sleep(ctx, rateLimited.RetryAfter)
		case errors.Is(err, sepay.ErrInvalidToken):
			p.logger.Error("sepay token rejected, backfill paused until next poll")
		default:
			p.logger.Error("fetch recent transfers failed", slog.String("error", err.Error()))
		}
		return
	}
	for _, transfer := range transfers {
		select {
		case <-ctx.Done():
			return
		case p.jobs <- transfer:
		}
	}
}

func (p *TransferProcessor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case transfer, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handleTransfer(ctx, transfer)
		}
	}
}

func (p *TransferProcessor) handleTransfer(ctx context.Context, transfer model.Transfer) {
	res, err := p.facade.ApplyTransfer(ctx, transfer)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, domainErrors.ErrInvalidTransfer) {
			level = slog.LevelWarn
		}
		p.logger.Log(ctx, level, "backfill transfer failed",
			slog.Int64("transaction_id", transfer.TransactionID),
			slog.String("error", err.Error()))
		return
	}
	if res.Outcome == model.OutcomeCompleted || res.Outcome == model.OutcomeFailed {
		p.logger.Info("backfill recovered missed transfer",
			slog.Int64("transaction_id", transfer.TransactionID),
			slog.String("order_id", res.OrderID),
			slog.String("outcome", string(res.Outcome)))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
