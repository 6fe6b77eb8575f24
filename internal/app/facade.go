package app

import (
	"context"
	"time"

	"github.com/polkiloo/storepay/internal/domain/model"
	"github.com/polkiloo/storepay/internal/usecase"
)

// TransferSource lists recent transfers straight from the aggregator.
type TransferSource interface {
	Recent(ctx context.Context) ([]model.Transfer, error)
}

// HealthChecker reports storage availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PaymentFacade is the single entry point used by HTTP handlers and background workers.
type PaymentFacade struct {
	reconcile *usecase.ReconcileUseCase
	expiry    *usecase.ExpiryUseCase
	matcher   *usecase.OrderMatcher
	transfers TransferSource
	health    HealthChecker
}

func NewPaymentFacade(
	reconcile *usecase.ReconcileUseCase,
	expiry *usecase.ExpiryUseCase,
	matcher *usecase.OrderMatcher,
	transfers TransferSource,
	health HealthChecker,
) *PaymentFacade {
	return &PaymentFacade{
		reconcile: reconcile,
		expiry:    expiry,
		matcher:   matcher,
		transfers: transfers,
		health:    health,
	}
}

func (f *PaymentFacade) Authenticate(header string) error {
	return f.reconcile.Authenticate(header)
}

func (f *PaymentFacade) ApplyTransfer(ctx context.Context, t model.Transfer) (model.Reconciliation, error) {
	return f.reconcile.Apply(ctx, t)
}

func (f *PaymentFacade) Order(ctx context.Context, id string) (*model.Order, error) {
	return f.matcher.Lookup(ctx, id)
}

func (f *PaymentFacade) Health(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}

func (f *PaymentFacade) RecentTransfers(ctx context.Context) ([]model.Transfer, error) {
	return f.transfers.Recent(ctx)
}

func (f *PaymentFacade) ExpireOrders(ctx context.Context, now time.Time, limit int) (int, error) {
	return f.expiry.Sweep(ctx, now, limit)
}
