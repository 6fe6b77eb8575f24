package test

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
	"github.com/polkiloo/storepay/internal/domain/model"
)

// AuthenticatorStub accepts a single header value.
type AuthenticatorStub struct {
	Header string
}

// Authenticate compares header with the configured one.
func (a AuthenticatorStub) Authenticate(header string) error {
	if header == "" || header != a.Header {
		return domainErrors.ErrUnauthorized
	}
	return nil
}

// OrderUpdate is a recorded notification.
type OrderUpdate struct {
	OrderID string
	Status  model.OrderStatus
}

// NotifierStub records order updates.
type NotifierStub struct {
	mu      sync.Mutex
	Updates []OrderUpdate
}

// OrderUpdated stores update.
func (n *NotifierStub) OrderUpdated(orderID string, status model.OrderStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Updates = append(n.Updates, OrderUpdate{OrderID: orderID, Status: status})
}

// Recorded returns a copy of received updates.
func (n *NotifierStub) Recorded() []OrderUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]OrderUpdate(nil), n.Updates...)
}

// PaymentFacadeStub provides controllable behaviour for HTTP handlers.
type PaymentFacadeStub struct {
	AuthenticateFn func(string) error
	ApplyFn        func(context.Context, model.Transfer) (model.Reconciliation, error)
	OrderFn        func(context.Context, string) (*model.Order, error)
	HealthFn       func(context.Context) error

	mu      sync.Mutex
	Applied []model.Transfer
}

// Authenticate delegates to override or accepts everything.
func (s *PaymentFacadeStub) Authenticate(header string) error {
	if s.AuthenticateFn != nil {
		return s.AuthenticateFn(header)
	}
	return nil
}

// ApplyTransfer records transfer and delegates to override.
func (s *PaymentFacadeStub) ApplyTransfer(ctx context.Context, t model.Transfer) (model.Reconciliation, error) {
	s.mu.Lock()
	s.Applied = append(s.Applied, t)
	s.mu.Unlock()
	if s.ApplyFn != nil {
		return s.ApplyFn(ctx, t)
	}
	return model.Reconciliation{Outcome: model.OutcomeNoCandidate}, nil
}

// AppliedCount reports how many transfers reached the facade.
func (s *PaymentFacadeStub) AppliedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Applied)
}

// Order delegates to override or returns a pending order.
func (s *PaymentFacadeStub) Order(ctx context.Context, id string) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, id)
	}
	return &model.Order{ID: id, Amount: 1000, Status: model.OrderStatusPending, ExpiresAt: time.Unix(0, 0).UTC()}, nil
}

// Health delegates to override.
func (s *PaymentFacadeStub) Health(ctx context.Context) error {
	if s.HealthFn != nil {
		return s.HealthFn(ctx)
	}
	return nil
}

// WorkerFacadeStub mimics worker interactions with the payment facade.
type WorkerFacadeStub struct {
	Batches   [][]model.Transfer
	FetchFn   func(context.Context) ([]model.Transfer, error)
	ApplyFn   func(context.Context, model.Transfer) (model.Reconciliation, error)
	SweepFn   func(context.Context, time.Time, int) (int, error)
	Applied   []model.Transfer
	Sweeps    int
	mu        sync.Mutex
	fetchCall int
}

// Lock exposes internal mutex for external synchronization.
func (s *WorkerFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *WorkerFacadeStub) Unlock() { s.mu.Unlock() }

// RecentTransfers returns configured batches one per call.
func (s *WorkerFacadeStub) RecentTransfers(ctx context.Context) ([]model.Transfer, error) {
	if s.FetchFn != nil {
		return s.FetchFn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCall++
	if s.fetchCall <= len(s.Batches) {
		return s.Batches[s.fetchCall-1], nil
	}
	return nil, nil
}

// ApplyTransfer records applied transfers.
func (s *WorkerFacadeStub) ApplyTransfer(ctx context.Context, t model.Transfer) (model.Reconciliation, error) {
	if s.ApplyFn != nil {
		return s.ApplyFn(ctx, t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Applied = append(s.Applied, t)
	return model.Reconciliation{Outcome: model.OutcomeNoCandidate}, nil
}

// ExpireOrders counts sweeps.
func (s *WorkerFacadeStub) ExpireOrders(ctx context.Context, now time.Time, limit int) (int, error) {
	if s.SweepFn != nil {
		return s.SweepFn(ctx, now, limit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sweeps++
	return 0, nil
}

// TransferSourceStub returns configured transfers from the aggregator API.
type TransferSourceStub struct {
	Transfers []model.Transfer
	Err       error
}

// Recent returns configured transfers.
func (s TransferSourceStub) Recent(ctx context.Context) ([]model.Transfer, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Transfers, nil
}
