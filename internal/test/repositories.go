package test

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
	"github.com/polkiloo/storepay/internal/domain/model"
)

// OrderStore is an in-memory order book with ledger semantics matching the
// PostgreSQL storage: transitions are conditional and serialised by a mutex.
type OrderStore struct {
	mu sync.Mutex

	orders map[string]model.Order
	ledger map[int64]string

	// Err, when set, is returned by every operation.
	Err error
	// TransitionErr, when set, is returned by Transition only.
	TransitionErr error

	GetCalls    int
	Transitions []model.Transition
}

// NewOrderStore creates store seeded with provided orders.
func NewOrderStore(orders ...model.Order) *OrderStore {
	s := &OrderStore{
		orders: make(map[string]model.Order),
		ledger: make(map[int64]string),
	}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

// Put stores or replaces an order.
func (s *OrderStore) Put(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// Order returns a copy of the stored order.
func (s *OrderStore) Order(id string) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

// LedgerSize reports how many transactions were applied.
func (s *OrderStore) LedgerSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

// Calls reports lookups and successful transitions performed so far.
func (s *OrderStore) Calls() (gets int, transitions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.GetCalls, len(s.Transitions)
}

// GetByID returns order or ErrNotFound.
func (s *OrderStore) GetByID(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++
	if s.Err != nil {
		return nil, s.Err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &o, nil
}

// Transition records the ledger entry and updates a pending order atomically.
func (s *OrderStore) Transition(ctx context.Context, t model.Transition) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.TransitionErr != nil {
		return nil, s.TransitionErr
	}
	if _, seen := s.ledger[t.TransactionID]; seen {
		return nil, domainErrors.ErrDuplicateEvent
	}
	o, ok := s.orders[t.OrderID]
	if !ok || o.Status != model.OrderStatusPending {
		return nil, domainErrors.ErrAlreadyProcessed
	}
	if t.To == model.OrderStatusCompleted && o.Amount != t.Amount {
		return nil, domainErrors.ErrAlreadyProcessed
	}
	txID := t.TransactionID
	o.Status = t.To
	o.TransactionID = &txID
	o.UpdatedAt = time.Now()
	s.orders[o.ID] = o
	s.ledger[t.TransactionID] = o.ID
	s.Transitions = append(s.Transitions, t)
	return &o, nil
}

// ExpireOverdue expires pending orders whose window closed before now.
func (s *OrderStore) ExpireOverdue(ctx context.Context, now time.Time, limit int) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	ids := make([]string, 0, len(s.orders))
	for id, o := range s.orders {
		if o.Status == model.OrderStatusPending && !o.ExpiresAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var expired []model.Order
	for _, id := range ids {
		if len(expired) >= limit {
			break
		}
		o := s.orders[id]
		o.Status = model.OrderStatusExpired
		s.orders[id] = o
		expired = append(expired, o)
	}
	return expired, nil
}

// OrderFor returns the order a transaction was applied to.
func (s *OrderStore) OrderFor(ctx context.Context, transactionID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	id, ok := s.ledger[transactionID]
	if !ok {
		return "", domainErrors.ErrNotFound
	}
	return id, nil
}

// OutboxStub keeps outbox messages in memory.
type OutboxStub struct {
	mu sync.Mutex

	Pending   []model.OutboxMessage
	Sent      []int64
	Failed    []int64
	ClaimErr  error
	MarkErr   error
	ClaimHits int
}

// Claim hands out pending messages once.
func (s *OutboxStub) Claim(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClaimHits++
	if s.ClaimErr != nil {
		return nil, s.ClaimErr
	}
	if limit > len(s.Pending) {
		limit = len(s.Pending)
	}
	batch := append([]model.OutboxMessage(nil), s.Pending[:limit]...)
	s.Pending = s.Pending[limit:]
	return batch, nil
}

// MarkSent records delivered message.
func (s *OutboxStub) MarkSent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkErr != nil {
		return s.MarkErr
	}
	s.Sent = append(s.Sent, id)
	return nil
}

// MarkFailed records failed message.
func (s *OutboxStub) MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkErr != nil {
		return s.MarkErr
	}
	s.Failed = append(s.Failed, id)
	return nil
}

// Snapshot returns copies of sent and failed ids.
func (s *OutboxStub) Snapshot() (sent, failed []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.Sent...), append([]int64(nil), s.Failed...)
}
