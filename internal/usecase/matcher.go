package usecase

import (
	"context"
	"errors"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
	"github.com/polkiloo/storepay/internal/domain/model"
	"github.com/polkiloo/storepay/internal/domain/repository"
)

// OrderMatcher resolves an extracted identifier to a payable order.
type OrderMatcher struct {
	orders repository.OrderRepository
}

// NewOrderMatcher constructs OrderMatcher.
func NewOrderMatcher(orders repository.OrderRepository) *OrderMatcher {
	return &OrderMatcher{orders: orders}
}

// Match looks the order up and validates it against the transferred amount.
// The order is returned alongside ErrAlreadyProcessed and ErrAmountMismatch so
// callers can report its current state.
func (m *OrderMatcher) Match(ctx context.Context, orderID string, amount int64) (*model.Order, error) {
	order, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, err
	}

	if order.Status.Terminal() {
		return order, domainErrors.ErrAlreadyProcessed
	}

	if amount != order.Amount {
		return order, domainErrors.ErrAmountMismatch
	}

	return order, nil
}

// Lookup returns the order regardless of its state.
func (m *OrderMatcher) Lookup(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}
