package repository

import (
	"context"
	"time"

	"github.com/polkiloo/storepay/internal/domain/model"
)

// OrderRepository describes persistence operations with orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*model.Order, error)
	// Transition applies a pending order transition together with its ledger entry.
	// It fails with ErrDuplicateEvent when the transaction was already applied and
	// with ErrAlreadyProcessed when the order is no longer pending.
	Transition(ctx context.Context, t model.Transition) (*model.Order, error)
	ExpireOverdue(ctx context.Context, now time.Time, limit int) ([]model.Order, error)
}
