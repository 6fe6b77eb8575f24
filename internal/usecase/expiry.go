package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/polkiloo/storepay/internal/domain/repository"
)

// ExpiryUseCase moves overdue pending orders to expired.
type ExpiryUseCase struct {
	orders   repository.OrderRepository
	notifier Notifier
	logger   *slog.Logger
}

// NewExpiryUseCase constructs ExpiryUseCase.
func NewExpiryUseCase(orders repository.OrderRepository, notifier Notifier, logger *slog.Logger) *ExpiryUseCase {
	return &ExpiryUseCase{orders: orders, notifier: notifier, logger: logger}
}

// Sweep expires up to limit orders whose payment window closed before now.
func (u *ExpiryUseCase) Sweep(ctx context.Context, now time.Time, limit int) (int, error) {
	expired, err := u.orders.ExpireOverdue(ctx, now, limit)
	if err != nil {
		return 0, unavailable(err)
	}
	for _, o := range expired {
		u.notifier.OrderUpdated(o.ID, o.Status)
	}
	if len(expired) > 0 {
		u.logger.Info("expired overdue orders", slog.Int("count", len(expired)))
	}
	return len(expired), nil
}
