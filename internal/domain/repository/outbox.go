package repository

import (
	"context"
	"time"

	"github.com/polkiloo/storepay/internal/domain/model"
)

// OutboxRepository manages events waiting to be published.
type OutboxRepository interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error
}
