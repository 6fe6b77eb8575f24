package messaging

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/storepay/internal/config"
	"github.com/polkiloo/storepay/internal/domain/repository"
)

// Module wires event publishing and the outbox dispatcher.
var Module = fx.Options(
	fx.Provide(newPublisher, newDispatcher),
	fx.Invoke(registerLifecycle),
)

type publisherParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

var dialRabbit = func(url, exchange string) (Publisher, error) {
	return NewRabbitPublisher(url, exchange)
}

func newPublisher(p publisherParams) (Publisher, error) {
	if p.Config.RabbitURL == "" {
		p.Logger.Info("no broker configured, payment events are logged")
		return NewLogPublisher(p.Logger), nil
	}
	return dialRabbit(p.Config.RabbitURL, p.Config.PaymentsExchange)
}

type dispatcherParams struct {
	fx.In

	Outbox    repository.OutboxRepository
	Publisher Publisher
	Config    *config.Config
	Logger    *slog.Logger
}

func newDispatcher(p dispatcherParams) *OutboxDispatcher {
	return NewOutboxDispatcher(p.Outbox, p.Publisher, p.Config.OutboxInterval, p.Config.OutboxBatch, p.Logger)
}

func registerLifecycle(lc fx.Lifecycle, publisher Publisher) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
}
