package di

import (
	"github.com/polkiloo/storepay/internal/adapter/sepay"
	"github.com/polkiloo/storepay/internal/app"
	"github.com/polkiloo/storepay/internal/config"
	"github.com/polkiloo/storepay/internal/logger"
	"github.com/polkiloo/storepay/internal/messaging"
	"github.com/polkiloo/storepay/internal/pkg/auth"
	"github.com/polkiloo/storepay/internal/server/http/handlers"
	"github.com/polkiloo/storepay/internal/server/http/router"
	"github.com/polkiloo/storepay/internal/storage/postgres"
	"github.com/polkiloo/storepay/internal/usecase"
	"github.com/polkiloo/storepay/internal/websocket"
	"go.uber.org/fx"
)

// Module composes the full service graph. Extra options are applied last so
// tests can replace any dependency.
func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		sepay.Module,
		websocket.Module,
		usecase.Module,
		fx.Provide(
			func(a *auth.APIKeyAuthenticator) usecase.Authenticator { return a },
			func(h *websocket.Hub) usecase.Notifier { return h },
			func(h *websocket.Hub) handlers.StatusStream { return h },
			func(s *postgres.Storage) app.HealthChecker { return s },
			func(client sepay.Client) app.TransferSource { return client },
			func(f *app.PaymentFacade) handlers.PaymentFacade { return f },
		),
		// registered before app so the dispatcher stops before the publisher closes
		messaging.Module,
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
