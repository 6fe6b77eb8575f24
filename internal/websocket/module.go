package websocket

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the order status hub.
var Module = fx.Options(
	fx.Provide(NewHub),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, hub *Hub) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			hub.Close()
			return nil
		},
	})
}
