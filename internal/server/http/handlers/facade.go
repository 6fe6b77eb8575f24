package handlers

import (
	"context"

	"github.com/polkiloo/storepay/internal/domain/model"
	"github.com/polkiloo/storepay/internal/websocket"
)

// WebhookFacade describes reconciliation capabilities required by the webhook endpoint.
type WebhookFacade interface {
	Authenticate(header string) error
	ApplyTransfer(ctx context.Context, transfer model.Transfer) (model.Reconciliation, error)
}

// OrderFacade exposes read access to orders.
type OrderFacade interface {
	Order(ctx context.Context, id string) (*model.Order, error)
}

// HealthFacade reports dependency health.
type HealthFacade interface {
	Health(ctx context.Context) error
}

// PaymentFacade aggregates the full set of operations used across handlers.
type PaymentFacade interface {
	WebhookFacade
	OrderFacade
	HealthFacade
}

// StatusStream pushes order status changes to an upgraded connection.
type StatusStream interface {
	Attach(conn *websocket.Conn, orderID string, load websocket.StatusLoader)
}
