package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
	"github.com/polkiloo/storepay/internal/domain/model"
	"github.com/polkiloo/storepay/internal/server/http/dto"
	"github.com/polkiloo/storepay/internal/websocket"
)

// OrderHandler manages order status endpoints.
type OrderHandler struct {
	facade OrderFacade
	stream StatusStream
	logger *slog.Logger
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade, stream StatusStream, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{facade: facade, stream: stream, logger: logger}
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	order, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// Stream handles GET /api/orders/:id/stream.
func (h *OrderHandler) Stream(c *gin.Context) {
	order, ok := h.lookup(c)
	if !ok {
		return
	}

	conn, err := websocket.Upgrade(c.Writer, c.Request)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Info("websocket upgrade failed", slog.String("order_id", order.ID), slog.String("error", err.Error()))
		return
	}
	ctx := c.Request.Context()
	h.stream.Attach(conn, order.ID, func() (model.OrderStatus, error) {
		current, err := h.facade.Order(ctx, order.ID)
		if err != nil {
			return "", err
		}
		return current.Status, nil
	})
}

func (h *OrderHandler) lookup(c *gin.Context) (*model.Order, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: "invalid order id"})
		return nil, false
	}

	order, err := h.facade.Order(c.Request.Context(), id.String())
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrOrderNotFound), errors.Is(err, domainErrors.ErrNotFound):
			c.JSON(http.StatusNotFound, dto.MessageResponse{Message: "order not found"})
		case errors.Is(err, domainErrors.ErrPersistenceUnavailable):
			c.JSON(http.StatusServiceUnavailable, dto.MessageResponse{Message: "temporarily unavailable"})
		default:
			c.Status(http.StatusInternalServerError)
		}
		return nil, false
	}
	return order, true
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	return dto.OrderResponse{
		OrderID:   order.ID,
		Amount:    order.Amount,
		Status:    string(order.Status),
		ExpiresAt: order.ExpiresAt,
	}
}
