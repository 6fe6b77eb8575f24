package dto

import "time"

// OrderResponse describes payment state of an order.
type OrderResponse struct {
	OrderID   string    `json:"orderId"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MessageResponse is returned for errors and simple acknowledgements.
type MessageResponse struct {
	Message string `json:"message"`
}
