package model

import "time"

// OrderStatus describes payment lifecycle of a storefront order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusExpired   OrderStatus = "expired"
)

// Terminal reports whether no further transition is allowed from the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// Order describes a checkout order awaiting or holding a bank-transfer payment.
// Amount is expressed in minor currency units.
type Order struct {
	ID            string
	Amount        int64
	Status        OrderStatus
	TransactionID *int64
	CreatedAt     time.Time
	ExpiresAt     time.Time
	UpdatedAt     time.Time
}
