package model

// Outcome classifies how a transfer was handled.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeFailed           Outcome = "failed"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeNoCandidate      Outcome = "no_candidate"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeAmountMismatch   Outcome = "amount_mismatch"
)

// Reconciliation is the result of applying a transfer to the order book.
// OrderID and Status are empty when no order was matched.
type Reconciliation struct {
	Outcome Outcome
	OrderID string
	Status  OrderStatus
}

// Matched reports whether the transfer referenced an existing order.
func (r Reconciliation) Matched() bool {
	return r.OrderID != "" && r.Status != ""
}

// Transition is a conditional status change of a pending order caused by a transfer.
// Amount is the order amount guarding completion; Transferred is what the
// bank actually moved and is what the ledger records.
type Transition struct {
	OrderID       string
	TransactionID int64
	Amount        int64
	Transferred   int64
	To            OrderStatus
}

// PaymentEvent is published downstream after an order leaves the pending state.
type PaymentEvent struct {
	EventID       string      `json:"event_id"`
	OrderID       string      `json:"order_id"`
	Status        OrderStatus `json:"status"`
	Amount        int64       `json:"amount"`
	TransactionID int64       `json:"transaction_id,omitempty"`
}

// OutboxMessage is a persisted event awaiting delivery to the broker.
type OutboxMessage struct {
	ID        int64
	EventType string
	Payload   []byte
	Attempts  int
}

const (
	EventOrderPaid   = "payments.order_paid"
	EventOrderFailed = "payments.order_failed"
)

// EventTypeFor maps a terminal order status to the published event type.
func EventTypeFor(status OrderStatus) string {
	if status == OrderStatusCompleted {
		return EventOrderPaid
	}
	return EventOrderFailed
}
