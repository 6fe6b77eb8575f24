package model

import "testing"

func TestOrderStatusValues(t *testing.T) {
	cases := []struct {
		name  string
		got   OrderStatus
		value string
	}{
		{"pending", OrderStatusPending, "pending"},
		{"completed", OrderStatusCompleted, "completed"},
		{"failed", OrderStatusFailed, "failed"},
		{"expired", OrderStatusExpired, "expired"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if string(tc.got) != tc.value {
				t.Fatalf("expected %s, got %s", tc.value, tc.got)
			}
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if OrderStatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusFailed, OrderStatusExpired} {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	if OrderStatus("unknown").Terminal() {
		t.Fatal("unknown status must not be terminal")
	}
}

func TestReconciliationMatched(t *testing.T) {
	if (Reconciliation{Outcome: OutcomeNoCandidate}).Matched() {
		t.Fatal("no candidate result must not be matched")
	}
	r := Reconciliation{Outcome: OutcomeCompleted, OrderID: "id", Status: OrderStatusCompleted}
	if !r.Matched() {
		t.Fatal("expected matched result")
	}
}

func TestEventTypeFor(t *testing.T) {
	if EventTypeFor(OrderStatusCompleted) != EventOrderPaid {
		t.Fatal("completed order should publish order_paid")
	}
	if EventTypeFor(OrderStatusFailed) != EventOrderFailed {
		t.Fatal("failed order should publish order_failed")
	}
}
