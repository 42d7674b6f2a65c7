package model

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"pending to processing", OrderStatusPending, OrderStatusProcessing, true},
		{"pending to paid", OrderStatusPending, OrderStatusPaid, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"paid to refunded", OrderStatusPaid, OrderStatusRefunded, true},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"shipped to cancelled", OrderStatusShipped, OrderStatusCancelled, false},
		{"delivered is terminal", OrderStatusDelivered, OrderStatusProcessing, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusPending, false},
		{"refunded is terminal", OrderStatusRefunded, OrderStatusPaid, false},
		{"pending to delivered skips shipping", OrderStatusPending, OrderStatusDelivered, false},
		{"unknown status", OrderStatus("weird"), OrderStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCanCancel(t *testing.T) {
	if !CanCancel(OrderStatusPending) {
		t.Fatalf("pending order must be cancellable")
	}
	if !CanCancel(OrderStatusProcessing) {
		t.Fatalf("processing order must be cancellable")
	}
	if CanCancel(OrderStatusCancelled) {
		t.Fatalf("cancelled order must not be cancellable again")
	}
	if CanCancel(OrderStatusShipped) {
		t.Fatalf("shipped order must not be cancellable")
	}
}
