package models

import "testing"

func TestIsValidOrderTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{OrderStatusPending, OrderStatusAccepted, true},
		{OrderStatusPending, OrderStatusRejected, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusAccepted, OrderStatusCompleted, true},
		{OrderStatusAccepted, OrderStatusCancelled, true},

		// Skipping acceptance is not allowed
		{OrderStatusPending, OrderStatusCompleted, false},

		// Backwards moves
		{OrderStatusAccepted, OrderStatusPending, false},
		{OrderStatusAccepted, OrderStatusRejected, false},

		// Terminal states
		{OrderStatusRejected, OrderStatusAccepted, false},
		{OrderStatusRejected, OrderStatusCompleted, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusAccepted, false},
		{OrderStatusCancelled, OrderStatusCompleted, false},

		// Unknown statuses
		{"nonexistent", OrderStatusAccepted, false},
		{OrderStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidOrderTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidOrderTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllOrderStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		OrderStatusPending, OrderStatusAccepted, OrderStatusRejected,
		OrderStatusCompleted, OrderStatusCancelled,
	}

	for _, status := range allStatuses {
		if _, ok := ValidOrderTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidOrderTransitions map", status)
		}
	}
}

func TestTerminalOrderStatuses(t *testing.T) {
	terminal := []string{OrderStatusRejected, OrderStatusCompleted, OrderStatusCancelled}
	for _, status := range terminal {
		if !IsTerminalOrderStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
		if transitions := ValidOrderTransitions[status]; len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}

	for _, status := range []string{OrderStatusPending, OrderStatusAccepted} {
		if IsTerminalOrderStatus(status) {
			t.Errorf("status %q should not be terminal", status)
		}
	}
}
