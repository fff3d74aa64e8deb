package model

import "testing"

func TestPriorityForRefund(t *testing.T) {
	tests := []struct {
		name           string
		requestedCents int64
		want           ComplaintPriority
	}{
		{"zero refund", 0, ComplaintPriorityLow},
		{"below medium threshold", 199_99, ComplaintPriorityLow},
		{"exactly medium threshold", 200_00, ComplaintPriorityMedium},
		{"between thresholds", 350_00, ComplaintPriorityMedium},
		{"just below high threshold", 499_99, ComplaintPriorityMedium},
		{"exactly high threshold", 500_00, ComplaintPriorityHigh},
		{"large refund", 10_000_00, ComplaintPriorityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriorityForRefund(tt.requestedCents); got != tt.want {
				t.Errorf("PriorityForRefund(%d) = %s, want %s", tt.requestedCents, got, tt.want)
			}
		})
	}
}

func TestOrderStatusIsValid(t *testing.T) {
	valid := []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("status %q should be valid", s)
		}
	}

	for _, s := range []OrderStatus{"", "unknown", "COMPLETED"} {
		if s.IsValid() {
			t.Errorf("status %q should be invalid", s)
		}
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderStatusPending, false},
		{OrderStatusConfirmed, false},
		{OrderStatusPreparing, false},
		{OrderStatusReady, false},
		{OrderStatusDisputed, false},
		{OrderStatusCompleted, true},
		{OrderStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestComplaintStatusIsOpen(t *testing.T) {
	tests := []struct {
		status ComplaintStatus
		want   bool
	}{
		{ComplaintStatusPending, true},
		{ComplaintStatusUnderReview, true},
		{ComplaintStatusApproved, false},
		{ComplaintStatusRejected, false},
		{ComplaintStatusResolved, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsOpen(); got != tt.want {
			t.Errorf("%s.IsOpen() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestComplaintTypeIsValid(t *testing.T) {
	valid := []ComplaintType{
		ComplaintTypeWrongOrder, ComplaintTypeIncorrectBilling,
		ComplaintTypeQualityIssue, ComplaintTypeMissingItem, ComplaintTypeOther,
	}
	for _, ct := range valid {
		if !ct.IsValid() {
			t.Errorf("type %q should be valid", ct)
		}
	}

	for _, ct := range []ComplaintType{"", "refund", "Wrong_Order"} {
		if ct.IsValid() {
			t.Errorf("type %q should be invalid", ct)
		}
	}
}
