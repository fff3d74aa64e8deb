package validation

import "testing"

func TestIsValidRollNumber(t *testing.T) {
	tests := []struct {
		roll string
		want bool
	}{
		{"21CS10045", true},
		{"19EE20001", true},
		{"21cs10045", false},
		{"21CS1004", false},
		{"21CS100456", false},
		{"2CS100456", false},
		{"ABCS10045", false},
		{"", false},
		{"21C S10045", false},
	}

	for _, tt := range tests {
		if got := IsValidRollNumber(tt.roll); got != tt.want {
			t.Errorf("IsValidRollNumber(%q) = %v, want %v", tt.roll, got, tt.want)
		}
	}
}

func TestIsValidPhoneNumber(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"9876543210", true},
		{"0000000000", true},
		{"987654321", false},
		{"98765432101", false},
		{"98765four10", false},
		{"+919876543210", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidPhoneNumber(tt.phone); got != tt.want {
			t.Errorf("IsValidPhoneNumber(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}
