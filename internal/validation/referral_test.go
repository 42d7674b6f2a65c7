package validation

import "testing"

func TestIsValidReferralCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"valid upper and digits", "A1B2C3D4E5F6", true},
		{"valid all digits", "123456789012", true},
		{"valid all letters", "ABCDEFGHIJKL", true},
		{"empty", "", false},
		{"too short", "ABC123", false},
		{"too long", "A1B2C3D4E5F6X", false},
		{"lowercase", "a1b2c3d4e5f6", false},
		{"with dash", "A1B2-3D4E5F6", false},
		{"with space", "A1B2C3 D4E5F", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidReferralCode(tt.code); got != tt.want {
				t.Fatalf("IsValidReferralCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
