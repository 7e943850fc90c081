package validation

import (
	"testing"
)

func TestIsValidEthAddress(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"0x1234567890123456789012345678901234567890", true},
		{"0xabcdefABCDEF1234567890123456789012345678", true},
		{"0x0000000000000000000000000000000000000000", true},

		// Invalid cases
		{"1234567890123456789012345678901234567890", false},     // No 0x
		{"0x12345678901234567890123456789012345678", false},     // Too short
		{"0x123456789012345678901234567890123456789012", false}, // Too long
		{"0xGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGG", false},   // Invalid chars
		{"", false},
		{"0x", false},
	}

	for _, tc := range tests {
		result := IsValidEthAddress(tc.addr)
		if result != tc.valid {
			t.Errorf("IsValidEthAddress(%q) = %v, want %v", tc.addr, result, tc.valid)
		}
	}
}

func TestIsValidHex(t *testing.T) {
	tests := []struct {
		s     string
		valid bool
	}{
		{"0x095ea7b3", true},
		{"0x", true}, // empty payload is still hex
		{"0xDEADbeef", true},
		{"095ea7b3", false}, // no 0x
		{"0xzz", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := IsValidHex(tc.s); got != tc.valid {
			t.Errorf("IsValidHex(%q) = %v, want %v", tc.s, got, tc.valid)
		}
	}
}

func TestSanitizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  0xABCD567890123456789012345678901234567890  ", "0xabcd567890123456789012345678901234567890"},
		{"abcd567890123456789012345678901234567890", "0xabcd567890123456789012345678901234567890"},
		{"0x1234", "0x1234"},
	}

	for _, tc := range tests {
		if got := SanitizeAddress(tc.in); got != tc.want {
			t.Errorf("SanitizeAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
