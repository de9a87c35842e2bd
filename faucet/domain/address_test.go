package domain

import (
	"errors"
	"testing"
)

func TestNormalizeAddress_ChecksumsLowercaseInput(t *testing.T) {
	addr, err := NormalizeAddress(" 0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := addr.Hex(); got != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("expected checksummed address, got %s", got)
	}
}

func TestNormalizeAddress_AcceptsValidMixedCase(t *testing.T) {
	if _, err := NormalizeAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"); err != nil {
		t.Fatalf("expected valid checksum to pass, got %v", err)
	}
}

func TestNormalizeAddress_RejectsBadChecksum(t *testing.T) {
	_, err := NormalizeAddress("0xfb6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	if !IsRecipientError(err) {
		t.Fatalf("expected recipient error, got %v", err)
	}
}

func TestNormalizeAddress_RejectsZeroAddress(t *testing.T) {
	_, err := NormalizeAddress("0x0000000000000000000000000000000000000000")
	if !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", true},
		{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false},
		{"5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1bea", false},
		{"0xzzaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidAddress(tt.in); got != tt.want {
			t.Errorf("IsValidAddress(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAddressKey_IsLowercase(t *testing.T) {
	addr, _ := NormalizeAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	if got := AddressKey(addr); got != "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359" {
		t.Fatalf("unexpected key %q", got)
	}
}
