package tor

import (
	"errors"
	"strings"
	"testing"
)

// testOnionV3Addr is the v3 address of the all-zero public key. It does not
// correspond to a real service.
const testOnionV3Addr = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"

// TestV3Address tests address computation from a public key.
func TestV3Address(t *testing.T) {
	t.Parallel()

	addr, err := V3Address(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	if addr != testOnionV3Addr {
		t.Errorf("V3Address(zero key) = %q, expected %q", addr, testOnionV3Addr)
	}

	seq := make([]byte, 32)
	for i := range seq {
		seq[i] = byte(i)
	}
	addr, err = V3Address(seq)
	if err != nil {
		t.Fatal(err)
	}
	if !IsValidV3Address(addr) {
		t.Errorf("computed address %q does not validate", addr)
	}

	if _, err := V3Address([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidOnionAddress) {
		t.Errorf("expected ErrInvalidOnionAddress for a short key, got %v", err)
	}
}

// TestIsValidV3Address tests v3 address validation.
func TestIsValidV3Address(t *testing.T) {
	t.Parallel()

	// Flip the last checksum character.
	badChecksum := strings.Replace(testOnionV3Addr, "m2dqd", "m2dqe", 1)

	testCases := []struct {
		name     string
		address  string
		expected bool
	}{
		{"valid", testOnionV3Addr, true},
		{"uppercase", strings.ToUpper(strings.TrimSuffix(testOnionV3Addr, ".onion")) + ".onion", true},
		{"bad checksum", badChecksum, false},
		{"v2 length", "facebookcorewwwi.onion", false},
		{"too short", "abc.onion", false},
		{"missing suffix", strings.TrimSuffix(testOnionV3Addr, ".onion"), false},
		{"invalid base32 digit", strings.Repeat("0", 56) + ".onion", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsValidV3Address(tc.address); got != tc.expected {
				t.Errorf("IsValidV3Address(%q) = %v, expected %v", tc.address, got, tc.expected)
			}
		})
	}
}

// TestIsOnionHost tests onion host detection.
func TestIsOnionHost(t *testing.T) {
	t.Parallel()

	testCases := map[string]bool{
		"abc.onion":      true,
		"ABC.ONION":      true,
		"abc.onion:8080": true,
		"www.abc.onion":  true,
		"abc.onion.":     true,
		"example.com":    false,
		"onion.com":      false,
		"notonion":       false,
		"127.0.0.1:9050": false,
		"example.onionx": false,
	}
	for host, expected := range testCases {
		if got := IsOnionHost(host); got != expected {
			t.Errorf("IsOnionHost(%q) = %v, expected %v", host, got, expected)
		}
	}
}

// TestValidateHost tests seed host validation.
func TestValidateHost(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		host string
		err  error
	}{
		{"v3", testOnionV3Addr, nil},
		{"v3 with port", testOnionV3Addr + ":8080", nil},
		{"v3 subdomain", "www." + testOnionV3Addr, nil},
		{"v2", "facebookcorewwwi.onion", ErrV2AddressDeprecated},
		{"garbage", "abc.onion", ErrInvalidOnionAddress},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateHost(tc.host)
			if tc.err == nil {
				if err != nil {
					t.Errorf("ValidateHost(%q) error: %v", tc.host, err)
				}
				return
			}
			if !errors.Is(err, tc.err) {
				t.Errorf("ValidateHost(%q) error = %v, expected %v", tc.host, err, tc.err)
			}
		})
	}
}

// TestIsV2Address tests detection of retired addresses.
func TestIsV2Address(t *testing.T) {
	t.Parallel()

	if !IsV2Address("facebookcorewwwi.onion") {
		t.Error("expected v2 address to be detected")
	}
	if IsV2Address(testOnionV3Addr) {
		t.Error("v3 address detected as v2")
	}
}
