package credentials

import (
	"testing"

	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

// Fixtures below were captured by running the derivation against a known
// device identifier and timestamp; they pin the algorithm byte for byte.
const (
	fixtureDeviceID  = "AABBCCDDEEFF"
	fixtureTimestamp = int64(1700000000)
)

func TestDeriveAt_ClientID(t *testing.T) {
	// The client id is timestamp-independent and shared across dialects.
	for _, v := range []protocol.Variant{protocol.VariantLegacy, protocol.VariantMiddle, protocol.VariantModern} {
		creds := DeriveAt(fixtureDeviceID, v, fixtureTimestamp)
		want := "AA:BB:CC:DD:EE:FF$his$637064_vidaacommon_001"
		if creds.ClientID != want {
			t.Errorf("%s client id = %q, want %q", v, creds.ClientID, want)
		}
	}
}

func TestDeriveAt_Username(t *testing.T) {
	tests := []struct {
		variant protocol.Variant
		want    string
	}{
		{protocol.VariantLegacy, "his$1700000000"},
		{protocol.VariantMiddle, "his$6239759786369374312"},
		{protocol.VariantModern, "his$6239759786369374312"},
	}
	for _, tt := range tests {
		creds := DeriveAt(fixtureDeviceID, tt.variant, fixtureTimestamp)
		if creds.Username != tt.want {
			t.Errorf("%s username = %q, want %q", tt.variant, creds.Username, tt.want)
		}
	}
}

func TestDeriveAt_Password(t *testing.T) {
	tests := []struct {
		variant protocol.Variant
		want    string
	}{
		{protocol.VariantLegacy, "68FDBB38B69DFBEE5669F74246111AF7"},
		{protocol.VariantMiddle, "68FDBB38B69DFBEE5669F74246111AF7"},
		{protocol.VariantModern, "3EDC70D279B7600A38C3E8F0F0609EF8"},
	}
	for _, tt := range tests {
		creds := DeriveAt(fixtureDeviceID, tt.variant, fixtureTimestamp)
		if creds.Password != tt.want {
			t.Errorf("%s password = %q, want %q", tt.variant, creds.Password, tt.want)
		}
	}
}

func TestDeriveAt_IsDeterministic(t *testing.T) {
	a := DeriveAt(fixtureDeviceID, protocol.VariantModern, fixtureTimestamp)
	b := DeriveAt(fixtureDeviceID, protocol.VariantModern, fixtureTimestamp)
	if a != b {
		t.Errorf("same inputs produced different credentials: %+v vs %+v", a, b)
	}

	later := DeriveAt(fixtureDeviceID, protocol.VariantModern, fixtureTimestamp+1)
	if later.Password == a.Password {
		t.Error("password should change with the timestamp")
	}
	if later.ClientID != a.ClientID {
		t.Error("client id must not depend on the timestamp")
	}
}

func TestCanonicalDeviceID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AABBCCDDEEFF", "AA:BB:CC:DD:EE:FF"},
		{"AA:BB:CC:DD:EE:FF", "AA:BB:CC:DD:EE:FF"},
		{"AA-BB-CC-DD-EE-FF", "AA-BB-CC-DD-EE-FF"},
		{"not-a-mac", "not-a-mac"},
		{"short", "short"},
	}
	for _, tt := range tests {
		if got := canonicalDeviceID(tt.in); got != tt.want {
			t.Errorf("canonicalDeviceID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeriveStatic(t *testing.T) {
	creds := DeriveStatic("aa:bb:cc:dd:ee:ff")
	if creds.ClientID != "AABBCCDDEEFF$vidaa_common" {
		t.Errorf("client id = %q", creds.ClientID)
	}
	if creds.Username != "hisenseservice" || creds.Password != "multimqttservice" {
		t.Errorf("static account = %q/%q", creds.Username, creds.Password)
	}
}

func TestSumDigits(t *testing.T) {
	tests := []struct {
		in   int64
		want int64
	}{
		{0, 0},
		{5, 5},
		{1700000000, 8},
		{999, 27},
	}
	for _, tt := range tests {
		if got := sumDigits(tt.in); got != tt.want {
			t.Errorf("sumDigits(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
