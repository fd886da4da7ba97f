package protocol

import "testing"

func TestClassifyPlatformVersion(t *testing.T) {
	tests := []struct {
		name    string
		version int
		want    Variant
	}{
		{"well below legacy threshold", 1500, VariantLegacy},
		{"just below middle threshold", 2999, VariantLegacy},
		{"middle threshold exactly", 3000, VariantMiddle},
		{"late middle generation", 3285, VariantMiddle},
		{"gap between generations", 3289, VariantMiddle},
		{"modern threshold exactly", 3290, VariantModern},
		{"current firmware", 4100, VariantModern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyPlatformVersion(tt.version); got != tt.want {
				t.Errorf("ClassifyPlatformVersion(%d) = %s, want %s", tt.version, got, tt.want)
			}
		})
	}
}

func TestParseVariant_RoundTrip(t *testing.T) {
	for _, v := range []Variant{VariantLegacy, VariantMiddle, VariantModern} {
		parsed, err := ParseVariant(v.String())
		if err != nil {
			t.Fatalf("ParseVariant(%q) returned error: %v", v.String(), err)
		}
		if parsed != v {
			t.Errorf("ParseVariant(%q) = %s, want %s", v.String(), parsed, v)
		}
	}
}

func TestParseVariant_Unknown(t *testing.T) {
	if _, err := ParseVariant("ancient"); err == nil {
		t.Error("Expected error for unknown variant name")
	}
}

func TestDetectionOrder_NewestFirst(t *testing.T) {
	want := []Variant{VariantModern, VariantMiddle, VariantLegacy}
	if len(DetectionOrder) != len(want) {
		t.Fatalf("DetectionOrder has %d entries, want %d", len(DetectionOrder), len(want))
	}
	for i, v := range want {
		if DetectionOrder[i] != v {
			t.Errorf("DetectionOrder[%d] = %s, want %s", i, DetectionOrder[i], v)
		}
	}
}

func TestVariantCapabilities(t *testing.T) {
	if VariantLegacy.UsesJSONPayloads() {
		t.Error("legacy must not use JSON payloads")
	}
	if !VariantMiddle.UsesJSONPayloads() || !VariantModern.UsesJSONPayloads() {
		t.Error("middle and modern must use JSON payloads")
	}
	if VariantMiddle.HasTokenEnvelope() || VariantLegacy.HasTokenEnvelope() {
		t.Error("only modern has the token issuance envelope")
	}
	if !VariantModern.HasTokenEnvelope() {
		t.Error("modern must have the token issuance envelope")
	}
}
