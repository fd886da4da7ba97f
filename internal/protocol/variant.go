package protocol

import "fmt"

// Variant identifies which firmware-era wire dialect a TV speaks.
// It is fixed for the lifetime of one session and re-detected on every
// new connection attempt, because firmware updates change the dialect
// independently of the client.
type Variant int

const (
	// VariantUnknown is the zero value; no dialect has been negotiated.
	VariantUnknown Variant = iota

	// VariantLegacy covers firmware with platform version below 3000.
	VariantLegacy

	// VariantMiddle covers platform versions 3000 through 3285.
	VariantMiddle

	// VariantModern covers platform versions 3290 and above.
	VariantModern
)

// Platform version thresholds separating the dialects.
const (
	middlePlatformMin = 3000
	modernPlatformMin = 3290
)

// DetectionOrder is the fixed precedence used when probing a device whose
// platform version cannot be read directly: newest dialect first.
var DetectionOrder = []Variant{VariantModern, VariantMiddle, VariantLegacy}

// String returns the dialect name.
func (v Variant) String() string {
	switch v {
	case VariantLegacy:
		return "legacy"
	case VariantMiddle:
		return "middle"
	case VariantModern:
		return "modern"
	case VariantUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant converts a stored dialect name back into a Variant.
// Unknown names return VariantUnknown and an error.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "legacy":
		return VariantLegacy, nil
	case "middle":
		return VariantMiddle, nil
	case "modern":
		return VariantModern, nil
	default:
		return VariantUnknown, fmt.Errorf("unknown protocol variant %q", s)
	}
}

// ClassifyPlatformVersion maps a firmware platform version number to the
// dialect that firmware generation speaks.
func ClassifyPlatformVersion(version int) Variant {
	switch {
	case version >= modernPlatformMin:
		return VariantModern
	case version >= middlePlatformMin:
		return VariantMiddle
	default:
		return VariantLegacy
	}
}

// UsesJSONPayloads reports whether the dialect carries structured JSON
// command payloads with a sequence field. Legacy firmware predates the
// JSON envelope and sends bare text payloads.
func (v Variant) UsesJSONPayloads() bool {
	return v == VariantMiddle || v == VariantModern
}

// HasTokenEnvelope reports whether the dialect delivers the pairing token
// in a separate tokenissuance message after PIN acceptance. Legacy and
// middle firmware return the token inline in the authentication reply.
func (v Variant) HasTokenEnvelope() bool {
	return v == VariantModern
}
