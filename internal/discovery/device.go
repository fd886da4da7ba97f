package discovery

import (
	"fmt"
	"time"
)

// Descriptor identifies one discovered TV. Immutable once produced by a
// scan; consumed by protocol detection and the transport.
type Descriptor struct {
	// ID is the device identifier, normally the MAC address from the
	// announcement. Falls back to the IP address when no MAC was seen.
	ID string

	// FriendlyName is the name the TV advertises (e.g., "Living Room TV").
	FriendlyName string

	// IP is the IPv4 address.
	IP string

	// Port is the control (broker) port, typically 36669.
	Port int

	// MAC is the device's physical network identifier, when known.
	// Required for wake-on-LAN.
	MAC string

	// Metadata contains additional mDNS TXT record data.
	Metadata map[string]string

	// DiscoveredAt is when the most recent response from this address
	// was seen.
	DiscoveredAt time.Time
}

// String returns a human-readable representation of the device.
func (d *Descriptor) String() string {
	name := d.FriendlyName
	if name == "" {
		name = d.ID
	}
	return fmt.Sprintf("Vidaa TV %q at %s:%d", name, d.IP, d.Port)
}

// Addr returns the host:port control address.
func (d *Descriptor) Addr() string {
	return fmt.Sprintf("%s:%d", d.IP, d.Port)
}

// GetMetadata retrieves a TXT metadata value, or empty string if absent.
func (d *Descriptor) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
