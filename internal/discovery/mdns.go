package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type Vidaa TVs advertise.
	ServiceType = "_vidaa-remote._tcp"

	// ServiceDomain is the mDNS domain (typically "local.").
	ServiceDomain = "local."
)

// browseMDNS browses for the TV service type until ctx expires, emitting
// every parsed announcement on found.
func (s *Scanner) browseMDNS(ctx context.Context, found chan<- *Descriptor) error {
	entries := make(chan *zeroconf.ServiceEntry)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if desc := parseServiceEntry(entry); desc != nil {
				select {
				case found <- desc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Descriptor.
// Returns nil for entries without a usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Descriptor {
	// Get IP address (prefer IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultControlPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	mac := metadata["mac"]
	id := mac
	if id == "" {
		id = ip
	}

	name := metadata["name"]
	if name == "" {
		name = strings.TrimSuffix(entry.Instance, "."+ServiceType)
	}

	return &Descriptor{
		ID:           id,
		FriendlyName: name,
		IP:           ip,
		Port:         port,
		MAC:          mac,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
