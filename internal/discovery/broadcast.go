package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

const (
	// broadcastPort is the UDP port older firmware listens on for
	// discovery probes.
	broadcastPort = 50001

	// probeMessage is the plain-text probe older firmware answers.
	probeMessage = "VIDAA-DISCOVER"

	// probeInterval is how often the probe is re-sent during one scan.
	probeInterval = 2 * time.Second
)

// announcement is the JSON reply older firmware sends to a probe.
type announcement struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
	Port int    `json:"port"`
}

// probeBroadcast sends the UDP subnet broadcast probe and collects
// announcements until ctx expires. A failure to transmit the first probe
// is a send failure; failures reading replies are not.
func (s *Scanner) probeBroadcast(ctx context.Context, found chan<- *Descriptor) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return fmt.Errorf("failed to open discovery socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	port := s.BroadcastPort
	if port == 0 {
		port = broadcastPort
	}
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: port}

	if _, err := conn.WriteToUDP([]byte(probeMessage), dst); err != nil {
		return fmt.Errorf("failed to send discovery probe: %w", err)
	}

	// Re-send periodically; TVs waking from standby can miss the first one.
	resend := time.NewTicker(probeInterval)
	defer resend.Stop()
	go func() {
		for {
			select {
			case <-resend.C:
				_, _ = conn.WriteToUDP([]byte(probeMessage), dst)
			case <-ctx.Done():
				return
			}
		}
	}()

	buf := make([]byte, 1024)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			return nil
		}
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return nil
		}

		if desc := parseAnnouncement(buf[:n], src); desc != nil {
			select {
			case found <- desc:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// parseAnnouncement converts one announcement datagram to a Descriptor.
func parseAnnouncement(data []byte, src *net.UDPAddr) *Descriptor {
	var ann announcement
	if err := json.Unmarshal(data, &ann); err != nil {
		return nil
	}
	if ann.MAC == "" && ann.Name == "" {
		return nil
	}

	port := ann.Port
	if port == 0 {
		port = DefaultControlPort
	}

	id := ann.MAC
	if id == "" {
		id = src.IP.String()
	}

	return &Descriptor{
		ID:           id,
		FriendlyName: ann.Name,
		IP:           src.IP.String(),
		Port:         port,
		MAC:          ann.MAC,
		DiscoveredAt: time.Now(),
	}
}
