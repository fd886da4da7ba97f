// Package wake powers a TV on over the network.
//
// A sleeping TV keeps its network interface listening even though the
// broker and the management endpoint are down, so wake-on-LAN is the only
// operation usable while the device is fully off. The magic packet is a
// connectionless fire-and-forget broadcast; no session is required and no
// acknowledgment is possible.
package wake

import (
	"fmt"
	"net"

	"github.com/tombabolewski/vidaa-control/internal/logging"
)

// WakePort is the conventional wake-on-LAN UDP port.
const WakePort = 9

// Send broadcasts one magic packet addressed to the device's physical
// network identifier. Delivery is not acknowledged.
func Send(mac string) error {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return fmt.Errorf("invalid device MAC %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return fmt.Errorf("unsupported MAC length %d for %q", len(hw), mac)
	}

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4bcast, Port: WakePort})
	if err != nil {
		return fmt.Errorf("failed to open wake socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	packet := MagicPacket(hw)
	logging.LogRawBytes("wake packet", packet)
	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("failed to send wake packet: %w", err)
	}
	return nil
}

// MagicPacket builds the 102-byte wake-on-LAN frame: six 0xFF bytes
// followed by the MAC repeated sixteen times.
func MagicPacket(hw net.HardwareAddr) []byte {
	packet := make([]byte, 0, 102)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xFF)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, hw...)
	}
	return packet
}
