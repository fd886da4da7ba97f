// Package discovery locates Vidaa TVs on the local network.
//
// Two probes run in parallel for each scan:
//
//  1. An mDNS browse for the "_vidaa-remote._tcp" service type, which
//     current firmware advertises.
//  2. A UDP broadcast probe on the discovery port, which older firmware
//     answers with a small JSON announcement.
//
// Responses are collected until the scan timeout elapses and deduplicated
// by IP address, keeping the most recently seen response per address.
// Every scan is independent; nothing is cached between calls.
//
// Finding no devices is a valid outcome and returns an empty list. Only a
// transport-level send failure (no usable network interface, both probe
// legs unable to transmit) is reported as a *DiscoveryError.
//
// # Network Requirements
//
//   - Multicast support on the network interface (mDNS, UDP port 5353)
//   - Broadcast permitted on the local subnet (UDP port 50001)
//   - TVs must be on the same network segment and at least in standby
package discovery
