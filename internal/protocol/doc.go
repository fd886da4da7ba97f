// Package protocol implements the wire dialects spoken by Vidaa TV
// firmware over the on-device MQTT broker.
//
// Three mutually incompatible dialects exist, split by platform version:
//
//   - Legacy (platform < 3000): plain-text payloads, no per-command
//     sequence field, pre-XOR authentication.
//   - Middle (platform 3000-3285): JSON payloads with a sequence field,
//     XOR'd-timestamp authentication, legacy password suffix.
//   - Modern (platform >= 3290): JSON payloads with a sequence field,
//     XOR'd-timestamp authentication, modern password suffix and the
//     token issuance envelope during pairing.
//
// The package is pure: it maps high-level commands to topic/payload pairs
// and decodes inbound topic/payload pairs into events. It performs no I/O.
// All key names, application identifiers and input sources are closed
// enumerations validated before anything touches the network.
//
// # Topic layout
//
// Commands are published to the TV's service topics:
//
//	/remoteapp/tv/<service>/<clientID>/actions/<action>
//
// Replies come back on the per-client mobile tree and unsolicited state
// broadcasts on the shared broadcast tree:
//
//	/remoteapp/mobile/<clientID>/<service>/data/<action>
//	/remoteapp/mobile/broadcast/<service>/...
//
// The exact payload grammar per dialect follows the protocol analysis of
// the Vidaa mobile application; this package encodes that table, it does
// not re-derive it.
package protocol
