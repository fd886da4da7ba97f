// Package credentials persists pairing tokens and derives the MQTT
// connection credentials the TV's broker expects.
//
// # Pairing token store
//
// One record per paired device identifier is kept in a YAML registry at
// the OS-appropriate config location (e.g. ~/.config/vidaa-control/
// credentials.yaml on Linux). Each record carries the opaque access
// token, the dialect the device was paired under, and bookkeeping
// metadata. Records are written on handshake success, read at connect
// time, and invalidated when the device rejects the token.
//
// # Broker credentials
//
// The broker does not use static accounts. Client id, username and
// password are derived from the device's network identifier and the
// current time, with the exact recipe depending on the firmware dialect:
// legacy firmware takes a plain timestamp username, newer firmware XORs
// the timestamp with a fixed constant and the password suffix differs
// between the middle and modern generations. Some very old models also
// accept a static fallback account, exposed as DeriveStatic.
package credentials
