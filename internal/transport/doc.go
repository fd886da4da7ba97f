// Package transport owns the encrypted session to one TV and moves
// framed messages in and out of its MQTT broker.
//
// A Session wraps one MQTT-over-TLS connection to the control port
// (36669), authenticated with the bundled client certificate and the
// time-derived broker account. After the stream is up the session runs
// the broker's initiation exchange: it subscribes to the per-client reply
// tree and the shared broadcast tree, then publishes the state kick so
// the TV starts reporting.
//
// One dedicated message handler drains the stream continuously and
// demultiplexes inbound traffic:
//
//   - replies correlated to outstanding commands are delivered to the
//     waiter registered under their correlation identifier
//   - unsolicited broadcast frames are handed to the broadcast callback
//   - one-shot topic waiters (used by the pairing handshake) are checked
//     before codec decoding
//
// Commands time out independently of each other; a timed-out command's
// late reply is discarded. On stream loss the session becomes invalid,
// every outstanding waiter fails with ErrConnectionLost, and the caller
// must establish a fresh session. No in-place repair is attempted.
package transport
