// Package pairing runs the PIN-based authentication exchange that turns a
// fresh transport session into an authenticated one.
//
// The handshake is a small state machine:
//
//	Idle → ChallengeRequested → PinSubmitted → Authenticated
//
// with Rejected as the terminal failure state reachable from any
// non-terminal state. The device displays the PIN on its own screen when
// the challenge is requested; the caller reads it there and submits it
// through the engine. No transition is retried automatically: after a
// rejection the caller must start over from Idle.
//
// When a previously stored token exists, Reauthenticate runs the
// abbreviated exchange instead; if the device reports the token invalid
// the caller invalidates it and falls back to the full PIN flow.
package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tombabolewski/vidaa-control/internal/credentials"
	"github.com/tombabolewski/vidaa-control/internal/logging"
	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

// State is the handshake position.
type State int

const (
	// StateIdle is the initial state; no challenge requested yet.
	StateIdle State = iota

	// StateChallengeRequested means the device was told to display a PIN.
	StateChallengeRequested

	// StatePinSubmitted means the PIN was sent and the reply is pending.
	StatePinSubmitted

	// StateAuthenticated is the terminal success state.
	StateAuthenticated

	// StateRejected is the terminal failure state.
	StateRejected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateChallengeRequested:
		return "CHALLENGE_REQUESTED"
	case StatePinSubmitted:
		return "PIN_SUBMITTED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handshake errors.
var (
	// ErrPairingRejected means the device declined the PIN or the
	// challenge expired. Not retried automatically.
	ErrPairingRejected = errors.New("pairing rejected by device")

	// ErrCredentialInvalid means the device rejected a stored token.
	// Callers fall back to the full PIN flow; this is not fatal.
	ErrCredentialInvalid = errors.New("stored credential rejected by device")

	// ErrBadTransition means a handshake method was called out of order.
	ErrBadTransition = errors.New("invalid handshake transition")
)

// Conn is the slice of the transport session the handshake needs.
type Conn interface {
	Publish(topic string, payload []byte) error
	AwaitTopic(ctx context.Context, topic string) ([]byte, error)
	Variant() protocol.Variant
	ClientID() string
}

// Handshake drives one pairing attempt against one device. The challenge
// (PIN and session nonce) lives only for the duration of the attempt and
// is discarded at the end regardless of outcome.
type Handshake struct {
	conn     Conn
	store    *credentials.Store
	deviceID string

	mu    sync.Mutex
	state State
}

// New creates an idle handshake for the device behind conn.
func New(conn Conn, store *credentials.Store, deviceID string) *Handshake {
	return &Handshake{
		conn:     conn,
		store:    store,
		deviceID: deviceID,
		state:    StateIdle,
	}
}

// State returns the current handshake state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// transition moves from exactly one expected state to next.
func (h *Handshake) transition(from, to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != from {
		return fmt.Errorf("%w: %s -> %s (currently %s)", ErrBadTransition, from, to, h.state)
	}
	h.state = to
	return nil
}

func (h *Handshake) setState(to State) {
	h.mu.Lock()
	h.state = to
	h.mu.Unlock()
}

// RequestChallenge instructs the device to display a pairing PIN on its
// screen. Idle -> ChallengeRequested.
func (h *Handshake) RequestChallenge(ctx context.Context) error {
	if err := h.transition(StateIdle, StateChallengeRequested); err != nil {
		return err
	}

	v := h.conn.Variant()
	payload, err := encodeChallengeRequest(v)
	if err != nil {
		return err
	}
	if err := h.conn.Publish(protocol.AuthenticationTopic(v, h.conn.ClientID()), payload); err != nil {
		h.setState(StateRejected)
		return fmt.Errorf("failed to request pairing challenge: %w", err)
	}

	logging.Info("pairing challenge requested", zap.String("device", h.deviceID))
	return nil
}

// SubmitPIN sends the PIN shown on the TV screen and waits for the
// device's verdict. ChallengeRequested -> PinSubmitted, then
// Authenticated on acceptance (with the token persisted) or Rejected.
func (h *Handshake) SubmitPIN(ctx context.Context, pin string) error {
	if err := h.transition(StateChallengeRequested, StatePinSubmitted); err != nil {
		return err
	}

	v := h.conn.Variant()
	clientID := h.conn.ClientID()

	payload, err := encodePIN(v, pin)
	if err != nil {
		h.setState(StateRejected)
		return err
	}
	if err := h.conn.Publish(protocol.AuthenticationTopic(v, clientID), payload); err != nil {
		h.setState(StateRejected)
		return fmt.Errorf("failed to submit PIN: %w", err)
	}

	reply, err := h.conn.AwaitTopic(ctx, protocol.AuthenticationReplyTopic(v, clientID))
	if err != nil {
		h.setState(StateRejected)
		return fmt.Errorf("no authentication reply: %w", err)
	}

	verdict := decodeAuthReply(v, reply)
	if !verdict.accepted {
		h.setState(StateRejected)
		return ErrPairingRejected
	}

	token := verdict.token
	if v.HasTokenEnvelope() {
		token, err = h.awaitToken(ctx)
		if err != nil {
			h.setState(StateRejected)
			return err
		}
	}

	rec := &credentials.Record{
		Token:     token,
		Variant:   v.String(),
		PairedAt:  time.Now(),
		ExpiresAt: verdict.expiresAt,
	}
	if err := h.store.Put(h.deviceID, rec); err != nil {
		// Pairing itself succeeded; a persistence failure only costs the
		// next session a re-pair.
		logging.Warn("failed to persist pairing token",
			zap.String("device", h.deviceID),
			zap.Error(err),
		)
	}

	h.setState(StateAuthenticated)
	logging.Info("pairing authenticated", zap.String("device", h.deviceID))
	return nil
}

// awaitToken waits for the modern firmware's token issuance envelope.
func (h *Handshake) awaitToken(ctx context.Context) (string, error) {
	v := h.conn.Variant()
	payload, err := h.conn.AwaitTopic(ctx, protocol.TokenIssuanceTopic(v, h.conn.ClientID()))
	if err != nil {
		return "", fmt.Errorf("no token issuance: %w", err)
	}

	var envelope struct {
		AccessToken string `json:"accesstoken"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.AccessToken == "" {
		return "", fmt.Errorf("malformed token issuance payload")
	}
	return envelope.AccessToken, nil
}

// Reauthenticate runs the abbreviated exchange reusing a stored token.
// On success the handshake lands in Authenticated without a PIN. A device
// rejection returns ErrCredentialInvalid so the caller can invalidate the
// record and fall back to the full flow.
func (h *Handshake) Reauthenticate(ctx context.Context, rec *credentials.Record) error {
	if err := h.transition(StateIdle, StatePinSubmitted); err != nil {
		return err
	}
	if !rec.Valid() {
		h.setState(StateIdle)
		return ErrCredentialInvalid
	}

	v := h.conn.Variant()
	clientID := h.conn.ClientID()

	payload, err := encodeToken(v, rec.Token)
	if err != nil {
		h.setState(StateIdle)
		return err
	}
	if err := h.conn.Publish(protocol.AuthenticationTopic(v, clientID), payload); err != nil {
		h.setState(StateIdle)
		return fmt.Errorf("failed to submit token: %w", err)
	}

	reply, err := h.conn.AwaitTopic(ctx, protocol.AuthenticationReplyTopic(v, clientID))
	if err != nil {
		h.setState(StateIdle)
		return fmt.Errorf("no authentication reply: %w", err)
	}

	if verdict := decodeAuthReply(v, reply); !verdict.accepted {
		h.setState(StateIdle)
		return ErrCredentialInvalid
	}

	h.setState(StateAuthenticated)
	logging.Info("token re-authentication accepted", zap.String("device", h.deviceID))
	return nil
}

// Wire shapes for the authentication exchange.

type authRequestBody struct {
	Action  string `json:"action,omitempty"`
	AuthNum string `json:"authNum,omitempty"`
	Token   string `json:"token,omitempty"`
}

type authReplyBody struct {
	Result     *int   `json:"result"`
	Token      string `json:"token"`
	Expiration int64  `json:"expiration"`
}

type authVerdict struct {
	accepted  bool
	token     string
	expiresAt time.Time
}

func encodeChallengeRequest(v protocol.Variant) ([]byte, error) {
	if !v.UsesJSONPayloads() {
		return []byte("display"), nil
	}
	return json.Marshal(authRequestBody{Action: "request"})
}

func encodePIN(v protocol.Variant, pin string) ([]byte, error) {
	if !v.UsesJSONPayloads() {
		return []byte(pin), nil
	}
	return json.Marshal(authRequestBody{AuthNum: pin})
}

func encodeToken(v protocol.Variant, token string) ([]byte, error) {
	if !v.UsesJSONPayloads() {
		return []byte(token), nil
	}
	return json.Marshal(authRequestBody{Token: token})
}

func decodeAuthReply(v protocol.Variant, payload []byte) authVerdict {
	if !v.UsesJSONPayloads() {
		body := strings.TrimSpace(string(payload))
		// Legacy firmware answers "success" or "success:<token>".
		if token, ok := strings.CutPrefix(body, "success:"); ok {
			return authVerdict{accepted: true, token: token}
		}
		return authVerdict{accepted: body == "success"}
	}

	var body authReplyBody
	if err := json.Unmarshal(payload, &body); err != nil || body.Result == nil {
		return authVerdict{}
	}
	verdict := authVerdict{
		accepted: *body.Result == 1,
		token:    body.Token,
	}
	if body.Expiration > 0 {
		verdict.expiresAt = time.Unix(body.Expiration, 0)
	}
	return verdict
}
