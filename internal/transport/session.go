package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/tombabolewski/vidaa-control/internal/credentials"
	"github.com/tombabolewski/vidaa-control/internal/discovery"
	"github.com/tombabolewski/vidaa-control/internal/logging"
	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

// Session states.
type SessionState int32

const (
	// StateDisconnected indicates no connection.
	StateDisconnected SessionState = iota

	// StateConnecting indicates connection in progress.
	StateConnecting

	// StateConnected indicates an active session.
	StateConnected

	// StateClosed indicates the session was closed or lost.
	StateClosed
)

// String returns the session state name.
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Session errors.
var (
	// ErrConnectionLost means the stream closed or reset. The session is
	// unusable; establish a new one rather than repairing this one.
	ErrConnectionLost = errors.New("connection lost")

	// ErrNotConnected means the session is not in the connected state.
	ErrNotConnected = errors.New("not connected")

	// ErrCommandInFlight means the legacy dialect's single command slot
	// is occupied.
	ErrCommandInFlight = errors.New("a command is already in flight")
)

// Config configures one session.
type Config struct {
	// Descriptor identifies the device to connect to.
	Descriptor *discovery.Descriptor

	// Variant is the dialect negotiated for this session.
	Variant protocol.Variant

	// Credentials is the derived broker account.
	Credentials credentials.BrokerCredentials

	// ConnectTimeout bounds broker connection establishment.
	ConnectTimeout time.Duration

	// TLSConfig overrides the bundled certificate config (tests).
	TLSConfig *tls.Config

	// OnBroadcast receives unsolicited state updates. Called from the
	// read path; must not block.
	OnBroadcast func(*protocol.StateUpdate)

	// OnConnectionLost is notified once when the stream is lost.
	OnConnectionLost func(error)
}

// DefaultConnectTimeout bounds broker connection establishment when the
// config does not set one.
const DefaultConnectTimeout = 10 * time.Second

// Session is one live encrypted connection to a TV's broker. Exclusively
// owned by one engine instance; not shareable.
type Session struct {
	client   mqtt.Client
	variant  protocol.Variant
	clientID string

	state atomic.Int32

	mu           sync.Mutex
	pending      map[string]chan *protocol.CommandResult
	topicWaiters map[string]chan []byte

	// legacySlot serializes commands on firmware without a sequence
	// field; replies there can only be matched to a single outstanding
	// command.
	legacySlot chan struct{}

	onBroadcast func(*protocol.StateUpdate)
	onLost      func(error)
	lostOnce    sync.Once
}

// Connect establishes the encrypted session and runs the broker's
// initiation exchange. The returned session is ready for command traffic.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Descriptor == nil {
		return nil, errors.New("nil device descriptor")
	}

	tlsConfig := cfg.TLSConfig
	if tlsConfig == nil {
		var err error
		tlsConfig, err = newTLSConfig()
		if err != nil {
			return nil, err
		}
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = DefaultConnectTimeout
	}

	s := &Session{
		variant:      cfg.Variant,
		clientID:     cfg.Credentials.ClientID,
		pending:      make(map[string]chan *protocol.CommandResult),
		topicWaiters: make(map[string]chan []byte),
		legacySlot:   make(chan struct{}, 1),
		onBroadcast:  cfg.OnBroadcast,
		onLost:       cfg.OnConnectionLost,
	}
	s.state.Store(int32(StateConnecting))

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("ssl://%s", cfg.Descriptor.Addr())).
		SetClientID(cfg.Credentials.ClientID).
		SetUsername(cfg.Credentials.Username).
		SetPassword(cfg.Credentials.Password).
		SetTLSConfig(tlsConfig).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.handleConnectionLost(err)
		}).
		SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
			s.handleInbound(msg.Topic(), msg.Payload())
		})

	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	if !waitToken(ctx, token, connectTimeout) {
		s.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("broker connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		s.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("broker connect failed: %w", err)
	}

	if err := s.initiate(ctx, connectTimeout); err != nil {
		s.client.Disconnect(0)
		s.state.Store(int32(StateClosed))
		return nil, err
	}

	s.state.Store(int32(StateConnected))
	logging.Info("session established",
		zap.String("device", cfg.Descriptor.IP),
		zap.String("variant", cfg.Variant.String()),
	)
	return s, nil
}

// initiate subscribes to the reply and broadcast trees and publishes the
// state kick. No command traffic is allowed before this completes.
func (s *Session) initiate(ctx context.Context, timeout time.Duration) error {
	inbound := func(_ mqtt.Client, msg mqtt.Message) {
		s.handleInbound(msg.Topic(), msg.Payload())
	}

	for _, filter := range []string{
		protocol.ReplyTopicFilter(s.variant, s.clientID),
		protocol.BroadcastTopicFilter(s.variant),
	} {
		token := s.client.Subscribe(filter, 0, inbound)
		if !waitToken(ctx, token, timeout) {
			return fmt.Errorf("subscribe to %s timed out", filter)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe to %s failed: %w", filter, err)
		}
	}

	return s.Publish(protocol.GetStateTopic(s.variant, s.clientID), nil)
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Variant returns the dialect negotiated for this session.
func (s *Session) Variant() protocol.Variant {
	return s.variant
}

// ClientID returns the broker client identifier used in topic paths.
func (s *Session) ClientID() string {
	return s.clientID
}

// Publish sends one raw topic/payload pair to the broker.
func (s *Session) Publish(topic string, payload []byte) error {
	if s.State() == StateClosed {
		return ErrConnectionLost
	}
	logging.LogMQTTMessage("send", topic, payload)
	token := s.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(DefaultConnectTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}
	return nil
}

// Do publishes an encoded command and waits for its correlated reply.
// The wait is bounded by ctx; on expiry the waiter is deregistered so a
// late reply is discarded instead of corrupting a later command.
func (s *Session) Do(ctx context.Context, cmd protocol.Command) (*protocol.CommandResult, error) {
	if s.State() != StateConnected {
		return nil, ErrNotConnected
	}

	msg, err := protocol.Encode(cmd, s.variant, s.clientID)
	if err != nil {
		return nil, err
	}

	key := cmd.CorrelationID
	if !s.variant.UsesJSONPayloads() {
		// Legacy replies carry no sequence field: hold the single slot
		// for the duration of this exchange.
		select {
		case s.legacySlot <- struct{}{}:
			defer func() { <-s.legacySlot }()
		default:
			return nil, ErrCommandInFlight
		}
		key = ""
	}

	ch := make(chan *protocol.CommandResult, 1)
	s.mu.Lock()
	s.pending[key] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
	}()

	if err := s.Publish(msg.Topic, msg.Payload); err != nil {
		return nil, err
	}

	select {
	case result := <-ch:
		if result == nil {
			return nil, ErrConnectionLost
		}
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AwaitTopic registers a one-shot waiter for the next message on an exact
// topic. Used by the pairing handshake for the authentication and token
// issuance replies.
func (s *Session) AwaitTopic(ctx context.Context, topic string) ([]byte, error) {
	if s.State() == StateClosed {
		return nil, ErrConnectionLost
	}

	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.topicWaiters[topic] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.topicWaiters, topic)
		s.mu.Unlock()
	}()

	select {
	case payload := <-ch:
		if payload == nil {
			return nil, ErrConnectionLost
		}
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	if SessionState(s.state.Swap(int32(StateClosed))) == StateClosed {
		return
	}
	s.failAllWaiters()
	s.client.Disconnect(250)
	logging.Info("session closed")
}

// handleInbound is the single demux point for every frame the broker
// delivers: topic waiters first, then codec classification.
func (s *Session) handleInbound(topic string, payload []byte) {
	logging.LogMQTTMessage("recv", topic, payload)

	s.mu.Lock()
	waiter, ok := s.topicWaiters[topic]
	if ok {
		delete(s.topicWaiters, topic)
	}
	s.mu.Unlock()
	if ok {
		waiter <- payload
		return
	}

	event := protocol.Decode(s.variant, s.clientID, topic, payload)
	switch event.Kind {
	case protocol.EventCommandResult:
		s.deliverResult(event.Result)
	case protocol.EventStateBroadcast:
		if s.onBroadcast != nil {
			s.onBroadcast(event.State)
		}
	default:
		logging.Debug("unrecognized inbound message", zap.String("topic", topic))
	}
}

// deliverResult hands a decoded reply to the waiter registered under its
// correlation identifier. Replies with no waiter (timed out, cancelled,
// or duplicate) are discarded.
func (s *Session) deliverResult(result *protocol.CommandResult) {
	s.mu.Lock()
	ch, ok := s.pending[result.CorrelationID]
	if ok {
		delete(s.pending, result.CorrelationID)
	}
	s.mu.Unlock()

	if !ok {
		logging.Debug("discarding uncorrelated command reply",
			zap.String("correlation_id", result.CorrelationID),
		)
		return
	}
	ch <- result
}

// handleConnectionLost invalidates the session and fails every waiter.
func (s *Session) handleConnectionLost(err error) {
	s.state.Store(int32(StateClosed))
	logging.Warn("connection lost", zap.Error(err))
	s.failAllWaiters()
	s.lostOnce.Do(func() {
		if s.onLost != nil {
			s.onLost(fmt.Errorf("%w: %v", ErrConnectionLost, err))
		}
	})
}

// failAllWaiters wakes every outstanding command and topic waiter with a
// nil delivery, which they surface as ErrConnectionLost.
func (s *Session) failAllWaiters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, ch := range s.pending {
		delete(s.pending, key)
		ch <- nil
	}
	for topic, ch := range s.topicWaiters {
		delete(s.topicWaiters, topic)
		ch <- nil
	}
}

// waitToken waits for a paho token respecting both the context and the
// timeout budget.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-token.Done():
		return true
	case <-ctx.Done():
		return false
	case <-deadline.C:
		return false
	}
}
