// Package engine composes discovery, detection, transport, pairing and
// state tracking into a single control session for one TV.
//
// An Engine exclusively owns at most one live session. Every command
// method encodes via the dialect codec, publishes over the session, and
// waits for the correlated device reply up to the command timeout.
// Command methods never mutate the cached device state themselves; only a
// subsequent broadcast from the TV does, so GetState may lag a
// just-issued command until the device confirms it.
//
// The methods here form the blocking surface: each call suspends the
// calling goroutine until completion, timeout or cancellation. The Async
// adapter in this package exposes the identical logic without blocking
// the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tombabolewski/vidaa-control/internal/credentials"
	"github.com/tombabolewski/vidaa-control/internal/detect"
	"github.com/tombabolewski/vidaa-control/internal/discovery"
	"github.com/tombabolewski/vidaa-control/internal/logging"
	"github.com/tombabolewski/vidaa-control/internal/pairing"
	"github.com/tombabolewski/vidaa-control/internal/protocol"
	"github.com/tombabolewski/vidaa-control/internal/state"
	"github.com/tombabolewski/vidaa-control/internal/transport"
	"github.com/tombabolewski/vidaa-control/internal/wake"
)

// DefaultCommandTimeout bounds the wait for one command's device reply.
const DefaultCommandTimeout = 5 * time.Second

// Engine errors.
var (
	// ErrCommandTimeout means no correlated reply arrived within the
	// budget. The command is assumed not applied.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrCommandFailed means the device answered and declined.
	ErrCommandFailed = errors.New("command rejected by device")

	// ErrNotConnected means no live session exists.
	ErrNotConnected = errors.New("engine is not connected")

	// ErrNotPaired means the session is up but not authenticated and no
	// PIN prompt was configured to complete pairing.
	ErrNotPaired = errors.New("device is not paired")
)

// PinPrompt asks the caller for the PIN currently shown on the TV screen.
type PinPrompt func(ctx context.Context) (string, error)

// session is the transport surface the engine drives. Satisfied by
// *transport.Session; replaced by a fake in tests.
type session interface {
	Do(ctx context.Context, cmd protocol.Command) (*protocol.CommandResult, error)
	Publish(topic string, payload []byte) error
	AwaitTopic(ctx context.Context, topic string) ([]byte, error)
	Variant() protocol.Variant
	ClientID() string
	Close()
}

// detector classifies a device's dialect. Satisfied by *detect.Detector.
type detector interface {
	Detect(ctx context.Context, desc *discovery.Descriptor) (protocol.Variant, error)
}

// Options tunes an engine.
type Options struct {
	// CommandTimeout bounds each command's reply wait.
	CommandTimeout time.Duration

	// ConnectTimeout bounds session establishment.
	ConnectTimeout time.Duration

	// PinPrompt supplies the PIN during pairing. When nil, operations
	// requiring a fresh pairing fail with ErrNotPaired instead of
	// prompting.
	PinPrompt PinPrompt
}

// Engine is the control facade for one TV.
type Engine struct {
	store *credentials.Store
	opts  Options

	detector detector
	connect  func(ctx context.Context, cfg transport.Config) (session, error)

	tracker *state.Tracker

	mu            sync.Mutex
	sess          session
	desc          *discovery.Descriptor
	variant       protocol.Variant
	authenticated bool
}

// New creates a disconnected engine backed by the given credential store.
func New(store *credentials.Store, opts Options) *Engine {
	if opts.CommandTimeout == 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = transport.DefaultConnectTimeout
	}
	return &Engine{
		store:    store,
		opts:     opts,
		detector: detect.NewDetector(),
		connect: func(ctx context.Context, cfg transport.Config) (session, error) {
			return transport.Connect(ctx, cfg)
		},
		tracker: state.NewTracker(),
	}
}

// Connect establishes a session: detect the dialect, derive broker
// credentials, open the encrypted stream, then authenticate. A valid
// stored credential skips the PIN; a rejected one is invalidated and the
// engine falls back to the full PIN flow, prompting the caller exactly
// once through Options.PinPrompt.
func (e *Engine) Connect(ctx context.Context, desc *discovery.Descriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil {
		return errors.New("engine already connected; disconnect first")
	}

	// Dialect is re-detected on every connect; firmware may have changed
	// since the last session.
	variant, err := e.detector.Detect(ctx, desc)
	if err != nil {
		return err
	}

	creds := credentials.Derive(desc.ID, variant)
	sess, err := e.connect(ctx, transport.Config{
		Descriptor:     desc,
		Variant:        variant,
		Credentials:    creds,
		ConnectTimeout: e.opts.ConnectTimeout,
		OnBroadcast:    e.tracker.Apply,
		OnConnectionLost: func(err error) {
			e.handleConnectionLost(err)
		},
	})
	if err != nil {
		return err
	}

	e.sess = sess
	e.desc = desc
	e.variant = variant
	e.tracker.Reset()

	if err := e.authenticateLocked(ctx); err != nil {
		sess.Close()
		e.sess = nil
		e.desc = nil
		return err
	}
	return nil
}

// authenticateLocked completes authentication on the fresh session.
func (e *Engine) authenticateLocked(ctx context.Context) error {
	rec, err := e.store.Get(e.desc.ID)
	if err != nil {
		logging.Warn("credential store read failed", zap.Error(err))
	}

	if rec.Valid() {
		hs := pairing.New(e.sess, e.store, e.desc.ID)
		err := hs.Reauthenticate(ctx, rec)
		if err == nil {
			e.authenticated = true
			return nil
		}
		if !errors.Is(err, pairing.ErrCredentialInvalid) {
			return err
		}
		// Token rejected: drop it and fall back to the full PIN flow.
		if err := e.store.Invalidate(e.desc.ID); err != nil {
			logging.Warn("failed to invalidate credential", zap.Error(err))
		}
		logging.Info("stored token rejected, falling back to PIN pairing",
			zap.String("device", e.desc.ID),
		)
	}

	if e.opts.PinPrompt == nil {
		return ErrNotPaired
	}
	return e.pairLocked(ctx, e.opts.PinPrompt)
}

// Pair runs the full PIN handshake on the live session, prompting for the
// PIN through the callback.
func (e *Engine) Pair(ctx context.Context, prompt PinPrompt) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ErrNotConnected
	}
	return e.pairLocked(ctx, prompt)
}

func (e *Engine) pairLocked(ctx context.Context, prompt PinPrompt) error {
	hs := pairing.New(e.sess, e.store, e.desc.ID)
	if err := hs.RequestChallenge(ctx); err != nil {
		return err
	}

	pin, err := prompt(ctx)
	if err != nil {
		return fmt.Errorf("PIN prompt failed: %w", err)
	}

	if err := hs.SubmitPIN(ctx, pin); err != nil {
		return err
	}
	e.authenticated = true
	return nil
}

// Disconnect tears down the session, if any. Safe to call when already
// disconnected.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil {
		e.sess.Close()
	}
	e.sess = nil
	e.desc = nil
	e.authenticated = false
}

// Connected reports whether a live session exists.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess != nil
}

// handleConnectionLost surfaces the disconnected state. Reconnection is
// the caller's decision; no automatic repair.
func (e *Engine) handleConnectionLost(err error) {
	logging.Warn("session invalidated", zap.Error(err))
	e.mu.Lock()
	e.sess = nil
	e.desc = nil
	e.authenticated = false
	e.mu.Unlock()
}

// SendKey presses one remote key.
func (e *Engine) SendKey(ctx context.Context, keyName string) error {
	return e.execute(ctx, protocol.Command{Kind: protocol.CmdSendKey, Key: keyName})
}

// SetVolume sets the absolute volume level (0-100).
func (e *Engine) SetVolume(ctx context.Context, level int) error {
	return e.execute(ctx, protocol.Command{Kind: protocol.CmdSetVolume, Volume: level})
}

// Mute sets the mute state.
func (e *Engine) Mute(ctx context.Context, muted bool) error {
	return e.execute(ctx, protocol.Command{Kind: protocol.CmdMute, Muted: muted})
}

// LaunchApp launches an application by identifier.
func (e *Engine) LaunchApp(ctx context.Context, appID string) error {
	return e.execute(ctx, protocol.Command{Kind: protocol.CmdLaunchApp, AppID: appID})
}

// SwitchInput switches the active input source.
func (e *Engine) SwitchInput(ctx context.Context, sourceID string) error {
	return e.execute(ctx, protocol.Command{Kind: protocol.CmdSwitchInput, SourceID: sourceID})
}

// GetState returns the last-known device state. The snapshot reflects
// the most recent broadcast, not commands still awaiting confirmation.
func (e *Engine) GetState() state.DeviceState {
	return e.tracker.Snapshot()
}

// PowerOnViaWake broadcasts a wake packet to the device's physical
// network identifier. Requires no session; it is the only operation
// usable while the TV is fully powered off.
func (e *Engine) PowerOnViaWake(mac string) error {
	return wake.Send(mac)
}

// execute runs one command through the session: assign the correlation
// identifier, send, and wait for the correlated reply within the budget.
func (e *Engine) execute(ctx context.Context, cmd protocol.Command) error {
	e.mu.Lock()
	sess := e.sess
	authenticated := e.authenticated
	e.mu.Unlock()

	if sess == nil {
		return ErrNotConnected
	}
	if !authenticated {
		return ErrNotPaired
	}

	cmd.CorrelationID = uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, e.opts.CommandTimeout)
	defer cancel()

	result, err := sess.Do(ctx, cmd)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrCommandTimeout, cmd.Kind)
		}
		return err
	}
	if !result.Success {
		if result.Detail != "" {
			return fmt.Errorf("%w: %s", ErrCommandFailed, result.Detail)
		}
		return ErrCommandFailed
	}
	return nil
}
