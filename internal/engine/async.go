package engine

import (
	"context"

	"github.com/tombabolewski/vidaa-control/internal/discovery"
	"github.com/tombabolewski/vidaa-control/internal/state"
)

// Async is the non-blocking presentation of the engine. Every method
// returns immediately with a channel that delivers the operation's
// outcome; the correctness logic is the blocking engine's, run on a
// separate goroutine, so both surfaces produce identical observable
// results and error conditions for the same command sequence.
//
// An in-flight operation is cancelled through its context; a cancelled
// operation's eventual late device reply is discarded by the session
// layer, exactly as in the blocking surface.
type Async struct {
	engine *Engine
}

// NewAsync wraps an engine with the non-blocking surface. Both views
// share the single underlying session; the one-session-per-device
// ownership rule is unchanged.
func NewAsync(engine *Engine) *Async {
	return &Async{engine: engine}
}

// Engine returns the underlying blocking engine.
func (a *Async) Engine() *Engine {
	return a.engine
}

// future runs op on its own goroutine and delivers its error.
func future(op func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- op()
	}()
	return done
}

// Connect establishes the session without blocking the caller.
func (a *Async) Connect(ctx context.Context, desc *discovery.Descriptor) <-chan error {
	return future(func() error { return a.engine.Connect(ctx, desc) })
}

// Pair runs the PIN handshake without blocking the caller.
func (a *Async) Pair(ctx context.Context, prompt PinPrompt) <-chan error {
	return future(func() error { return a.engine.Pair(ctx, prompt) })
}

// SendKey presses one remote key without blocking the caller.
func (a *Async) SendKey(ctx context.Context, keyName string) <-chan error {
	return future(func() error { return a.engine.SendKey(ctx, keyName) })
}

// SetVolume sets the absolute volume level without blocking the caller.
func (a *Async) SetVolume(ctx context.Context, level int) <-chan error {
	return future(func() error { return a.engine.SetVolume(ctx, level) })
}

// Mute sets the mute state without blocking the caller.
func (a *Async) Mute(ctx context.Context, muted bool) <-chan error {
	return future(func() error { return a.engine.Mute(ctx, muted) })
}

// LaunchApp launches an application without blocking the caller.
func (a *Async) LaunchApp(ctx context.Context, appID string) <-chan error {
	return future(func() error { return a.engine.LaunchApp(ctx, appID) })
}

// SwitchInput switches the active input without blocking the caller.
func (a *Async) SwitchInput(ctx context.Context, sourceID string) <-chan error {
	return future(func() error { return a.engine.SwitchInput(ctx, sourceID) })
}

// GetState returns the cached device state. Reading the snapshot never
// blocks, so no channel indirection is needed.
func (a *Async) GetState() state.DeviceState {
	return a.engine.GetState()
}

// Disconnect tears the session down without blocking the caller.
func (a *Async) Disconnect() <-chan error {
	return future(func() error {
		a.engine.Disconnect()
		return nil
	})
}
