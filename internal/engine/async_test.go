package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

func TestAsync_DeliversSameOutcomeAsBlocking(t *testing.T) {
	sess := newFakeSession()
	sess.doFunc = func(ctx context.Context, cmd protocol.Command) (*protocol.CommandResult, error) {
		if cmd.Kind == protocol.CmdMute {
			return &protocol.CommandResult{CorrelationID: cmd.CorrelationID, Success: false, Detail: "nope"}, nil
		}
		return &protocol.CommandResult{CorrelationID: cmd.CorrelationID, Success: true}, nil
	}
	e, _ := connectForCommands(t, sess)
	a := NewAsync(e)
	ctx := context.Background()

	blockingOK := e.SendKey(ctx, "KEY_HOME")
	asyncOK := <-a.SendKey(ctx, "KEY_HOME")
	if (blockingOK == nil) != (asyncOK == nil) {
		t.Errorf("surfaces disagree on success: blocking=%v async=%v", blockingOK, asyncOK)
	}

	blockingFail := e.Mute(ctx, true)
	asyncFail := <-a.Mute(ctx, true)
	if !errors.Is(blockingFail, ErrCommandFailed) || !errors.Is(asyncFail, ErrCommandFailed) {
		t.Errorf("surfaces disagree on failure: blocking=%v async=%v", blockingFail, asyncFail)
	}
}

func TestAsync_MethodsReturnImmediately(t *testing.T) {
	release := make(chan struct{})
	sess := newFakeSession()
	sess.doFunc = func(ctx context.Context, cmd protocol.Command) (*protocol.CommandResult, error) {
		select {
		case <-release:
			return &protocol.CommandResult{CorrelationID: cmd.CorrelationID, Success: true}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e, _ := connectForCommands(t, sess)
	a := NewAsync(e)

	start := time.Now()
	done := a.SendKey(context.Background(), "KEY_OK")
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("SendKey blocked the caller for %v", elapsed)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("deferred outcome = %v, want nil", err)
	}
}

func TestAsync_CancellationPropagates(t *testing.T) {
	sess := newFakeSession()
	sess.doFunc = func(ctx context.Context, cmd protocol.Command) (*protocol.CommandResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	e, _ := connectForCommands(t, sess)
	a := NewAsync(e)

	ctx, cancel := context.WithCancel(context.Background())
	done := a.SendKey(ctx, "KEY_OK")
	cancel()

	if err := <-done; err == nil {
		t.Error("cancelled operation delivered nil")
	}
}

func TestAsync_ErrorsWithoutSession(t *testing.T) {
	sess := newFakeSession()
	e, _, _ := newTestEngine(t, sess, Options{})
	a := NewAsync(e)

	if err := <-a.SendKey(context.Background(), "KEY_OK"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendKey = %v, want ErrNotConnected", err)
	}
}

func TestAsync_ConcurrentCommands(t *testing.T) {
	sess := newFakeSession()
	var mu sync.Mutex
	seen := 0
	sess.doFunc = func(ctx context.Context, cmd protocol.Command) (*protocol.CommandResult, error) {
		mu.Lock()
		seen++
		mu.Unlock()
		return &protocol.CommandResult{CorrelationID: cmd.CorrelationID, Success: true}, nil
	}
	e, _ := connectForCommands(t, sess)
	a := NewAsync(e)
	ctx := context.Background()

	futures := []<-chan error{
		a.SendKey(ctx, "KEY_UP"),
		a.SetVolume(ctx, 40),
		a.LaunchApp(ctx, "youtube"),
		a.SwitchInput(ctx, "hdmi2"),
	}
	for i, f := range futures {
		if err := <-f; err != nil {
			t.Errorf("future %d failed: %v", i, err)
		}
	}
	if seen != 4 {
		t.Errorf("session saw %d commands, want 4", seen)
	}
}
