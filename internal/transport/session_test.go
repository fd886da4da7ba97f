package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

const testClientID = "AA:BB:CC:DD:EE:FF$his$ABCDEF_vidaacommon_001"

// doneToken is an mqtt.Token that has already completed.
type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *doneToken) Error() error { return t.err }

// fakeMQTTClient records publishes; everything completes immediately.
type fakeMQTTClient struct {
	mu        sync.Mutex
	published []struct {
		topic   string
		payload []byte
	}
	publishErr error
}

func (c *fakeMQTTClient) publishedTopics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := make([]string, len(c.published))
	for i, p := range c.published {
		topics[i] = p.topic
	}
	return topics
}

func (c *fakeMQTTClient) IsConnected() bool      { return true }
func (c *fakeMQTTClient) IsConnectionOpen() bool { return true }
func (c *fakeMQTTClient) Connect() mqtt.Token    { return &doneToken{} }
func (c *fakeMQTTClient) Disconnect(uint)        {}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	if c.publishErr != nil {
		return &doneToken{err: c.publishErr}
	}
	var data []byte
	if b, ok := payload.([]byte); ok {
		data = b
	}
	c.mu.Lock()
	c.published = append(c.published, struct {
		topic   string
		payload []byte
	}{topic, data})
	c.mu.Unlock()
	return &doneToken{}
}

func (c *fakeMQTTClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return &doneToken{}
}
func (c *fakeMQTTClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &doneToken{}
}
func (c *fakeMQTTClient) Unsubscribe(...string) mqtt.Token        { return &doneToken{} }
func (c *fakeMQTTClient) AddRoute(string, mqtt.MessageHandler)    {}
func (c *fakeMQTTClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

// newTestSession builds a connected session over the fake client.
func newTestSession(v protocol.Variant, client mqtt.Client) *Session {
	s := &Session{
		client:       client,
		variant:      v,
		clientID:     testClientID,
		pending:      make(map[string]chan *protocol.CommandResult),
		topicWaiters: make(map[string]chan []byte),
		legacySlot:   make(chan struct{}, 1),
	}
	s.state.Store(int32(StateConnected))
	return s
}

func replyTopic(v protocol.Variant) string {
	root := "remoteapp"
	if v == protocol.VariantLegacy {
		root = "remote"
	}
	return fmt.Sprintf("/%s/mobile/%s/remote_service/data/sendkey", root, testClientID)
}

func TestDo_CorrelatesReplyBySequence(t *testing.T) {
	client := &fakeMQTTClient{}
	s := newTestSession(protocol.VariantModern, client)

	done := make(chan struct{})
	var result *protocol.CommandResult
	var doErr error
	go func() {
		defer close(done)
		result, doErr = s.Do(context.Background(), protocol.Command{
			Kind: protocol.CmdSendKey, Key: "KEY_HOME", CorrelationID: "seq-1",
		})
	}()

	// Wait for the command to hit the wire, then deliver the reply. An
	// uncorrelated reply arriving first must be discarded, not matched.
	waitFor(t, func() bool { return len(client.publishedTopics()) == 1 })
	s.handleInbound(replyTopic(protocol.VariantModern), []byte(`{"seq":"other","result":0}`))
	s.handleInbound(replyTopic(protocol.VariantModern), []byte(`{"seq":"seq-1","result":1}`))

	<-done
	if doErr != nil {
		t.Fatalf("Do failed: %v", doErr)
	}
	if !result.Success || result.CorrelationID != "seq-1" {
		t.Errorf("result = %+v, want success for seq-1", result)
	}
}

func TestDo_TimeoutDeregistersWaiter(t *testing.T) {
	client := &fakeMQTTClient{}
	s := newTestSession(protocol.VariantModern, client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.Do(ctx, protocol.Command{Kind: protocol.CmdSendKey, Key: "KEY_OK", CorrelationID: "seq-late"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do error = %v, want deadline exceeded", err)
	}

	// The late reply finds no waiter and is dropped silently.
	s.handleInbound(replyTopic(protocol.VariantModern), []byte(`{"seq":"seq-late","result":1}`))

	s.mu.Lock()
	n := len(s.pending)
	s.mu.Unlock()
	if n != 0 {
		t.Errorf("pending waiters = %d after timeout, want 0", n)
	}
}

func TestDo_LegacySingleCommandSlot(t *testing.T) {
	client := &fakeMQTTClient{}
	s := newTestSession(protocol.VariantLegacy, client)

	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-release
			cancel()
		}()
		_, err := s.Do(ctx, protocol.Command{Kind: protocol.CmdSendKey, Key: "KEY_UP"})
		firstDone <- err
	}()

	// With the slot held, a second command is refused instead of queued.
	waitFor(t, func() bool { return len(client.publishedTopics()) == 1 })
	_, err := s.Do(context.Background(), protocol.Command{Kind: protocol.CmdSendKey, Key: "KEY_DOWN"})
	if !errors.Is(err, ErrCommandInFlight) {
		t.Fatalf("second Do error = %v, want ErrCommandInFlight", err)
	}

	close(release)
	<-firstDone

	// The slot is free again once the first exchange ends.
	go func() {
		for len(client.publishedTopics()) < 2 {
			time.Sleep(2 * time.Millisecond)
		}
		s.handleInbound(replyTopic(protocol.VariantLegacy), []byte("success"))
	}()
	if _, err := s.Do(context.Background(), protocol.Command{Kind: protocol.CmdSendKey, Key: "KEY_OK"}); err != nil {
		t.Fatalf("Do after slot release failed: %v", err)
	}
}

func TestDo_NotConnected(t *testing.T) {
	s := newTestSession(protocol.VariantModern, &fakeMQTTClient{})
	s.state.Store(int32(StateClosed))

	_, err := s.Do(context.Background(), protocol.Command{Kind: protocol.CmdSendKey, Key: "KEY_OK"})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Do error = %v, want ErrNotConnected", err)
	}
}

func TestDo_EncodingErrorBeforePublish(t *testing.T) {
	client := &fakeMQTTClient{}
	s := newTestSession(protocol.VariantModern, client)

	_, err := s.Do(context.Background(), protocol.Command{Kind: protocol.CmdSendKey, Key: "KEY_BOGUS"})
	if !errors.Is(err, protocol.ErrUnsupportedCommand) {
		t.Fatalf("Do error = %v, want ErrUnsupportedCommand", err)
	}
	if len(client.publishedTopics()) != 0 {
		t.Error("invalid command reached the wire")
	}
}

func TestAwaitTopic(t *testing.T) {
	s := newTestSession(protocol.VariantModern, &fakeMQTTClient{})
	topic := "/remoteapp/mobile/" + testClientID + "/ui_service/data/authentication"

	done := make(chan struct{})
	var payload []byte
	var err error
	go func() {
		defer close(done)
		payload, err = s.AwaitTopic(context.Background(), topic)
	}()

	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.topicWaiters) == 1
	})
	s.handleInbound(topic, []byte(`{"result":1}`))

	<-done
	if err != nil {
		t.Fatalf("AwaitTopic failed: %v", err)
	}
	if string(payload) != `{"result":1}` {
		t.Errorf("payload = %q", payload)
	}
}

func TestConnectionLost_FailsWaitersAndNotifiesOnce(t *testing.T) {
	client := &fakeMQTTClient{}
	s := newTestSession(protocol.VariantModern, client)

	notifications := 0
	var notified error
	s.onLost = func(err error) {
		notifications++
		notified = err
	}

	doDone := make(chan error, 1)
	go func() {
		_, err := s.Do(context.Background(), protocol.Command{
			Kind: protocol.CmdSendKey, Key: "KEY_OK", CorrelationID: "seq-1",
		})
		doDone <- err
	}()
	awaitDone := make(chan error, 1)
	go func() {
		_, err := s.AwaitTopic(context.Background(), "/remoteapp/mobile/"+testClientID+"/ui_service/data/authentication")
		awaitDone <- err
	}()

	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.pending) == 1 && len(s.topicWaiters) == 1
	})

	s.handleConnectionLost(errors.New("broker reset"))
	s.handleConnectionLost(errors.New("again"))

	if err := <-doDone; !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Do error = %v, want ErrConnectionLost", err)
	}
	if err := <-awaitDone; !errors.Is(err, ErrConnectionLost) {
		t.Errorf("AwaitTopic error = %v, want ErrConnectionLost", err)
	}
	if notifications != 1 {
		t.Errorf("loss notified %d times, want once", notifications)
	}
	if !errors.Is(notified, ErrConnectionLost) {
		t.Errorf("notification error = %v, want ErrConnectionLost", notified)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED", s.State())
	}
}

func TestHandleInbound_BroadcastReachesCallback(t *testing.T) {
	s := newTestSession(protocol.VariantModern, &fakeMQTTClient{})
	var got *protocol.StateUpdate
	s.onBroadcast = func(u *protocol.StateUpdate) { got = u }

	s.handleInbound(
		"/remoteapp/mobile/broadcast/platform_service/actions/volumechange",
		[]byte(`{"volume_type":0,"volume_value":40}`),
	)

	if got == nil || got.Volume == nil || *got.Volume != 40 {
		t.Errorf("broadcast update = %+v, want volume 40", got)
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	s := newTestSession(protocol.VariantModern, &fakeMQTTClient{})
	s.Close()
	s.Close()
	if s.State() != StateClosed {
		t.Errorf("state = %s, want CLOSED", s.State())
	}
	if err := s.Publish("/topic", nil); !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Publish after close = %v, want ErrConnectionLost", err)
	}
}

// waitFor polls cond briefly; test helpers only.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
