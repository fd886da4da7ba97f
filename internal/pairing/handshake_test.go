package pairing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tombabolewski/vidaa-control/internal/credentials"
	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

// fakeConn scripts per-topic replies and records every publish.
type fakeConn struct {
	variant  protocol.Variant
	clientID string

	published  []publishCall
	replies    map[string][]byte
	publishErr error
	awaitErr   error
}

type publishCall struct {
	topic   string
	payload []byte
}

func (c *fakeConn) Publish(topic string, payload []byte) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, publishCall{topic: topic, payload: payload})
	return nil
}

func (c *fakeConn) AwaitTopic(ctx context.Context, topic string) ([]byte, error) {
	if c.awaitErr != nil {
		return nil, c.awaitErr
	}
	reply, ok := c.replies[topic]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return reply, nil
}

func (c *fakeConn) Variant() protocol.Variant { return c.variant }
func (c *fakeConn) ClientID() string          { return c.clientID }

func newTestHandshake(t *testing.T, conn *fakeConn) (*Handshake, *credentials.Store) {
	t.Helper()
	store := credentials.NewStore(filepath.Join(t.TempDir(), "credentials.yaml"))
	return New(conn, store, "dev-1"), store
}

func modernConn() *fakeConn {
	clientID := "AA:BB:CC:DD:EE:FF$his$ABCDEF_vidaacommon_001"
	return &fakeConn{
		variant:  protocol.VariantModern,
		clientID: clientID,
		replies: map[string][]byte{
			protocol.AuthenticationReplyTopic(protocol.VariantModern, clientID): []byte(`{"result":1}`),
			protocol.TokenIssuanceTopic(protocol.VariantModern, clientID):       []byte(`{"accesstoken":"tok-modern"}`),
		},
	}
}

func TestHandshake_FullFlowModern(t *testing.T) {
	conn := modernConn()
	h, store := newTestHandshake(t, conn)
	ctx := context.Background()

	if h.State() != StateIdle {
		t.Fatalf("initial state = %s, want IDLE", h.State())
	}
	if err := h.RequestChallenge(ctx); err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	if h.State() != StateChallengeRequested {
		t.Fatalf("state = %s, want CHALLENGE_REQUESTED", h.State())
	}
	if err := h.SubmitPIN(ctx, "1234"); err != nil {
		t.Fatalf("SubmitPIN failed: %v", err)
	}
	if h.State() != StateAuthenticated {
		t.Fatalf("state = %s, want AUTHENTICATED", h.State())
	}

	// The token from the issuance envelope must be persisted.
	rec, err := store.Get("dev-1")
	if err != nil {
		t.Fatalf("store.Get failed: %v", err)
	}
	if rec == nil || rec.Token != "tok-modern" {
		t.Errorf("stored record = %+v, want token tok-modern", rec)
	}
	if rec.Variant != "modern" {
		t.Errorf("stored variant = %q, want modern", rec.Variant)
	}
}

func TestHandshake_FullFlowLegacyInlineToken(t *testing.T) {
	clientID := "AA:BB:CC:DD:EE:FF$his$ABCDEF_vidaacommon_001"
	conn := &fakeConn{
		variant:  protocol.VariantLegacy,
		clientID: clientID,
		replies: map[string][]byte{
			protocol.AuthenticationReplyTopic(protocol.VariantLegacy, clientID): []byte("success:tok-legacy"),
		},
	}
	h, store := newTestHandshake(t, conn)
	ctx := context.Background()

	if err := h.RequestChallenge(ctx); err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	if err := h.SubmitPIN(ctx, "0000"); err != nil {
		t.Fatalf("SubmitPIN failed: %v", err)
	}

	rec, err := store.Get("dev-1")
	if err != nil {
		t.Fatalf("store.Get failed: %v", err)
	}
	if rec == nil || rec.Token != "tok-legacy" {
		t.Errorf("stored record = %+v, want token tok-legacy", rec)
	}
}

func TestHandshake_WrongPINIsTerminal(t *testing.T) {
	conn := modernConn()
	conn.replies[protocol.AuthenticationReplyTopic(conn.variant, conn.clientID)] = []byte(`{"result":0}`)
	h, store := newTestHandshake(t, conn)
	ctx := context.Background()

	if err := h.RequestChallenge(ctx); err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	if err := h.SubmitPIN(ctx, "9999"); !errors.Is(err, ErrPairingRejected) {
		t.Fatalf("SubmitPIN error = %v, want ErrPairingRejected", err)
	}
	if h.State() != StateRejected {
		t.Fatalf("state = %s, want REJECTED", h.State())
	}

	// Rejected is terminal: no retry on the same handshake.
	if err := h.SubmitPIN(ctx, "1234"); !errors.Is(err, ErrBadTransition) {
		t.Errorf("SubmitPIN after rejection = %v, want ErrBadTransition", err)
	}
	if err := h.RequestChallenge(ctx); !errors.Is(err, ErrBadTransition) {
		t.Errorf("RequestChallenge after rejection = %v, want ErrBadTransition", err)
	}

	if rec, _ := store.Get("dev-1"); rec != nil {
		t.Errorf("rejected pairing must not persist a record, got %+v", rec)
	}
}

func TestHandshake_NoAuthenticationWithoutPIN(t *testing.T) {
	conn := modernConn()
	h, _ := newTestHandshake(t, conn)
	ctx := context.Background()

	// Submitting before requesting a challenge is out of order.
	if err := h.SubmitPIN(ctx, "1234"); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("SubmitPIN from IDLE = %v, want ErrBadTransition", err)
	}
	if h.State() != StateIdle {
		t.Errorf("state = %s, failed transition must not move the machine", h.State())
	}

	// A second challenge request on the same handshake is out of order too.
	if err := h.RequestChallenge(ctx); err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	if err := h.RequestChallenge(ctx); !errors.Is(err, ErrBadTransition) {
		t.Errorf("second RequestChallenge = %v, want ErrBadTransition", err)
	}
}

func TestHandshake_MissingTokenEnvelopeFails(t *testing.T) {
	conn := modernConn()
	delete(conn.replies, protocol.TokenIssuanceTopic(conn.variant, conn.clientID))
	h, _ := newTestHandshake(t, conn)
	ctx := context.Background()

	if err := h.RequestChallenge(ctx); err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	if err := h.SubmitPIN(ctx, "1234"); err == nil {
		t.Fatal("SubmitPIN should fail when the token envelope never arrives")
	}
	if h.State() != StateRejected {
		t.Errorf("state = %s, want REJECTED", h.State())
	}
}

func TestReauthenticate_AcceptedToken(t *testing.T) {
	clientID := "AA:BB:CC:DD:EE:FF$his$ABCDEF_vidaacommon_001"
	conn := &fakeConn{
		variant:  protocol.VariantMiddle,
		clientID: clientID,
		replies: map[string][]byte{
			protocol.AuthenticationReplyTopic(protocol.VariantMiddle, clientID): []byte(`{"result":1}`),
		},
	}
	h, _ := newTestHandshake(t, conn)

	err := h.Reauthenticate(context.Background(), &credentials.Record{Token: "tok", Variant: "middle"})
	if err != nil {
		t.Fatalf("Reauthenticate failed: %v", err)
	}
	if h.State() != StateAuthenticated {
		t.Errorf("state = %s, want AUTHENTICATED", h.State())
	}
}

func TestReauthenticate_RejectedTokenResetsToIdle(t *testing.T) {
	conn := modernConn()
	conn.replies[protocol.AuthenticationReplyTopic(conn.variant, conn.clientID)] = []byte(`{"result":0}`)
	h, _ := newTestHandshake(t, conn)

	err := h.Reauthenticate(context.Background(), &credentials.Record{Token: "stale"})
	if !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("Reauthenticate error = %v, want ErrCredentialInvalid", err)
	}

	// Token rejection is recoverable: the machine resets so the caller can
	// run the full PIN flow on the same handshake.
	if h.State() != StateIdle {
		t.Fatalf("state = %s, want IDLE", h.State())
	}
	if err := h.RequestChallenge(context.Background()); err != nil {
		t.Errorf("PIN flow after token rejection failed: %v", err)
	}
}

func TestReauthenticate_InvalidRecord(t *testing.T) {
	conn := modernConn()
	h, _ := newTestHandshake(t, conn)

	err := h.Reauthenticate(context.Background(), &credentials.Record{})
	if !errors.Is(err, ErrCredentialInvalid) {
		t.Fatalf("Reauthenticate error = %v, want ErrCredentialInvalid", err)
	}
	if len(conn.published) != 0 {
		t.Error("an empty record must not reach the wire")
	}
}

func TestDecodeAuthReply(t *testing.T) {
	tests := []struct {
		name      string
		variant   protocol.Variant
		payload   string
		accepted  bool
		wantToken string
	}{
		{"modern accept", protocol.VariantModern, `{"result":1,"token":"t1"}`, true, "t1"},
		{"modern reject", protocol.VariantModern, `{"result":0}`, false, ""},
		{"modern malformed", protocol.VariantModern, `garbage`, false, ""},
		{"modern missing result", protocol.VariantModern, `{}`, false, ""},
		{"legacy accept", protocol.VariantLegacy, "success", true, ""},
		{"legacy accept with token", protocol.VariantLegacy, "success:t2", true, "t2"},
		{"legacy reject", protocol.VariantLegacy, "fail", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := decodeAuthReply(tt.variant, []byte(tt.payload))
			if verdict.accepted != tt.accepted {
				t.Errorf("accepted = %v, want %v", verdict.accepted, tt.accepted)
			}
			if verdict.token != tt.wantToken {
				t.Errorf("token = %q, want %q", verdict.token, tt.wantToken)
			}
		})
	}
}
