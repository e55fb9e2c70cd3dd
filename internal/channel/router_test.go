package channel

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"dentalgw/internal/pairing"
	"dentalgw/internal/registry"
)

// fakeSender records every message sent to each client, standing in for
// a real websocket connection.
type fakeSender struct {
	mu     sync.Mutex
	sent   map[string][]Message
	closed map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string][]Message), closed: make(map[string]bool)}
}

func (f *fakeSender) Send(clientID string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[clientID] = append(f.sent[clientID], msg)
	return nil
}

func (f *fakeSender) Close(clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[clientID] = true
}

func (f *fakeSender) types(clientID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent[clientID] {
		out = append(out, m.Type)
	}
	return out
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func newTestRouter() (*Router, *fakeSender, *pairing.Store) {
	reg := registry.New()
	store := pairing.NewStore(5*time.Minute, nil)
	sender := newFakeSender()
	r := New(reg, store, sender, 10, 1<<20, nil)
	return r, sender, store
}

func send(t *testing.T, r *Router, clientID string, msg Message) {
	t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	r.HandleText(clientID, raw)
}

func TestIdentifyTransitionsToIdentified(t *testing.T) {
	r, _, _ := newTestRouter()
	r.Accept(&registry.Conn{ID: "d1", DeviceType: registry.DeviceDesktop})

	send(t, r, "d1", Message{Type: "identify", SessionID: "desktop-session"})

	sess, _ := r.sessionFor("d1")
	sess.mu.Lock()
	state := sess.state
	sess.mu.Unlock()
	if state != StateIdentified {
		t.Errorf("expected IDENTIFIED, got %s", state)
	}
}

func TestJoinChannelRequiresExistingPairingRecord(t *testing.T) {
	r, sender, _ := newTestRouter()
	r.Accept(&registry.Conn{ID: "d1", DeviceType: registry.DeviceDesktop})
	send(t, r, "d1", Message{Type: "identify", SessionID: "s1"})

	send(t, r, "d1", Message{Type: "join_channel", ChannelID: "pair-999999"})

	if !contains(sender.types("d1"), "error") {
		t.Errorf("expected an error for unknown channel, got %v", sender.types("d1"))
	}
}

func TestMobileInitJoinsAndBroadcastsSuccess(t *testing.T) {
	r, sender, store := newTestRouter()
	rec, err := store.Create(context.Background(), "desktop-session")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	r.Accept(&registry.Conn{ID: "d1", DeviceType: registry.DeviceDesktop})
	r.Accept(&registry.Conn{ID: "m1", DeviceType: registry.DeviceMobile})
	send(t, r, "d1", Message{Type: "identify", SessionID: "desktop-session"})
	send(t, r, "d1", Message{Type: "join_channel", ChannelID: rec.ChannelID})

	send(t, r, "m1", Message{Type: "mobile_init", Code: rec.Code, SessionID: "mobile-session"})

	sess, _ := r.sessionFor("m1")
	sess.mu.Lock()
	state := sess.state
	sess.mu.Unlock()
	if state != StateJoined {
		t.Fatalf("expected m1 to be JOINED, got %s", state)
	}
	if !contains(sender.types("d1"), "pairing_success") {
		t.Errorf("expected desktop to see pairing_success, got %v", sender.types("d1"))
	}
}

func TestMobileInitWithBadCodeStaysAccepted(t *testing.T) {
	r, sender, _ := newTestRouter()
	r.Accept(&registry.Conn{ID: "m1", DeviceType: registry.DeviceMobile})

	send(t, r, "m1", Message{Type: "mobile_init", Code: "000000", SessionID: "mobile-session"})

	sess, _ := r.sessionFor("m1")
	sess.mu.Lock()
	state := sess.state
	sess.mu.Unlock()
	if state != StateAccepted {
		t.Errorf("expected connection to remain ACCEPTED after a bad code, got %s", state)
	}
	if !contains(sender.types("m1"), "error") {
		t.Errorf("expected an error message, got %v", sender.types("m1"))
	}
}

func TestWhitelistRejectsOutOfStateMessage(t *testing.T) {
	r, sender, _ := newTestRouter()
	r.Accept(&registry.Conn{ID: "d1", DeviceType: registry.DeviceDesktop})

	send(t, r, "d1", Message{Type: "channel_message"})

	if !contains(sender.types("d1"), "error") {
		t.Errorf("expected VALIDATION_ERROR for a JOINED-only message from ACCEPTED, got %v", sender.types("d1"))
	}
}

func TestFanOutDeliversToPeerOnly(t *testing.T) {
	r, sender, store := newTestRouter()
	rec, _ := store.Create(context.Background(), "desktop-session")

	r.Accept(&registry.Conn{ID: "d1", DeviceType: registry.DeviceDesktop})
	r.Accept(&registry.Conn{ID: "m1", DeviceType: registry.DeviceMobile})
	send(t, r, "d1", Message{Type: "identify", SessionID: "desktop-session"})
	send(t, r, "d1", Message{Type: "join_channel", ChannelID: rec.ChannelID})
	send(t, r, "m1", Message{Type: "mobile_init", Code: rec.Code, SessionID: "mobile-session"})

	data, _ := json.Marshal(map[string]string{"text": "hallo"})
	send(t, r, "m1", Message{Type: "channel_message", Data: data})

	if !contains(sender.types("d1"), "channel_message") {
		t.Errorf("expected desktop to receive the fanned-out message, got %v", sender.types("d1"))
	}
	if contains(sender.types("m1"), "channel_message") {
		t.Error("sender should not receive its own fanned-out message")
	}
}

func TestRateLimitClosesConnectionAfterThreeViolations(t *testing.T) {
	r, sender, _ := newTestRouter()
	r.msgRatePerSec = 1
	r.byteRatePerSec = 1 << 20
	r.Accept(&registry.Conn{ID: "d1", DeviceType: registry.DeviceDesktop})
	sess, _ := r.sessionFor("d1")
	sess.msgLimit.SetBurst(1)
	sess.msgLimit.SetLimit(1)

	for i := 0; i < 5; i++ {
		send(t, r, "d1", Message{Type: "identify", SessionID: "s1"})
	}

	if !sender.closed["d1"] {
		t.Error("expected connection to be closed after repeated rate-limit violations")
	}
}

func TestUnregisterNotifiesRemainingPeer(t *testing.T) {
	r, sender, store := newTestRouter()
	rec, _ := store.Create(context.Background(), "desktop-session")

	r.Accept(&registry.Conn{ID: "d1", DeviceType: registry.DeviceDesktop})
	r.Accept(&registry.Conn{ID: "m1", DeviceType: registry.DeviceMobile})
	send(t, r, "d1", Message{Type: "identify", SessionID: "desktop-session"})
	send(t, r, "d1", Message{Type: "join_channel", ChannelID: rec.ChannelID})
	send(t, r, "m1", Message{Type: "mobile_init", Code: rec.Code, SessionID: "mobile-session"})

	r.Unregister("m1")

	if !contains(sender.types("d1"), "peer_disconnected") {
		t.Errorf("expected desktop to be notified of mobile disconnect, got %v", sender.types("d1"))
	}
}
