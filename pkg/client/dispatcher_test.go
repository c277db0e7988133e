package client

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"chatline/pkg/models"
)

func newTestDispatcher(t *testing.T) (*MessageDispatcher, *IdentitySession, *fakeSocket) {
	t.Helper()
	conn, sock := newTestConn()
	session := NewIdentitySession(rand.New(rand.NewSource(1)))
	return NewMessageDispatcher(conn, session), session, sock
}

// TestSendEmptyBodyRejected: no emit, no conversation change, typed
// error.
func TestSendEmptyBodyRejected(t *testing.T) {
	d, session, sock := newTestDispatcher(t)
	if err := session.Login("u1", "alice"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	err := d.Send("")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Send(\"\") error = %v, want ValidationError", err)
	}
	if len(sock.sentEvents()) != 0 {
		t.Fatalf("empty send emitted an event")
	}
	if len(d.Conversation()) != 0 {
		t.Fatalf("empty send mutated the conversation")
	}
}

// TestSendWithoutIdentityRejected: sends before login never go out.
func TestSendWithoutIdentityRejected(t *testing.T) {
	d, _, sock := newTestDispatcher(t)
	var verr *ValidationError
	if err := d.Send("hi"); !errors.As(err, &verr) {
		t.Fatalf("Send before login error = %v, want ValidationError", err)
	}
	if len(sock.sentEvents()) != 0 {
		t.Fatalf("unauthenticated send emitted an event")
	}
}

// TestSendAppendsExactlyOnce: the optimistic echo is the only copy a
// sender ever holds, even when an inbound event later carries the same
// content.
func TestSendAppendsExactlyOnce(t *testing.T) {
	d, session, _ := newTestDispatcher(t)
	if err := session.Login("u1", "alice"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := session.SelectPeer("u2"); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if err := d.Send("hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msgs := d.Conversation()
	if len(msgs) != 1 {
		t.Fatalf("conversation length = %d, want 1", len(msgs))
	}
	if !msgs[0].LocalEcho || msgs[0].From != "u1" || msgs[0].To != "u2" || msgs[0].Body != "hi" {
		t.Fatalf("unexpected echo: %+v", msgs[0])
	}

	// Inbound with identical content comes from the peer; it is a new
	// message, not an echo to dedupe.
	raw, _ := json.Marshal(models.Message{From: "u2", Body: "hi"})
	d.ApplyInbound(raw)
	if got := len(d.Conversation()); got != 2 {
		t.Fatalf("conversation length = %d, want 2", got)
	}
}

// TestRoomSendCarriesStableColor: sendAll and a fixed bgColor on every
// room message in the same session.
func TestRoomSendCarriesStableColor(t *testing.T) {
	d, session, sock := newTestDispatcher(t)
	if err := session.Login("u1", "alice"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := session.JoinRoom(); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := d.Send("yo"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := d.Send("again"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	sent := sock.sentEvents()
	if len(sent) != 2 {
		t.Fatalf("got %d emits, want 2", len(sent))
	}
	var first, second models.Message
	if err := json.Unmarshal(sent[0].Data, &first); err != nil {
		t.Fatalf("unmarshal first: %v", err)
	}
	if err := json.Unmarshal(sent[1].Data, &second); err != nil {
		t.Fatalf("unmarshal second: %v", err)
	}
	if !first.SendAll || first.BgColor == "" {
		t.Fatalf("room message missing sendAll/bgColor: %+v", first)
	}
	if second.BgColor != first.BgColor {
		t.Fatalf("bgColor changed between sends: %q vs %q", first.BgColor, second.BgColor)
	}
}

// TestReplaceConversationDiscardsOld: switching context replaces
// wholesale, never merges.
func TestReplaceConversationDiscardsOld(t *testing.T) {
	d, session, _ := newTestDispatcher(t)
	if err := session.Login("u1", "alice"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := session.SelectPeer("u2"); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if err := d.Send("old"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	history := []models.Message{{From: "u3", Body: "fresh"}}
	d.ReplaceConversation(history)
	msgs := d.Conversation()
	if len(msgs) != 1 || msgs[0].Body != "fresh" {
		t.Fatalf("conversation after replace = %+v", msgs)
	}
}

// TestAppendSignal fires the new-content callback on every append and
// replacement.
func TestAppendSignal(t *testing.T) {
	d, session, _ := newTestDispatcher(t)
	if err := session.Login("u1", "alice"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	var fired int
	d.OnAppend(func() { fired++ })
	if err := d.Send("hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	d.ReplaceConversation(nil)
	if fired != 2 {
		t.Fatalf("append signal fired %d times, want 2", fired)
	}
}
