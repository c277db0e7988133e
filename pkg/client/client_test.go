package client

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chatline/pkg/channel"
	"chatline/pkg/models"
)

// newTestBackend serves the three REST endpoints with canned data.
func newTestBackend(t *testing.T, history []models.Message) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sign", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			UserName string `json:"userName"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		if in.Password == "wrong" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Password is incorrect"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"userId": "u1"})
	})
	mux.HandleFunc("/user-list/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []models.User{{ID: "u2", Name: "bob"}},
		})
	})
	mux.HandleFunc("/message-list/", func(w http.ResponseWriter, r *http.Request) {
		// The "down" peer simulates a history endpoint outage.
		if strings.HasSuffix(r.URL.Path, "/down") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": history})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, history []models.Message) (*Client, *fakeSocket) {
	t.Helper()
	backend := newTestBackend(t, history)
	conn, sock := newTestConn()
	c := New(conn, NewRESTClient(backend.URL, nil), Options{
		Rand: rand.New(rand.NewSource(1)),
	})
	return c, sock
}

// TestLoginSelectSendInbound walks the whole direct-chat flow: login,
// pick a peer, optimistic send, then an inbound reply.
func TestLoginSelectSendInbound(t *testing.T) {
	c, sock := newTestClient(t, nil)
	ctx := context.Background()

	if err := c.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if c.Session().SelfID() != "u1" {
		t.Fatalf("selfId = %q, want u1", c.Session().SelfID())
	}

	if err := c.SelectPeer(ctx, "u2"); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if got := len(c.Conversation()); got != 0 {
		t.Fatalf("fresh conversation length = %d, want 0", got)
	}

	if err := c.Send("hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msgs := c.Conversation()
	if len(msgs) != 1 {
		t.Fatalf("conversation length = %d, want 1", len(msgs))
	}
	if msgs[0].From != "u1" || msgs[0].To != "u2" || msgs[0].Body != "hi" || !msgs[0].LocalEcho {
		t.Fatalf("unexpected echo: %+v", msgs[0])
	}

	// The peer answers through the channel.
	raw, _ := json.Marshal(models.Message{From: "u2", Body: "hi back"})
	c.conn.dispatch(channel.Event{Name: channel.MessageReceived("u1"), Data: raw})

	msgs = c.Conversation()
	if len(msgs) != 2 {
		t.Fatalf("conversation length = %d, want 2", len(msgs))
	}
	if msgs[1].LocalEcho {
		t.Fatalf("inbound reply is flagged as local echo")
	}

	// Exactly one outbound send_message was written.
	var sends int
	for _, ev := range sock.sentEvents() {
		if ev.Name == channel.EventSendMessage {
			sends++
		}
	}
	if sends != 1 {
		t.Fatalf("wrote %d send_message events, want 1", sends)
	}
}

// TestLoginRejectedKeepsAnonymous surfaces the server's message and
// leaves the session untouched.
func TestLoginRejectedKeepsAnonymous(t *testing.T) {
	c, _ := newTestClient(t, nil)
	err := c.Login(context.Background(), "alice", "wrong")
	var aerr *AuthError
	if !errors.As(err, &aerr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if aerr.Message != "Password is incorrect" {
		t.Fatalf("message = %q", aerr.Message)
	}
	if c.Session().State() != Anonymous {
		t.Fatalf("session state = %v after rejected login", c.Session().State())
	}
}

// TestSelectPeerLoadsHistory replaces the conversation with the
// fetched history, flags intact.
func TestSelectPeerLoadsHistory(t *testing.T) {
	history := []models.Message{
		{From: "u1", To: "u2", Body: "earlier", SendByYou: true},
		{From: "u2", To: "u1", Body: "reply"},
	}
	c, _ := newTestClient(t, history)
	ctx := context.Background()
	if err := c.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := c.SelectPeer(ctx, "u2"); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	msgs := c.Conversation()
	if len(msgs) != 2 || msgs[0].Body != "earlier" || !msgs[0].SendByYou {
		t.Fatalf("unexpected history: %+v", msgs)
	}
}

// TestSelectPeerFailedFetchKeepsState: a failed history fetch leaves
// the previous peer, bindings and conversation in place, so the next
// send still targets the peer on screen.
func TestSelectPeerFailedFetchKeepsState(t *testing.T) {
	history := []models.Message{{From: "u2", To: "u1", Body: "earlier"}}
	c, _ := newTestClient(t, history)
	ctx := context.Background()
	if err := c.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := c.SelectPeer(ctx, "u2"); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	err := c.SelectPeer(ctx, "down")
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want TransportError", err)
	}
	if c.Session().State() != DirectConversation || c.Session().PeerID() != "u2" {
		t.Fatalf("session moved on failed fetch: %v peer=%q",
			c.Session().State(), c.Session().PeerID())
	}
	if got := len(c.Conversation()); got != 1 {
		t.Fatalf("conversation length = %d, want 1", got)
	}

	if err := c.Send("still here"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msgs := c.Conversation()
	if last := msgs[len(msgs)-1]; last.To != "u2" {
		t.Fatalf("send addressed to %q, want u2", last.To)
	}
}

// TestConversationCallbackReadsBack registers a change callback that
// reads the client back, the way an interactive view does; selection,
// sends and inbound events must all complete with it installed.
func TestConversationCallbackReadsBack(t *testing.T) {
	history := []models.Message{{From: "u2", To: "u1", Body: "earlier"}}
	c, _ := newTestClient(t, history)
	ctx := context.Background()
	if err := c.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	var seen [][]models.Message
	c.OnConversationChange(func() {
		seen = append(seen, c.Conversation())
		c.RoomNames()
	})

	done := make(chan error, 1)
	go func() { done <- c.SelectPeer(ctx, "u2") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SelectPeer: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("SelectPeer blocked while the change callback read the client")
	}
	if len(seen) != 1 || len(seen[0]) != 1 {
		t.Fatalf("callback snapshots after select = %d", len(seen))
	}

	go func() { done <- c.Send("hi") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Send blocked while the change callback read the client")
	}

	raw, _ := json.Marshal(models.Message{From: "u2", Body: "hi back"})
	delivered := make(chan struct{})
	go func() {
		c.conn.dispatch(channel.Event{Name: channel.MessageReceived("u1"), Data: raw})
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("inbound dispatch blocked while the change callback read the client")
	}
	if got := len(c.Conversation()); got != 3 {
		t.Fatalf("conversation length = %d, want 3", got)
	}
}

// TestRosterCallbackReadsBack: the roster callback may read the names
// back through the client while an update is being applied.
func TestRosterCallbackReadsBack(t *testing.T) {
	c, _ := newTestClient(t, nil)
	if err := c.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := c.JoinRoom(); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	var got []string
	c.OnRosterUpdate(func([]string) {
		got = c.RoomNames()
	})

	raw, _ := json.Marshal([]string{"alice", "bob"})
	delivered := make(chan struct{})
	go func() {
		c.conn.dispatch(channel.Event{Name: channel.EventUpdateJoinArray, Data: raw})
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("roster dispatch blocked while the callback read the client")
	}
	if len(got) != 1 || got[0] != "bob" {
		t.Fatalf("roster seen by callback = %v, want [bob]", got)
	}
}

// TestJoinRoomFlow checks the join announcement, roster filtering and
// the departure emit at close.
func TestJoinRoomFlow(t *testing.T) {
	c, sock := newTestClient(t, nil)
	ctx := context.Background()
	if err := c.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := c.JoinRoom(); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	sent := sock.sentEvents()
	if len(sent) != 1 || sent[0].Name != channel.EventJoinRoom {
		t.Fatalf("join emit = %+v", sent)
	}
	var name string
	if err := json.Unmarshal(sent[0].Data, &name); err != nil || name != "alice" {
		t.Fatalf("join payload = %q err=%v", name, err)
	}

	raw, _ := json.Marshal([]string{"alice", "bob"})
	c.conn.dispatch(channel.Event{Name: channel.EventUpdateJoinArray, Data: raw})
	names := c.RoomNames()
	if len(names) != 1 || names[0] != "bob" {
		t.Fatalf("roster = %v, want [bob]", names)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var left bool
	for _, ev := range sock.sentEvents() {
		if ev.Name == channel.EventLeftRoom {
			left = true
		}
	}
	if !left {
		t.Fatalf("no on_left_room emitted at teardown")
	}
}

// TestIdentityPersistsAcrossRestart saves on login and restores to
// Authenticated without a new sign round-trip.
func TestIdentityPersistsAcrossRestart(t *testing.T) {
	backend := newTestBackend(t, nil)
	path := filepath.Join(t.TempDir(), "identity.json")

	conn, _ := newTestConn()
	c := New(conn, NewRESTClient(backend.URL, nil), Options{IdentityPath: path})
	if err := c.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	saved, err := LoadIdentity(path)
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if saved == nil || saved.UserID != "u1" || saved.UserName != "alice" {
		t.Fatalf("saved identity = %+v", saved)
	}

	conn2, _ := newTestConn()
	c2 := New(conn2, NewRESTClient(backend.URL, nil), Options{IdentityPath: path})
	if err := c2.Restore(*saved); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if c2.Session().State() != Authenticated || c2.Session().SelfID() != "u1" {
		t.Fatalf("restored session = %v %q", c2.Session().State(), c2.Session().SelfID())
	}
}

// TestDisconnectKeepsState: a transport drop surfaces as a health
// event and leaves conversation and session intact.
func TestDisconnectKeepsState(t *testing.T) {
	c, _ := newTestClient(t, nil)
	ctx := context.Background()
	if err := c.Login(ctx, "alice", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := c.SelectPeer(ctx, "u2"); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if err := c.Send("hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var downs int
	c.OnConnectionState(func(up bool) {
		if !up {
			downs++
		}
	})
	c.conn.dispatch(channel.Event{Name: channel.EventDisconnect})

	if downs != 1 {
		t.Fatalf("disconnect callback fired %d times, want 1", downs)
	}
	if len(c.Conversation()) != 1 {
		t.Fatalf("conversation lost on disconnect")
	}
	if c.Session().State() != DirectConversation {
		t.Fatalf("session reset on disconnect: %v", c.Session().State())
	}
}
