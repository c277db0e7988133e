package client

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"chatline/pkg/channel"
)

// fakeSocket is an in-memory Socket. Inbound events are pushed on in;
// outbound writes are captured for inspection.
type fakeSocket struct {
	in        chan channel.Event
	closeOnce sync.Once

	mu   sync.Mutex
	sent []channel.Event
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{in: make(chan channel.Event, 16)}
}

func (f *fakeSocket) ReadJSON(v interface{}) error {
	ev, ok := <-f.in
	if !ok {
		return io.EOF
	}
	*(v.(*channel.Event)) = ev
	return nil
}

func (f *fakeSocket) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v.(channel.Event))
	return nil
}

func (f *fakeSocket) Close() error {
	f.closeOnce.Do(func() { close(f.in) })
	return nil
}

func (f *fakeSocket) sentEvents() []channel.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]channel.Event(nil), f.sent...)
}

// newTestConn returns a ConnectionManager whose dispatch can be driven
// synchronously without running the read loop.
func newTestConn() (*ConnectionManager, *fakeSocket) {
	sock := newFakeSocket()
	return NewConnectionManager(sock), sock
}

// TestRunSynthesizesConnectAndDisconnect verifies the health events
// around the read loop's lifetime.
func TestRunSynthesizesConnectAndDisconnect(t *testing.T) {
	conn, sock := newTestConn()
	var mu sync.Mutex
	var got []string
	conn.On(channel.EventConnect, func(data json.RawMessage) {
		mu.Lock()
		got = append(got, "connect")
		mu.Unlock()
	})
	conn.On(channel.EventDisconnect, func(data json.RawMessage) {
		mu.Lock()
		got = append(got, "disconnect")
		mu.Unlock()
	})
	go conn.Run()
	_ = sock.Close()
	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatalf("read loop did not finish")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "connect" || got[1] != "disconnect" {
		t.Fatalf("unexpected health events: %v", got)
	}
}

// TestOffRemovesExactHandler verifies removal is scoped to the token's
// own handler.
func TestOffRemovesExactHandler(t *testing.T) {
	conn, _ := newTestConn()
	var first, second int
	s1 := conn.On("ev", func(data json.RawMessage) { first++ })
	conn.On("ev", func(data json.RawMessage) { second++ })

	conn.Off(s1)
	conn.dispatch(channel.Event{Name: "ev"})

	if first != 0 {
		t.Fatalf("removed handler fired %d times", first)
	}
	if second != 1 {
		t.Fatalf("remaining handler fired %d times, want 1", second)
	}
}

// TestOffIsIdempotent removes the same subscription twice.
func TestOffIsIdempotent(t *testing.T) {
	conn, _ := newTestConn()
	var n int
	s := conn.On("ev", func(data json.RawMessage) { n++ })
	conn.Off(s)
	conn.Off(s)
	conn.Off(nil)
	conn.dispatch(channel.Event{Name: "ev"})
	if n != 0 {
		t.Fatalf("handler fired after removal")
	}
}

// TestEmitWritesNamedEvent checks the envelope written to the socket.
func TestEmitWritesNamedEvent(t *testing.T) {
	conn, sock := newTestConn()
	if err := conn.Emit("start_typing", channel.TypingPayload{To: "u2", From: "u1"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	sent := sock.sentEvents()
	if len(sent) != 1 {
		t.Fatalf("got %d writes, want 1", len(sent))
	}
	if sent[0].Name != "start_typing" {
		t.Fatalf("event name = %q", sent[0].Name)
	}
}
