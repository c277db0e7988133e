package client

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"chatline/pkg/channel"
	"chatline/pkg/logger"
)

// Socket is the minimal transport a ConnectionManager runs over.
// *websocket.Conn satisfies it; tests substitute an in-memory fake.
type Socket interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// Handler consumes the data payload of one inbound event.
type Handler func(data json.RawMessage)

// Subscription identifies one registered handler. Removal goes through
// the token, so two handlers for the same event never collide.
type Subscription struct {
	event string
	fn    Handler
}

// ConnectionManager owns the single event-channel connection for an
// application lifetime. It relays inbound events to subscribed
// handlers from one goroutine, so handlers for a given stream run in
// arrival order and never concurrently. A transport drop surfaces as a
// synthesized disconnect event; no session or conversation state is
// touched.
type ConnectionManager struct {
	mu   sync.Mutex
	subs map[string][]*Subscription

	writeMu sync.Mutex
	sock    Socket

	started atomic.Bool
	done    chan struct{}
}

func NewConnectionManager(sock Socket) *ConnectionManager {
	return &ConnectionManager{
		sock: sock,
		subs: map[string][]*Subscription{},
		done: make(chan struct{}),
	}
}

// Dial opens a websocket to url and wraps it in a ConnectionManager.
// Run must be called to start delivery.
func Dial(ctx context.Context, url string) (*ConnectionManager, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return NewConnectionManager(ws), nil
}

// On registers fn for event and returns its removal token.
func (c *ConnectionManager) On(event string, fn Handler) *Subscription {
	s := &Subscription{event: event, fn: fn}
	c.mu.Lock()
	c.subs[event] = append(c.subs[event], s)
	c.mu.Unlock()
	return s
}

// Off removes exactly the handler behind s. Removing an already
// removed subscription is a no-op.
func (c *ConnectionManager) Off(s *Subscription) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.subs[s.event]
	for i, cur := range list {
		if cur == s {
			c.subs[s.event] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(c.subs[s.event]) == 0 {
		delete(c.subs, s.event)
	}
}

// Emit sends one named event. Fire and forget; a write failure comes
// back as a TransportError.
func (c *ConnectionManager) Emit(event string, payload interface{}) error {
	ev, err := channel.NewEvent(event, payload)
	if err != nil {
		return &TransportError{Op: "emit " + event, Err: err}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.sock.WriteJSON(ev); err != nil {
		return &TransportError{Op: "emit " + event, Err: err}
	}
	return nil
}

// Run reads the channel until it drops. It synthesizes a connect event
// on entry and a disconnect event on exit, delivered like any other
// inbound event.
func (c *ConnectionManager) Run() {
	c.started.Store(true)
	defer close(c.done)
	c.dispatch(channel.Event{Name: channel.EventConnect})
	for {
		var ev channel.Event
		if err := c.sock.ReadJSON(&ev); err != nil {
			logger.Debug("channel_closed", "error", err)
			c.dispatch(channel.Event{Name: channel.EventDisconnect})
			return
		}
		if ev.Name == "" {
			continue
		}
		c.dispatch(ev)
	}
}

func (c *ConnectionManager) dispatch(ev channel.Event) {
	c.mu.Lock()
	list := append([]*Subscription(nil), c.subs[ev.Name]...)
	c.mu.Unlock()
	for _, s := range list {
		s.fn(ev.Data)
	}
}

// Close tears down the transport and waits for a started Run to
// finish.
func (c *ConnectionManager) Close() error {
	err := c.sock.Close()
	if c.started.Load() {
		<-c.done
	}
	return err
}

// Done is closed once Run has returned.
func (c *ConnectionManager) Done() <-chan struct{} { return c.done }
