package channel

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatline/pkg/logger"
	"chatline/pkg/models"
	"chatline/pkg/store"
	"chatline/pkg/telemetry"
)

// conn is one websocket connection with its write lock and, when the
// client joined the room, the display name it announced.
type conn struct {
	ws       *websocket.Conn
	mu       sync.Mutex
	joinedAs string

	// done closes when the read loop ends; the ping loop exits on it.
	done chan struct{}
}

func (c *conn) writeEvent(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(ev)
}

// Hub owns every live event-channel connection. Events are relayed by
// name: the hub never inspects who listens to what, it broadcasts and
// clients deliver only to their registered handlers, so a sender is
// simply excluded from the broadcast of its own message.
type Hub struct {
	mu     sync.RWMutex
	conns  map[*conn]struct{}
	roster []string // room joiners in join order
	wg     sync.WaitGroup
}

func NewHub() *Hub {
	return &Hub{conns: map[*conn]struct{}{}}
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	telemetry.ActiveConnections.Inc()
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	_, present := h.conns[c]
	delete(h.conns, c)
	left := c.joinedAs
	if left != "" {
		h.removeFromRoster(left)
		c.joinedAs = ""
	}
	h.mu.Unlock()
	if present {
		telemetry.ActiveConnections.Dec()
	}
	if left != "" {
		h.broadcastRoster()
		logger.Info("room_left", "name", left, "reason", "disconnect")
	}
}

// removeFromRoster drops the first occurrence of name; callers hold h.mu.
func (h *Hub) removeFromRoster(name string) {
	for i, n := range h.roster {
		if n == name {
			h.roster = append(h.roster[:i], h.roster[i+1:]...)
			break
		}
	}
	telemetry.RoomOccupants.Set(float64(len(h.roster)))
}

func (h *Hub) snapshot() []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

// broadcast sends ev to every connection except skip (nil for none).
func (h *Hub) broadcast(ev Event, skip *conn) {
	telemetry.EventsTotal.WithLabelValues(eventKind(ev.Name), "broadcast").Inc()
	for _, c := range h.snapshot() {
		if c == skip {
			continue
		}
		if err := c.writeEvent(ev); err != nil {
			logger.Debug("broadcast_write_failed", "event", ev.Name, "error", err)
		}
	}
}

func (h *Hub) broadcastRoster() {
	h.mu.RLock()
	names := append([]string(nil), h.roster...)
	h.mu.RUnlock()
	ev, err := NewEvent(EventUpdateJoinArray, names)
	if err != nil {
		return
	}
	h.broadcast(ev, nil)
}

// handleEvent dispatches one inbound envelope from c.
func (h *Hub) handleEvent(c *conn, ev Event) {
	telemetry.EventsTotal.WithLabelValues(eventKind(ev.Name), "received").Inc()
	switch ev.Name {
	case EventSendMessage:
		h.handleSend(c, ev.Data)
	case EventStartTyping:
		h.relayTyping(c, ev.Data, StartedTyping)
	case EventEndTyping:
		h.relayTyping(c, ev.Data, EndedTyping)
	case EventJoinRoom:
		h.handleJoin(c, ev.Data)
	case EventLeftRoom:
		h.handleLeave(c, ev.Data)
	default:
		logger.Debug("unknown_event_ignored", "event", ev.Name)
	}
}

func (h *Hub) handleSend(c *conn, data json.RawMessage) {
	var m models.Message
	if err := json.Unmarshal(data, &m); err != nil || m.From == "" || m.Body == "" {
		logger.Warn("send_message_rejected", "error", err)
		return
	}
	if m.SendAll {
		// Room traffic is ephemeral: fan the event out under every
		// registered user's key, minus the sender's own. Each client
		// listens only to its own key.
		users, err := store.ListUsers()
		if err != nil {
			logger.Error("room_fanout_userlist_failed", "error", err)
			return
		}
		for _, u := range users {
			if u.ID == m.From {
				continue
			}
			ev, err := NewEvent(MessageReceived(u.ID), m)
			if err != nil {
				continue
			}
			h.broadcast(ev, c)
		}
		return
	}
	if m.To == "" {
		logger.Warn("send_message_rejected", "reason", "missing recipient")
		return
	}
	if err := store.SaveMessage(m); err != nil {
		logger.Error("message_persist_failed", "from", m.From, "to", m.To, "error", err)
	} else {
		telemetry.MessagesPersisted.Inc()
	}
	ev, err := NewEvent(MessageReceived(m.To), m)
	if err != nil {
		return
	}
	// The sender never receives its own message back; it already
	// appended a local echo.
	h.broadcast(ev, c)
}

func (h *Hub) relayTyping(c *conn, data json.RawMessage, key func(from, to string) string) {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.From == "" || p.To == "" {
		return
	}
	ev, err := NewEvent(key(p.From, p.To), nil)
	if err != nil {
		return
	}
	h.broadcast(ev, c)
}

func (h *Hub) handleJoin(c *conn, data json.RawMessage) {
	name := decodeName(data)
	if name == "" {
		return
	}
	h.mu.Lock()
	if c.joinedAs == "" {
		c.joinedAs = name
		h.roster = append(h.roster, name)
		telemetry.RoomOccupants.Set(float64(len(h.roster)))
	}
	h.mu.Unlock()
	logger.Info("room_joined", "name", name)
	h.broadcastRoster()
}

func (h *Hub) handleLeave(c *conn, data json.RawMessage) {
	name := decodeName(data)
	h.mu.Lock()
	if name == "" {
		name = c.joinedAs
	}
	if name != "" {
		h.removeFromRoster(name)
	}
	c.joinedAs = ""
	h.mu.Unlock()
	if name != "" {
		logger.Info("room_left", "name", name)
		h.broadcastRoster()
	}
}

func decodeName(data json.RawMessage) string {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return ""
	}
	return name
}

// CloseAll force-closes every connection; used during shutdown.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		c.mu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
		_ = c.ws.Close()
		c.mu.Unlock()
	}
}

// Wait blocks until every connection handler goroutine has finished.
func (h *Hub) Wait() {
	h.wg.Wait()
}

// RosterNames returns the current room roster in join order.
func (h *Hub) RosterNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.roster...)
}

// eventKind collapses per-user event keys into their family so the
// metric cardinality stays bounded.
func eventKind(name string) string {
	switch {
	case len(name) >= len("message_received_") && name[:len("message_received_")] == "message_received_":
		return "message_received"
	case len(name) >= len("started_typing_") && name[:len("started_typing_")] == "started_typing_":
		return "started_typing"
	case len(name) >= len("ended_typing_") && name[:len("ended_typing_")] == "ended_typing_":
		return "ended_typing"
	default:
		return name
	}
}
