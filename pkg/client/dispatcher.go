package client

import (
	"encoding/json"

	"chatline/pkg/channel"
	"chatline/pkg/logger"
	"chatline/pkg/models"
)

// MessageDispatcher owns the active conversation. Sends append a local
// echo before the network write; the backend never echoes a message
// back to its author, so no deduplication happens on the inbound path.
type MessageDispatcher struct {
	conn    *ConnectionManager
	session *IdentitySession

	conversation []models.Message
	// onAppend fires after every append so a view can scroll.
	onAppend func()
}

func NewMessageDispatcher(conn *ConnectionManager, session *IdentitySession) *MessageDispatcher {
	return &MessageDispatcher{conn: conn, session: session}
}

// OnAppend sets the new-content callback. Optional.
func (d *MessageDispatcher) OnAppend(fn func()) { d.onAppend = fn }

// Send validates body, appends the optimistic echo and emits the
// outbound event. An empty body or missing identity raises a
// ValidationError with no emit and no conversation change.
func (d *MessageDispatcher) Send(body string) error {
	if body == "" || d.session.SelfID() == "" {
		return &ValidationError{Reason: "message missing"}
	}
	m := models.Message{
		From:      d.session.SelfID(),
		To:        d.session.PeerID(),
		Body:      body,
		SendAll:   d.session.InRoom(),
		LocalEcho: true,
	}
	if d.session.InRoom() {
		m.BgColor = d.session.RoomColor()
	}
	d.append(m)
	if err := d.conn.Emit(channel.EventSendMessage, m); err != nil {
		logger.Warn("send_failed", "error", err)
		return err
	}
	return nil
}

// ApplyInbound appends a received message in arrival order.
func (d *MessageDispatcher) ApplyInbound(data json.RawMessage) {
	var m models.Message
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Debug("inbound_message_malformed", "error", err)
		return
	}
	d.append(m)
}

// ReplaceConversation discards the current conversation wholesale.
// Used when the peer or room context changes.
func (d *MessageDispatcher) ReplaceConversation(msgs []models.Message) {
	d.conversation = append([]models.Message(nil), msgs...)
	if d.onAppend != nil {
		d.onAppend()
	}
}

// Conversation returns the messages in order. The slice is a copy.
func (d *MessageDispatcher) Conversation() []models.Message {
	return append([]models.Message(nil), d.conversation...)
}

func (d *MessageDispatcher) append(m models.Message) {
	d.conversation = append(d.conversation, m)
	if d.onAppend != nil {
		d.onAppend()
	}
}
