package client

import (
	"encoding/json"

	"chatline/pkg/channel"
)

// SubscriptionRegistry keeps exactly the right inbound bindings live
// for the current identity context. Every rebind removes the previous
// subscription for the old key before installing the new one, so an
// inbound event is delivered at most once.
type SubscriptionRegistry struct {
	conn *ConnectionManager

	msgSub    *Subscription
	startSub  *Subscription
	endSub    *Subscription
	rosterSub *Subscription
}

func NewSubscriptionRegistry(conn *ConnectionManager) *SubscriptionRegistry {
	return &SubscriptionRegistry{conn: conn}
}

// BindIdentity routes message_received events for selfID to handler,
// replacing any binding for a previous identity.
func (r *SubscriptionRegistry) BindIdentity(selfID string, handler Handler) {
	r.conn.Off(r.msgSub)
	r.msgSub = r.conn.On(channel.MessageReceived(selfID), handler)
}

// BindTyping routes the peer's typing transitions for the
// (peerID, selfID) pair, replacing the previous peer's bindings.
func (r *SubscriptionRegistry) BindTyping(peerID, selfID string, started, ended func()) {
	r.conn.Off(r.startSub)
	r.conn.Off(r.endSub)
	r.startSub = r.conn.On(channel.StartedTyping(peerID, selfID), func(json.RawMessage) { started() })
	r.endSub = r.conn.On(channel.EndedTyping(peerID, selfID), func(json.RawMessage) { ended() })
}

// BindRoster routes roster updates; the room roster is global, not
// keyed.
func (r *SubscriptionRegistry) BindRoster(handler Handler) {
	r.conn.Off(r.rosterSub)
	r.rosterSub = r.conn.On(channel.EventUpdateJoinArray, handler)
}

// UnbindTyping drops the typing pair bindings without touching the
// identity binding.
func (r *SubscriptionRegistry) UnbindTyping() {
	r.conn.Off(r.startSub)
	r.conn.Off(r.endSub)
	r.startSub, r.endSub = nil, nil
}

// UnbindAll removes every live binding. Part of teardown.
func (r *SubscriptionRegistry) UnbindAll() {
	r.conn.Off(r.msgSub)
	r.conn.Off(r.startSub)
	r.conn.Off(r.endSub)
	r.conn.Off(r.rosterSub)
	r.msgSub, r.startSub, r.endSub, r.rosterSub = nil, nil, nil, nil
}
