package client

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"

	"github.com/benbjohnson/clock"

	"chatline/pkg/channel"
	"chatline/pkg/logger"
	"chatline/pkg/models"
)

// Options tunes a Client. Zero values give production behavior.
type Options struct {
	// Clock drives the typing expiry; tests pass a mock.
	Clock clock.Clock
	// Rand seeds the room color pick.
	Rand *rand.Rand
	// IdentityPath, when set, remembers the identity across restarts.
	IdentityPath string
}

// Client is the composition root: it owns the session state machine
// and wires the connection, registry, dispatcher, typing indicator and
// roster together. All state mutation is serialized on one mutex;
// inbound events arrive from the connection's single read goroutine.
type Client struct {
	mu sync.Mutex

	conn       *ConnectionManager
	rest       *RESTClient
	session    *IdentitySession
	registry   *SubscriptionRegistry
	dispatcher *MessageDispatcher
	typing     *TypingIndicator
	roster     *RoomRoster

	identityPath string

	onConnState  func(bool)
	onConvChange func()
	onRoster     func([]string)

	// convDirty is set by the dispatcher's append hook while mu is
	// held; the mutating method consumes it and fires the callback
	// after the unlock, so the callback can read the client back.
	convDirty   bool
	rosterDirty bool
	rosterSnap  []string

	// peerSeq orders concurrent SelectPeer calls; only the latest
	// selection commits its fetched history.
	peerSeq uint64
}

func New(conn *ConnectionManager, rest *RESTClient, opts Options) *Client {
	session := NewIdentitySession(opts.Rand)
	c := &Client{
		conn:         conn,
		rest:         rest,
		session:      session,
		registry:     NewSubscriptionRegistry(conn),
		dispatcher:   NewMessageDispatcher(conn, session),
		typing:       NewTypingIndicator(conn, opts.Clock),
		identityPath: opts.IdentityPath,
	}
	c.dispatcher.OnAppend(func() { c.convDirty = true })
	conn.On(channel.EventConnect, func(json.RawMessage) { c.notifyConn(true) })
	conn.On(channel.EventDisconnect, func(json.RawMessage) { c.notifyConn(false) })
	return c
}

// Start launches the connection's read loop.
func (c *Client) Start() { go c.conn.Run() }

// OnConnectionState sets the connect/disconnect callback. A disconnect
// is a health signal only; session and conversation state survive it.
func (c *Client) OnConnectionState(fn func(connected bool)) {
	c.mu.Lock()
	c.onConnState = fn
	c.mu.Unlock()
}

// OnConversationChange fires whenever the conversation gains or
// replaces content. The callback runs outside the client lock and may
// call back into the client.
func (c *Client) OnConversationChange(fn func()) {
	c.mu.Lock()
	c.onConvChange = fn
	c.mu.Unlock()
}

// OnPeerTyping fires on every flip of the peer-typing flag.
func (c *Client) OnPeerTyping(fn func(bool)) { c.typing.OnChange(fn) }

func (c *Client) notifyConn(up bool) {
	c.mu.Lock()
	fn := c.onConnState
	c.mu.Unlock()
	if fn != nil {
		fn(up)
	}
}

// takeConvNotifyLocked consumes the pending conversation-change signal
// and returns the callback to run once mu is released.
func (c *Client) takeConvNotifyLocked() func() {
	if !c.convDirty {
		return nil
	}
	c.convDirty = false
	return c.onConvChange
}

// Login authenticates (registering the name on first use), moves the
// session to Authenticated and binds the inbound-message handler. The
// identity is remembered when an identity path was configured.
func (c *Client) Login(ctx context.Context, userName, password string) error {
	selfID, err := c.rest.Sign(ctx, userName, password)
	if err != nil {
		return err
	}
	return c.adopt(selfID, userName)
}

// Restore skips the login round-trip using a remembered identity.
func (c *Client) Restore(id SavedIdentity) error {
	return c.adopt(id.UserID, id.UserName)
}

func (c *Client) adopt(selfID, userName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.session.Login(selfID, userName); err != nil {
		return err
	}
	c.registry.BindIdentity(selfID, func(data json.RawMessage) {
		c.mu.Lock()
		c.dispatcher.ApplyInbound(data)
		notify := c.takeConvNotifyLocked()
		c.mu.Unlock()
		if notify != nil {
			notify()
		}
	})
	if c.identityPath != "" {
		if err := SaveIdentity(c.identityPath, SavedIdentity{UserID: selfID, UserName: userName}); err != nil {
			logger.Warn("identity_save_failed", "error", err)
		}
	}
	logger.Info("session_authenticated", "user_id", selfID)
	return nil
}

// SelectPeer switches to a direct conversation with peerID. The old
// conversation is discarded and replaced by the fetched history; the
// typing bindings move to the new pair. Re-selecting the active peer
// does nothing. Nothing changes until the history arrives: a failed
// fetch leaves the previous peer, bindings and conversation intact.
func (c *Client) SelectPeer(ctx context.Context, peerID string) error {
	c.mu.Lock()
	changed, err := c.session.CheckSelectPeer(peerID)
	if err != nil || !changed {
		c.mu.Unlock()
		return err
	}
	selfID := c.session.SelfID()
	c.peerSeq++
	seq := c.peerSeq
	c.mu.Unlock()

	history, err := c.rest.MessageList(ctx, selfID, peerID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if seq != c.peerSeq {
		// A later selection won the race; its history stands.
		c.mu.Unlock()
		return nil
	}
	if _, err := c.session.SelectPeer(peerID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.registry.BindTyping(peerID, selfID,
		c.typing.PeerStarted, c.typing.PeerEnded)
	c.typing.SetPair(selfID, peerID)
	c.dispatcher.ReplaceConversation(history)
	notify := c.takeConvNotifyLocked()
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
	return nil
}

// JoinRoom enters the ephemeral group room: fixes the bubble color,
// binds the roster handler, clears the conversation and announces the
// display name.
func (c *Client) JoinRoom() error {
	c.mu.Lock()
	if err := c.session.JoinRoom(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.roster = NewRoomRoster(c.session.SelfName())
	c.roster.OnUpdate(func(names []string) {
		c.rosterDirty, c.rosterSnap = true, names
	})
	c.registry.BindRoster(func(data json.RawMessage) {
		c.mu.Lock()
		c.roster.Apply(data)
		fire, names, fn := c.rosterDirty, c.rosterSnap, c.onRoster
		c.rosterDirty, c.rosterSnap = false, nil
		c.mu.Unlock()
		if fire && fn != nil {
			fn(names)
		}
	})
	c.dispatcher.ReplaceConversation(nil)
	name := c.session.SelfName()
	notify := c.takeConvNotifyLocked()
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
	return c.conn.Emit(channel.EventJoinRoom, name)
}

// OnRosterUpdate sets the roster callback. The callback runs outside
// the client lock and may call back into the client.
func (c *Client) OnRosterUpdate(fn func([]string)) {
	c.mu.Lock()
	c.onRoster = fn
	c.mu.Unlock()
}

// Send dispatches body to the active conversation context.
func (c *Client) Send(body string) error {
	c.mu.Lock()
	err := c.dispatcher.Send(body)
	notify := c.takeConvNotifyLocked()
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
	return err
}

// SetDraft feeds the input's current text for typing-boundary emits.
func (c *Client) SetDraft(text string) { c.typing.SetDraft(text) }

// Users fetches the contact list for the authenticated identity.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	c.mu.Lock()
	selfID := c.session.SelfID()
	c.mu.Unlock()
	if selfID == "" {
		return nil, &ValidationError{Reason: "not authenticated"}
	}
	return c.rest.UserList(ctx, selfID)
}

// Conversation returns a copy of the active conversation.
func (c *Client) Conversation() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatcher.Conversation()
}

// PeerTyping reports whether the active peer is composing.
func (c *Client) PeerTyping() bool { return c.typing.PeerTyping() }

// RoomNames returns the current roster, without the local user.
func (c *Client) RoomNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roster == nil {
		return nil
	}
	return c.roster.Names()
}

// Session exposes the state machine read-only accessors.
func (c *Client) Session() *IdentitySession { return c.session }

// Close tears the session down: announces the room departure when one
// was joined, drops every binding and closes the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	inRoom := c.session.InRoom()
	name := c.session.SelfName()
	c.mu.Unlock()
	if inRoom {
		if err := c.conn.Emit(channel.EventLeftRoom, name); err != nil {
			logger.Debug("left_room_emit_failed", "error", err)
		}
	}
	c.registry.UnbindAll()
	return c.conn.Close()
}
