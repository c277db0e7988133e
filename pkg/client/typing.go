package client

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"chatline/pkg/channel"
	"chatline/pkg/logger"
)

// typingExpiry is how long a peer's typing flag stays up without a
// refresh or an explicit end.
const typingExpiry = 5000 * time.Millisecond

// TypingIndicator tracks whether the active peer is composing, with
// auto-expiry, and emits the local side's boundary transitions. The
// clock is injected so tests advance a virtual one.
type TypingIndicator struct {
	conn   *ConnectionManager
	clk    clock.Clock
	selfID string
	peerID string

	mu         sync.Mutex
	peerTyping bool
	timer      *clock.Timer
	drafting   bool

	// onChange fires with the new peer-typing value on every flip.
	onChange func(bool)
}

func NewTypingIndicator(conn *ConnectionManager, clk clock.Clock) *TypingIndicator {
	if clk == nil {
		clk = clock.New()
	}
	return &TypingIndicator{conn: conn, clk: clk}
}

// OnChange sets the peer-typing flip callback. Optional. The callback
// runs outside the indicator lock and may read the flag back.
func (t *TypingIndicator) OnChange(fn func(bool)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// SetPair scopes the indicator to a (self, peer) conversation. The
// previous peer's flag and timer are cleared; a typing state never
// leaks across peers.
func (t *TypingIndicator) SetPair(selfID, peerID string) {
	t.mu.Lock()
	t.selfID, t.peerID = selfID, peerID
	t.drafting = false
	notify := t.clearLocked()
	t.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// PeerStarted sets the flag and (re)arms the expiry timer.
func (t *TypingIndicator) PeerStarted() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	var tm *clock.Timer
	tm = t.clk.AfterFunc(typingExpiry, func() { t.expire(tm) })
	t.timer = tm
	notify := t.setLocked(true)
	t.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// PeerEnded clears the flag and disarms the timer.
func (t *TypingIndicator) PeerEnded() {
	t.mu.Lock()
	notify := t.clearLocked()
	t.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// expire only acts for the currently armed timer; a stale callback
// that lost the race against a re-arm is ignored.
func (t *TypingIndicator) expire(tm *clock.Timer) {
	t.mu.Lock()
	if t.timer != tm {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	notify := t.setLocked(false)
	t.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// PeerTyping reports the current flag.
func (t *TypingIndicator) PeerTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerTyping
}

// SetDraft feeds the local input's current text. Only the
// empty/non-empty boundary emits; repeated edits inside a state are
// silent.
func (t *TypingIndicator) SetDraft(text string) {
	t.mu.Lock()
	nonEmpty := text != ""
	if nonEmpty == t.drafting || t.peerID == "" {
		t.drafting = nonEmpty
		t.mu.Unlock()
		return
	}
	t.drafting = nonEmpty
	payload := channel.TypingPayload{To: t.peerID, From: t.selfID}
	t.mu.Unlock()

	event := channel.EventEndTyping
	if nonEmpty {
		event = channel.EventStartTyping
	}
	if err := t.conn.Emit(event, payload); err != nil {
		logger.Debug("typing_emit_failed", "event", event, "error", err)
	}
}

// setLocked flips the flag and returns the callback to run after the
// lock is released, or nil when nothing flipped.
func (t *TypingIndicator) setLocked(v bool) func() {
	if t.peerTyping == v {
		return nil
	}
	t.peerTyping = v
	if t.onChange == nil {
		return nil
	}
	fn := t.onChange
	return func() { fn(v) }
}

func (t *TypingIndicator) clearLocked() func() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return t.setLocked(false)
}
