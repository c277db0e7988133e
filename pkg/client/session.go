package client

import (
	"fmt"
	"math/rand"
)

// roomPalette holds the bubble colors a room participant may be
// assigned. The pick happens once per room session.
var roomPalette = []string{
	"#4caf50",
	"#ffeb3b",
	"#00bcd4",
	"#ff9800",
	"#e91e63",
	"#009688",
	"#64dd17",
	"#ffca28",
	"#ff4081",
}

// SessionState is the identity state machine's position.
type SessionState int

const (
	Anonymous SessionState = iota
	Authenticated
	DirectConversation
	RoomConversation
)

func (s SessionState) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	case DirectConversation:
		return "direct"
	case RoomConversation:
		return "room"
	}
	return "unknown"
}

// IdentitySession is the single source of truth for who the user is
// and who they are talking to. At most one of peer id and room mode is
// active. No transition leads back toward Anonymous; teardown is
// process exit.
type IdentitySession struct {
	state     SessionState
	selfID    string
	selfName  string
	peerID    string
	roomColor string

	rng *rand.Rand
}

// NewIdentitySession starts at Anonymous. rng seeds the room color
// pick; pass a fixed-seed source for deterministic tests, nil for the
// default.
func NewIdentitySession(rng *rand.Rand) *IdentitySession {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &IdentitySession{state: Anonymous, rng: rng}
}

// Login moves Anonymous to Authenticated.
func (s *IdentitySession) Login(selfID, displayName string) error {
	if s.state != Anonymous {
		return fmt.Errorf("login from %s state", s.state)
	}
	s.selfID = selfID
	s.selfName = displayName
	s.state = Authenticated
	return nil
}

// CheckSelectPeer reports whether selecting peerID is a legal
// transition and whether it would change anything, without committing
// it. Callers with work to do between the check and the commit (a
// history fetch) stay consistent on the error path.
func (s *IdentitySession) CheckSelectPeer(peerID string) (changed bool, err error) {
	switch s.state {
	case Authenticated:
	case DirectConversation:
		if s.peerID == peerID {
			return false, nil
		}
	default:
		return false, fmt.Errorf("select peer from %s state", s.state)
	}
	return true, nil
}

// SelectPeer enters (or switches) a direct conversation. Selecting the
// already active peer is a no-op and reports no change, so callers
// skip the history refetch and rebind.
func (s *IdentitySession) SelectPeer(peerID string) (changed bool, err error) {
	if changed, err = s.CheckSelectPeer(peerID); !changed {
		return changed, err
	}
	s.peerID = peerID
	s.state = DirectConversation
	return true, nil
}

// JoinRoom enters the ephemeral group room and fixes the bubble color
// for the rest of the session.
func (s *IdentitySession) JoinRoom() error {
	if s.state != Authenticated {
		return fmt.Errorf("join room from %s state", s.state)
	}
	s.state = RoomConversation
	s.roomColor = roomPalette[s.rng.Intn(len(roomPalette))]
	return nil
}

func (s *IdentitySession) State() SessionState { return s.state }
func (s *IdentitySession) SelfID() string      { return s.selfID }
func (s *IdentitySession) SelfName() string    { return s.selfName }
func (s *IdentitySession) PeerID() string      { return s.peerID }
func (s *IdentitySession) RoomColor() string   { return s.roomColor }
func (s *IdentitySession) InRoom() bool        { return s.state == RoomConversation }
