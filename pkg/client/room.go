package client

import (
	"encoding/json"

	"chatline/pkg/logger"
)

// RoomRoster tracks the ephemeral room's participants. Every update
// replaces the list wholesale; the local user's own name is filtered
// out.
type RoomRoster struct {
	selfName string
	names    []string

	// onUpdate fires after every replacement. Optional.
	onUpdate func([]string)
}

func NewRoomRoster(selfName string) *RoomRoster {
	return &RoomRoster{selfName: selfName}
}

func (r *RoomRoster) OnUpdate(fn func([]string)) { r.onUpdate = fn }

// Apply consumes one update_join_array payload.
func (r *RoomRoster) Apply(data json.RawMessage) {
	var incoming []string
	if err := json.Unmarshal(data, &incoming); err != nil {
		logger.Debug("roster_update_malformed", "error", err)
		return
	}
	next := make([]string, 0, len(incoming))
	for _, n := range incoming {
		if n == r.selfName {
			continue
		}
		next = append(next, n)
	}
	r.names = next
	if r.onUpdate != nil {
		r.onUpdate(r.Names())
	}
}

// Names returns the current roster in the order the server sent it.
func (r *RoomRoster) Names() []string {
	return append([]string(nil), r.names...)
}
