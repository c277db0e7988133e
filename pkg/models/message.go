package models

type Message struct {
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	Body    string `json:"message"`
	// SendAll marks a room broadcast; direct messages leave it false.
	SendAll bool `json:"sendAll,omitempty"`
	// BgColor is set once per room session and reused for every message
	// the sender emits in that room.
	BgColor string `json:"bgColor,omitempty"`
	// SendByYou marks messages authored by the requesting side of a
	// history fetch. The history endpoint fills it per caller.
	SendByYou bool `json:"sendByYou,omitempty"`
	// TS is assigned by the server when the message is persisted (ns).
	TS int64 `json:"ts,omitempty"`
	// LocalEcho marks a copy appended by the sender before server
	// confirmation. Never serialized.
	LocalEcho bool `json:"-"`
}
