package chat

import (
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/registry"
)

// Event names what a lifecycle call or inbound frame was handled as.
type Event int

// Events, in the order they are usually seen on a connection.
const (
	EventJoin Event = iota
	EventChat
	EventRename
	EventUserList
	EventSystem
	EventRaw
	EventLeave
)

var eventNames = [...]string{
	EventJoin:     "join",
	EventChat:     "chat",
	EventRename:   "rename",
	EventUserList: "user_list",
	EventSystem:   "system",
	EventRaw:      "raw",
	EventLeave:    "leave",
}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

// Report is the outcome of one Room call. Delivery to the room is best-effort,
// so nothing here is meant to be propagated; callers log it.
type Report struct {
	Event Event

	// Err is why the event was dropped without a broadcast:
	// registry.ErrNotFound or ErrEmptyUsername.
	Err error

	// ParseErr is set for EventRaw: the frame was not an envelope and was
	// relayed verbatim instead.
	ParseErr *protocol.ParseError

	// Delivery summarises the fan-outs the event caused. Peers that did not
	// accept a frame were skipped.
	Delivery registry.Delivery
}

// Dropped reports whether the event produced no broadcast at all.
func (r Report) Dropped() bool {
	return r.Err != nil
}
