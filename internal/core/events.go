package core

import "github.com/vovakirdan/finchat-client/internal/proto"

// Handlers is the typed event-subscription surface: one optional slot
// per inbound event kind. Nil slots are no-ops, so an unwired kind is
// dropped without error. Slots are invoked from the session's read
// loop, one event at a time, in transport arrival order.
type Handlers struct {
	// Open fires once the transport is open, before the automatic
	// room-list request is sent.
	Open func()
	// Error receives recoverable protocol errors. They never mutate
	// room state or close the connection.
	Error func(code, details string)
	// Fatal receives terminal errors, from the server or the
	// transport. The session is closed by the time it fires.
	Fatal func(code string)
	// List receives the room summaries of a list response.
	List func(rooms []proto.RoomSummary)
	// Users fires after a roster replacement for a room.
	Users func(room string, users []proto.UserEntry)
	// History delivers the one-time backfill batch of a self-join.
	History func(room string, messages []Message)
	// Message fires for each live chat message.
	Message func(room string, msg Message)
	// Custom fires for each live custom command message.
	Custom func(room string, msg Message)
	// Joined fires for every join event, self or not.
	Joined func(room, user string, you bool)
	// Parted fires for every part event, self or not.
	Parted func(room, user string, you bool)
}
