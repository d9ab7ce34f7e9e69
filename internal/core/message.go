package core

import "github.com/vovakirdan/finchat-client/internal/proto"

// MessageKind tags the variant of a room message.
type MessageKind int

const (
	// MessageChat is an ordinary chat line.
	MessageChat MessageKind = iota
	// MessageCustom is a custom command broadcast, typically bot traffic.
	MessageCustom
	// MessageJoined is the system line for a user joining the room.
	MessageJoined
	// MessageParted is the system line for a user leaving the room.
	MessageParted
)

// Message is one entry in a room's display sequence.
type Message struct {
	Kind    MessageKind
	Stamp   proto.Stamp
	Author  string
	Self    bool
	Body    string // MessageChat
	Command string // MessageCustom
	Payload string // MessageCustom
}
