// Package proto defines the wire envelopes exchanged with the chat
// server and decodes inbound traffic into a closed set of event kinds.
package proto

import (
	"encoding/json"
	"fmt"
)

// Kind identifies a decoded inbound event.
type Kind int

const (
	// KindUnknown marks an envelope with an unrecognized code. Such
	// envelopes are dropped downstream; newer servers may push codes
	// this client has never heard of.
	KindUnknown Kind = iota
	// KindFatal terminates the current connection.
	KindFatal
	// KindError is a recoverable protocol error.
	KindError
	// KindList carries the room summaries for the sidebar.
	KindList
	// KindUsers replaces the roster of one room.
	KindUsers
	// KindJoined reports a user joining a room.
	KindJoined
	// KindParted reports a user leaving a room.
	KindParted
	// KindMessage is one live chat message.
	KindMessage
	// KindCustom is one custom command broadcast.
	KindCustom
)

// Reserved envelope types that short-circuit code routing.
const (
	TypeFatal = "fatal"
	TypeError = "error"
)

// Code discriminators for regular envelopes.
const (
	CodeList    = "list"
	CodeUsers   = "users"
	CodeJoined  = "joined"
	CodeParted  = "parted"
	CodeMessage = "message"
	CodeCustom  = "custom"
)

// Fatal codes the server may end a connection with.
const (
	FatalAlreadyConnected = "already-connected"
	FatalAlreadyChatting  = "already-chatting"
	FatalNotAuthenticated = "not-authenticated"
	FatalWebsocket        = "websocket"
)

// Stamp is the server-assigned per-room ordering token. It is opaque:
// servers have shipped both numeric and string stamps, so the raw
// token is kept as text and never interpreted.
type Stamp string

func (s *Stamp) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Stamp(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = Stamp(num.String())
	return nil
}

func (s Stamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// RoomSummary is one sidebar entry from a list response.
type RoomSummary struct {
	Name   string `json:"name"`
	Joined bool   `json:"joined"`
}

// UserEntry is one roster entry.
type UserEntry struct {
	Name string `json:"name"`
	You  bool   `json:"you"`
}

// HistoryMessage is one backfilled message inside a join snapshot.
type HistoryMessage struct {
	Stamp Stamp  `json:"stamp"`
	User  string `json:"user"`
	You   bool   `json:"you"`
	Body  string `json:"body"`
}

// RoomStatus is the snapshot embedded in a self-join event: the full
// roster plus the history backfill, delivered once.
type RoomStatus struct {
	Users    []UserEntry      `json:"users"`
	Messages []HistoryMessage `json:"messages"`
}

// Event is one decoded inbound envelope. Kind selects which of the
// remaining fields are meaningful.
type Event struct {
	Kind Kind

	Code    string // KindFatal, KindError
	Details string // KindError

	Room  string
	Stamp Stamp
	User  string
	You   bool

	Body    string        // KindMessage
	Command string        // KindCustom
	Payload string        // KindCustom
	Rooms   []RoomSummary // KindList
	Users   []UserEntry   // KindUsers
	Status  *RoomStatus   // KindJoined, present only when You
}

// inbound is the superset of fields any server envelope may carry.
type inbound struct {
	Type     string        `json:"type"`
	Code     string        `json:"code"`
	Details  string        `json:"details"`
	RoomName string        `json:"room_name"`
	Stamp    Stamp         `json:"stamp"`
	User     string        `json:"user"`
	You      bool          `json:"you"`
	Body     string        `json:"body"`
	Command  string        `json:"command"`
	Payload  string        `json:"payload"`
	List     []RoomSummary `json:"list"`
	Users    []UserEntry   `json:"users"`
	Status   *RoomStatus   `json:"status"`
}

// Decode parses one inbound envelope. The type discriminator routes
// fatal and error envelopes first; everything else routes by code.
// Unrecognized codes decode to KindUnknown rather than an error.
func Decode(data []byte) (Event, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch in.Type {
	case TypeFatal:
		return Event{Kind: KindFatal, Code: in.Code}, nil
	case TypeError:
		return Event{Kind: KindError, Code: in.Code, Details: in.Details}, nil
	}

	ev := Event{
		Room:  in.RoomName,
		Stamp: in.Stamp,
		User:  in.User,
		You:   in.You,
	}
	switch in.Code {
	case CodeList:
		ev.Kind = KindList
		ev.Rooms = in.List
	case CodeUsers:
		ev.Kind = KindUsers
		ev.Users = in.Users
	case CodeJoined:
		ev.Kind = KindJoined
		ev.Status = in.Status
	case CodeParted:
		ev.Kind = KindParted
	case CodeMessage:
		ev.Kind = KindMessage
		ev.Body = in.Body
	case CodeCustom:
		ev.Kind = KindCustom
		ev.Command = in.Command
		ev.Payload = in.Payload
	default:
		return Event{Kind: KindUnknown}, nil
	}
	return ev, nil
}

// Outbound is the envelope for client commands. Responses arrive later
// as independent push events; no correlation id exists.
type Outbound struct {
	Type     string `json:"type"`
	RoomName string `json:"room_name,omitempty"`
	Body     string `json:"body,omitempty"`
	Command  string `json:"command,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

// ListCommand requests the room summaries.
func ListCommand() Outbound {
	return Outbound{Type: "list"}
}

// JoinCommand requests to join a room.
func JoinCommand(room string) Outbound {
	return Outbound{Type: "join", RoomName: room}
}

// PartCommand requests to leave a room.
func PartCommand(room string) Outbound {
	return Outbound{Type: "part", RoomName: room}
}

// TalkCommand broadcasts a chat message to a room.
func TalkCommand(room, body string) Outbound {
	return Outbound{Type: "message", RoomName: room, Body: body}
}

// CustomCommand broadcasts a custom command to a room.
func CustomCommand(room, command, payload string) Outbound {
	return Outbound{Type: "custom", RoomName: room, Command: command, Payload: payload}
}
