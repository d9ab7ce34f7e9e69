package core

import "github.com/vovakirdan/finchat-client/internal/proto"

// PseudoRoom is the reserved key for server-level log and status lines.
// The room always exists and is never joined or parted.
const PseudoRoom = ""

// Room is the local cache of one room: its roster and the display-
// ordered message sequence. Instances are owned by State; all access
// from outside the package goes through State's snapshot methods.
type Room struct {
	Name     string
	roster   map[string]bool // username -> is-self
	messages []Message
}

func newRoom(name string) *Room {
	return &Room{
		Name:   name,
		roster: make(map[string]bool),
	}
}

func (r *Room) addUser(name string, self bool) {
	r.roster[name] = self
}

func (r *Room) removeUser(name string) {
	delete(r.roster, name)
}

// setRoster replaces the roster wholesale from a server payload.
func (r *Room) setRoster(entries []proto.UserEntry) {
	r.roster = make(map[string]bool, len(entries))
	for _, e := range entries {
		r.roster[e.Name] = e.You
	}
}

// append adds a message at the tail of the display sequence. Arrival
// order is display order; messages are never reordered by stamp.
func (r *Room) append(m Message) {
	r.messages = append(r.messages, m)
}

func (r *Room) users() map[string]bool {
	out := make(map[string]bool, len(r.roster))
	for name, self := range r.roster {
		out[name] = self
	}
	return out
}

func (r *Room) snapshot() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
