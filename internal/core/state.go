package core

import (
	"sort"
	"sync"

	"github.com/vovakirdan/finchat-client/internal/proto"
)

// State is the authoritative local cache of rooms, rosters, message
// history and the active-room selection. The session's read loop
// mutates it while callers and renderers read, so every entry point
// takes the mutex; inbound application order stays total because only
// that single loop applies events. Renderers read this store and never
// mutate it.
type State struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	active    string
	summaries []proto.RoomSummary
}

// NewState builds a store holding only the pseudo-room.
func NewState() *State {
	return &State{
		rooms:  map[string]*Room{PseudoRoom: newRoom(PseudoRoom)},
		active: PseudoRoom,
	}
}

// applyJoined reconciles a join event. For a self-join any stale local
// copy of the room is discarded, a fresh room is built from the
// embedded status snapshot, and the room becomes active. Joins by
// other users are tracked only for rooms this client is in. The
// returned slice is the history backfill, nil for non-self joins.
func (s *State) applyJoined(ev proto.Event) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var backfill []Message
	if ev.You {
		delete(s.rooms, ev.Room)
		room := newRoom(ev.Room)
		if ev.Status != nil {
			room.setRoster(ev.Status.Users)
			for _, h := range ev.Status.Messages {
				m := Message{
					Kind:   MessageChat,
					Stamp:  h.Stamp,
					Author: h.User,
					Self:   h.You,
					Body:   h.Body,
				}
				room.append(m)
				backfill = append(backfill, m)
			}
		}
		s.rooms[ev.Room] = room
		s.active = ev.Room
		for i := range s.summaries {
			if s.summaries[i].Name == ev.Room {
				s.summaries[i].Joined = true
			}
		}
	} else if _, ok := s.rooms[ev.Room]; ok {
		s.rooms[ev.Room].addUser(ev.User, false)
	} else {
		// Joins for rooms this client has not joined are not tracked.
		return nil
	}

	s.rooms[ev.Room].append(Message{
		Kind:   MessageJoined,
		Stamp:  ev.Stamp,
		Author: ev.User,
		Self:   ev.You,
	})
	return backfill
}

// applyParted reconciles a part event. A self-part removes the room
// with its roster and history; if it was active, the active pointer
// falls back to the pseudo-room. A part by another user removes only
// that roster entry.
func (s *State) applyParted(ev proto.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[ev.Room]
	if !ok {
		return
	}
	if ev.You {
		if ev.Room == PseudoRoom {
			return
		}
		delete(s.rooms, ev.Room)
		if s.active == ev.Room {
			s.active = PseudoRoom
		}
		return
	}
	room.removeUser(ev.User)
	room.append(Message{
		Kind:   MessageParted,
		Stamp:  ev.Stamp,
		Author: ev.User,
		Self:   false,
	})
}

// applyMessage appends a live chat message in arrival order. Messages
// for rooms not tracked locally are dropped as stale.
func (s *State) applyMessage(ev proto.Event) Message {
	m := Message{
		Kind:   MessageChat,
		Stamp:  ev.Stamp,
		Author: ev.User,
		Self:   ev.You,
		Body:   ev.Body,
	}
	s.appendLive(ev.Room, m)
	return m
}

// applyCustom appends a live custom command message in arrival order.
func (s *State) applyCustom(ev proto.Event) Message {
	m := Message{
		Kind:    MessageCustom,
		Stamp:   ev.Stamp,
		Author:  ev.User,
		Self:    ev.You,
		Command: ev.Command,
		Payload: ev.Payload,
	}
	s.appendLive(ev.Room, m)
	return m
}

func (s *State) appendLive(room string, m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[room]; ok {
		r.append(m)
	}
}

// applyUsers replaces the roster of the named room wholesale.
func (s *State) applyUsers(ev proto.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[ev.Room]; ok {
		r.setRoster(ev.Users)
	}
}

// applyList replaces the transient summary set wholesale. Joined Room
// entities are unaffected.
func (s *State) applyList(ev proto.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = make([]proto.RoomSummary, len(ev.Rooms))
	copy(s.summaries, ev.Rooms)
}

// SelectRoom moves the active pointer. Selecting a room that does not
// exist locally is a no-op; stale UI references must not dangle the
// pointer.
func (s *State) SelectRoom(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[name]; ok {
		s.active = name
	}
}

// ActiveRoom returns the current active room key. It always resolves
// to an existing room or the pseudo-room.
func (s *State) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// HasRoom reports whether the room is tracked locally.
func (s *State) HasRoom(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[name]
	return ok
}

// RoomNames returns the tracked room keys in sorted order, the
// pseudo-room included.
func (s *State) RoomNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Roster returns a copy of the room's roster, nil when untracked.
func (s *State) Roster(name string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[name]; ok {
		return r.users()
	}
	return nil
}

// Messages returns a copy of the room's display sequence.
func (s *State) Messages(name string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[name]; ok {
		return r.snapshot()
	}
	return nil
}

// Summaries returns a copy of the sidebar room summaries.
func (s *State) Summaries() []proto.RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proto.RoomSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}
