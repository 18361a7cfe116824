package hub

import (
	"time"

	"github.com/google/uuid"

	"github.com/ManiKumarKundurthi/chat-with-me/domain"
)

// Room is one user's waiting or active chat slot. The user occupant is
// fixed for the room's whole life; the admin occupant comes and goes.
type Room struct {
	ID          string
	UserConnID  string
	AdminConnID string // empty while waiting
	Username    string
	CreatedAt   time.Time
	userTyping  bool
	adminTyping bool
}

func (r *Room) Waiting() bool {
	return r.AdminConnID == ""
}

// Table owns the set of live rooms, keyed by room id, with an insertion
// order for listing and a connection index for message routing. Like the
// Registry it relies on the Matchmaker's lock for exclusion.
type Table struct {
	rooms  map[string]*Room
	order  []string          // room ids in creation order
	byConn map[string]string // connection id -> room id
}

func NewTable() *Table {
	return &Table{
		rooms:  make(map[string]*Room),
		byConn: make(map[string]string),
	}
}

// Create allocates a fresh waiting room for the given user connection.
// Ids are 8-char uuid prefixes; collisions are treated as negligible.
func (t *Table) Create(userConnID, username string) *Room {
	r := &Room{
		ID:         uuid.NewString()[:8],
		UserConnID: userConnID,
		Username:   username,
		CreatedAt:  time.Now(),
	}
	t.rooms[r.ID] = r
	t.order = append(t.order, r.ID)
	t.byConn[userConnID] = r.ID
	return r
}

// AssignAdmin moves a room from waiting to active.
func (t *Table) AssignAdmin(roomID, adminConnID string) error {
	r, ok := t.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if r.AdminConnID != "" {
		return domain.ErrRoomOccupied
	}
	r.AdminConnID = adminConnID
	t.byConn[adminConnID] = roomID
	return nil
}

// ClearAdmin demotes a room back to waiting, resetting transient typing
// state. No-op if the room is absent or already waiting.
func (t *Table) ClearAdmin(roomID string) {
	r, ok := t.rooms[roomID]
	if !ok || r.AdminConnID == "" {
		return
	}
	delete(t.byConn, r.AdminConnID)
	r.AdminConnID = ""
	r.userTyping = false
	r.adminTyping = false
}

func (t *Table) Get(roomID string) (*Room, error) {
	r, ok := t.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return r, nil
}

// Remove deletes a room and its index entries. Idempotent.
func (t *Table) Remove(roomID string) {
	r, ok := t.rooms[roomID]
	if !ok {
		return
	}
	delete(t.byConn, r.UserConnID)
	if r.AdminConnID != "" {
		delete(t.byConn, r.AdminConnID)
	}
	delete(t.rooms, roomID)
	for i, id := range t.order {
		if id == roomID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// ListWaiting snapshots all waiting rooms in creation order.
func (t *Table) ListWaiting() []*Room {
	var out []*Room
	for _, id := range t.order {
		if r := t.rooms[id]; r != nil && r.Waiting() {
			out = append(out, r)
		}
	}
	return out
}

// ForConnection resolves the room where this connection is an occupant,
// or nil. A connection occupies at most one room.
func (t *Table) ForConnection(connID string) *Room {
	id, ok := t.byConn[connID]
	if !ok {
		return nil
	}
	return t.rooms[id]
}

// Sweep drops waiting rooms older than maxAge and reports how many went.
// Active rooms are never swept.
func (t *Table) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, id := range append([]string(nil), t.order...) {
		r := t.rooms[id]
		if r != nil && r.Waiting() && r.CreatedAt.Before(cutoff) {
			t.Remove(id)
			removed++
		}
	}
	return removed
}

// Counts returns the number of waiting and active rooms.
func (t *Table) Counts() (waiting, active int) {
	for _, r := range t.rooms {
		if r.Waiting() {
			waiting++
		} else {
			active++
		}
	}
	return waiting, active
}
