package hub

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/ManiKumarKundurthi/chat-with-me/domain"
)

const (
	maxMessageLen = 1000

	// Waiting rooms older than this are swept when an admin logs in.
	staleRoomAge = 2 * time.Hour

	// Per-connection send_message budget: 10 per minute.
	messageRate  = rate.Limit(10.0 / 60.0)
	messageBurst = 10
)

// Matchmaker owns all room and connection state. Every operation runs
// under one mutex and returns the notifications to deliver; delivery
// happens in the router after the lock is released, so nothing blocks
// mid-mutation.
type Matchmaker struct {
	mu        sync.Mutex
	registry  *Registry
	table     *Table
	auth      domain.Authenticator
	notifier  domain.Notifier // may be nil
	adminName string
	limiters  map[string]*rate.Limiter
}

func New(auth domain.Authenticator, adminName string, notifier domain.Notifier) *Matchmaker {
	return &Matchmaker{
		registry:  NewRegistry(),
		table:     NewTable(),
		auth:      auth,
		notifier:  notifier,
		adminName: adminName,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Connect registers a fresh transport connection with no role.
func (m *Matchmaker) Connect(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.registry.Register(id); err != nil {
		slog.Error("connection registration failed", "clientId", id, "error", err)
		return
	}
	m.limiters[id] = rate.NewLimiter(messageRate, messageBurst)
}

// Join handles join_chat. A non-empty password is an admin login attempt;
// an empty one creates a waiting room for a regular user.
func (m *Matchmaker) Join(id, username, password string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.registry.Lookup(id)
	if err != nil {
		slog.Warn("join from unknown connection", "clientId", id)
		return nil
	}
	if s.Role != RoleUnassigned {
		slog.Debug("repeat join ignored", "clientId", id)
		return nil
	}

	if password != "" {
		return m.joinAdmin(s, username, password)
	}
	return m.joinUser(s, username)
}

func (m *Matchmaker) joinAdmin(s *Session, username, password string) []domain.Notification {
	if !m.auth.Authenticate(username, password) {
		slog.Warn("failed admin login", "clientId", s.ID)
		return []domain.Notification{{
			Target:  s.ID,
			Event:   domain.EventAuthFailed,
			Payload: domain.AuthFailed{Message: "Invalid credentials. Access denied."},
		}}
	}
	if m.registry.FindAdmin() != nil {
		slog.Warn("second admin login rejected", "clientId", s.ID)
		return []domain.Notification{{
			Target:  s.ID,
			Event:   domain.EventAuthFailed,
			Payload: domain.AuthFailed{Message: "Admin is already connected."},
		}}
	}
	if err := m.registry.AssignRole(s.ID, RoleAdmin, m.adminName); err != nil {
		// configured admin identity fails name validation
		slog.Error("admin role assignment failed", "clientId", s.ID, "error", err)
		return []domain.Notification{{
			Target:  s.ID,
			Event:   domain.EventAuthFailed,
			Payload: domain.AuthFailed{Message: "Admin login unavailable"},
		}}
	}
	if swept := m.table.Sweep(staleRoomAge); swept > 0 {
		slog.Info("swept stale waiting rooms", "count", swept)
	}
	slog.Info("admin authenticated", "clientId", s.ID)
	return []domain.Notification{{
		Target: s.ID,
		Event:  domain.EventAdminConnected,
		Payload: domain.AdminConnected{
			Message:      "Connected as Admin",
			WaitingRooms: len(m.table.ListWaiting()),
		},
	}}
}

func (m *Matchmaker) joinUser(s *Session, username string) []domain.Notification {
	if err := m.registry.AssignRole(s.ID, RoleUser, username); err != nil {
		return []domain.Notification{{
			Target:  s.ID,
			Event:   domain.EventAuthFailed,
			Payload: domain.AuthFailed{Message: "Invalid username"},
		}}
	}

	room := m.table.Create(s.ID, s.Name)
	slog.Info("room created", "room", room.ID, "username", s.Name)

	notes := []domain.Notification{{
		Target: s.ID,
		Event:  domain.EventWaitingForAdmin,
		Payload: domain.WaitingForAdmin{
			RoomID:  room.ID,
			Message: "Room created! Waiting for Admin to join...",
		},
	}}
	if admin := m.registry.FindAdmin(); admin != nil {
		notes = append(notes, domain.Notification{
			Target: admin.ID,
			Event:  domain.EventNewRoomAvailable,
			Payload: domain.NewRoomAvailable{
				RoomID:    room.ID,
				Username:  s.Name,
				CreatedAt: room.CreatedAt.Format(time.RFC3339),
			},
		})
	}
	if m.notifier != nil {
		m.notifier.RoomCreated(s.Name, room.ID)
	}
	return notes
}

// ListRooms answers an admin's rooms_list request with all waiting rooms
// in creation order.
func (m *Matchmaker) ListRooms(id string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.registry.Lookup(id)
	if err != nil || s.Role != RoleAdmin {
		return []domain.Notification{{
			Target:  id,
			Event:   domain.EventSystemMessage,
			Payload: domain.SystemMessage{Message: "Only Admin can list rooms"},
		}}
	}
	return []domain.Notification{{
		Target:  id,
		Event:   domain.EventRoomsList,
		Payload: m.roomsList(),
	}}
}

// roomsList must be called with the lock held.
func (m *Matchmaker) roomsList() domain.RoomsList {
	list := domain.RoomsList{Rooms: []domain.RoomSummary{}}
	for _, r := range m.table.ListWaiting() {
		list.Rooms = append(list.Rooms, domain.RoomSummary{
			RoomID:    r.ID,
			Username:  r.Username,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		})
	}
	return list
}

// JoinRoom handles the admin claiming a waiting room by id. If the admin
// is already in a different room, that room is demoted back to waiting
// first so the admin never occupies two rooms.
func (m *Matchmaker) JoinRoom(id, roomID string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.registry.Lookup(id)
	if err != nil || s.Role != RoleAdmin {
		return []domain.Notification{{
			Target:  id,
			Event:   domain.EventSystemMessage,
			Payload: domain.SystemMessage{Message: "Only Admin can join rooms"},
		}}
	}

	// Validate the target before touching the admin's current room: a
	// stale room id must cost the admin nothing but an error message.
	room, err := m.table.Get(roomID)
	if err != nil {
		return m.systemMessage(id, fmt.Sprintf("Room %s not found", roomID))
	}
	if room.AdminConnID == id {
		return m.systemMessage(id, fmt.Sprintf("Already in room %s", roomID))
	}
	if room.AdminConnID != "" {
		return m.systemMessage(id, fmt.Sprintf("Room %s is already taken", roomID))
	}

	var notes []domain.Notification
	if cur := m.table.ForConnection(id); cur != nil {
		m.table.ClearAdmin(cur.ID)
		slog.Info("admin left room", "room", cur.ID)
		notes = append(notes, domain.Notification{
			Target:  cur.UserConnID,
			Event:   domain.EventUserLeft,
			Payload: domain.UserLeft{Username: m.adminName, Message: "Admin has left the chat"},
		})
	}

	if err := m.table.AssignAdmin(roomID, id); err != nil {
		// unreachable after the checks above, same lock
		slog.Error("room assignment failed", "room", roomID, "error", err)
		return notes
	}
	slog.Info("admin joined room", "room", roomID, "username", room.Username)
	return append(notes,
		domain.Notification{
			Target:  room.UserConnID,
			Event:   domain.EventAdminJoined,
			Payload: domain.AdminJoined{Message: "Admin has joined the chat!"},
		},
		domain.Notification{
			Target: id,
			Event:  domain.EventJoinedRoom,
			Payload: domain.JoinedRoom{
				RoomID:   roomID,
				Username: room.Username,
				Message:  fmt.Sprintf("Joined room with %s", room.Username),
			},
		},
	)
}

// RouteMessage validates a chat message and delivers it to the other
// occupant of the sender's room. The sender never gets an echo; its
// client renders the message optimistically.
func (m *Matchmaker) RouteMessage(id, text string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.registry.Lookup(id)
	if err != nil {
		return nil
	}

	if lim := m.limiters[id]; lim != nil && !lim.Allow() {
		return m.systemMessage(id, "Rate limit exceeded. Please slow down.")
	}

	text = strings.TrimSpace(text)
	if err := validateMessage(text); err != nil {
		return m.opError(id, err)
	}

	room := m.table.ForConnection(id)
	if room == nil {
		return m.opError(id, domain.ErrNotInRoom)
	}
	if room.Waiting() {
		return m.systemMessage(id, "Waiting for Admin to join...")
	}

	peer := room.AdminConnID
	typing := &room.userTyping
	if s.Role == RoleAdmin {
		peer = room.UserConnID
		typing = &room.adminTyping
	}

	var notes []domain.Notification
	if *typing {
		*typing = false
		notes = append(notes, domain.Notification{
			Target:  peer,
			Event:   domain.EventUserStoppedTyping,
			Payload: domain.UserStoppedTyping{},
		})
	}
	slog.Debug("message routed", "room", room.ID, "from", s.Name)
	return append(notes, domain.Notification{
		Target: peer,
		Event:  domain.EventReceiveMessage,
		Payload: domain.ReceiveMessage{
			Username:  s.Name,
			Message:   html.EscapeString(text),
			Timestamp: time.Now().Format(time.RFC3339),
		},
	})
}

// SetTyping forwards a typing indicator to the other occupant. Typing
// state only exists in active rooms.
func (m *Matchmaker) SetTyping(id string, typing bool) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.registry.Lookup(id)
	if err != nil {
		return nil
	}
	room := m.table.ForConnection(id)
	if room == nil || room.Waiting() {
		return nil
	}

	peer := room.AdminConnID
	flag := &room.userTyping
	if s.Role == RoleAdmin {
		peer = room.UserConnID
		flag = &room.adminTyping
	}
	*flag = typing

	if typing {
		return []domain.Notification{{
			Target:  peer,
			Event:   domain.EventUserTyping,
			Payload: domain.UserTyping{Username: s.Name},
		}}
	}
	return []domain.Notification{{
		Target:  peer,
		Event:   domain.EventUserStoppedTyping,
		Payload: domain.UserStoppedTyping{},
	}}
}

// Disconnect tears down a connection. An admin's room survives, demoted
// back to waiting so a later admin session can resume it; a user's room
// dies with the user. Safe to call more than once.
func (m *Matchmaker) Disconnect(id string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.registry.Lookup(id)
	if err != nil {
		return nil
	}

	var notes []domain.Notification
	room := m.table.ForConnection(id)

	switch {
	case s.Role == RoleAdmin && room != nil:
		m.table.ClearAdmin(room.ID)
		slog.Info("admin disconnected, room back to waiting", "room", room.ID)
		notes = append(notes, domain.Notification{
			Target:  room.UserConnID,
			Event:   domain.EventUserLeft,
			Payload: domain.UserLeft{Username: m.adminName, Message: "Admin has disconnected"},
		})
	case s.Role == RoleUser && room != nil:
		adminID := room.AdminConnID
		m.table.Remove(room.ID)
		slog.Info("room closed", "room", room.ID, "username", s.Name)
		if adminID != "" {
			notes = append(notes,
				domain.Notification{
					Target:  adminID,
					Event:   domain.EventUserLeft,
					Payload: domain.UserLeft{Username: s.Name, Message: fmt.Sprintf("%s has left the chat", s.Name)},
				},
				domain.Notification{
					Target:  adminID,
					Event:   domain.EventRoomsList,
					Payload: m.roomsList(),
				},
			)
		}
	}

	delete(m.limiters, id)
	m.registry.Remove(id)
	return notes
}

func (m *Matchmaker) systemMessage(id, msg string) []domain.Notification {
	return []domain.Notification{{
		Target:  id,
		Event:   domain.EventSystemMessage,
		Payload: domain.SystemMessage{Message: msg},
	}}
}

// validateMessage enforces the 1-1000 rune bounds on trimmed text.
func validateMessage(text string) error {
	if text == "" {
		return domain.ErrMessageEmpty
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return domain.ErrMessageTooLong
	}
	return nil
}

// opError turns an operation error into a system_message for the
// triggering connection. Errors never propagate further than that.
func (m *Matchmaker) opError(id string, err error) []domain.Notification {
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrMessageEmpty):
		msg = "Message cannot be empty"
	case errors.Is(err, domain.ErrMessageTooLong):
		msg = "Message is too long"
	case errors.Is(err, domain.ErrNotInRoom):
		msg = "You are not in any room yet"
	}
	return m.systemMessage(id, msg)
}

// Stats reports room and client counts for the /stats endpoint.
func (m *Matchmaker) Stats() (waiting, active, clients int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	waiting, active = m.table.Counts()
	return waiting, active, m.registry.Len()
}
