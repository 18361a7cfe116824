package domain

import (
	"encoding/json"
	"errors"
)

// Connection is one live transport session. The websocket adapter provides
// the implementation; the core only addresses connections by id.
type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Router consumes raw inbound frames and transport lifecycle events.
type Router interface {
	Open(conn Connection)
	Handle(conn Connection, data []byte)
	Closed(conn Connection)
}

// Authenticator verifies the shared admin credential. It is a pure
// predicate and never mutates state.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// Notifier receives out-of-band alerts about new rooms. Implementations
// must not block the caller.
type Notifier interface {
	RoomCreated(username, roomID string)
}

// Event is the wire envelope, both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventJoinChat     = "join_chat"
	EventListRooms    = "list_rooms"
	EventJoinRoomByID = "join_room_by_id"
	EventSendMessage  = "send_message"
	EventTyping       = "typing"
	EventPing         = "ping"
)

// Outbound event names.
const (
	EventAuthFailed        = "auth_failed"
	EventAdminConnected    = "admin_connected"
	EventWaitingForAdmin   = "waiting_for_admin"
	EventAdminJoined       = "admin_joined"
	EventJoinedRoom        = "joined_room"
	EventNewRoomAvailable  = "new_room_available"
	EventRoomsList         = "rooms_list"
	EventReceiveMessage    = "receive_message"
	EventSystemMessage     = "system_message"
	EventUserLeft          = "user_left"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventPong              = "pong"
)

// Inbound payloads.

type JoinChat struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type JoinRoom struct {
	RoomID string `json:"room_id"`
}

type ChatMessage struct {
	Message string `json:"message"`
}

type TypingState struct {
	Typing bool `json:"typing"`
}

type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

// Notification is one outbound frame addressed to one connection. Core
// operations return batches of these; the router delivers them after the
// matchmaker lock is released.
type Notification struct {
	Target  string
	Event   string
	Payload any
}

// Outbound payloads.

type AuthFailed struct {
	Message string `json:"message"`
}

type AdminConnected struct {
	Message      string `json:"message"`
	WaitingRooms int    `json:"waiting_rooms"`
}

type WaitingForAdmin struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type AdminJoined struct {
	Message string `json:"message"`
}

type JoinedRoom struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type NewRoomAvailable struct {
	RoomID    string `json:"room_id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

type RoomSummary struct {
	RoomID    string `json:"room_id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

type RoomsList struct {
	Rooms []RoomSummary `json:"rooms"`
}

type ReceiveMessage struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type SystemMessage struct {
	Message string `json:"message"`
}

type UserLeft struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type UserTyping struct {
	Username string `json:"username"`
}

type UserStoppedTyping struct{}

type Pong struct {
	Timestamp int64  `json:"timestamp"`
	ClientID  string `json:"clientId,omitempty"`
}

// Error taxonomy for core operations. The router and matchmaker turn these
// into user-facing notifications; none of them are fatal to the process.
var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrInvalidName       = errors.New("invalid username")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomOccupied      = errors.New("room already occupied")
	ErrNotInRoom         = errors.New("not in a room")
	ErrMessageEmpty      = errors.New("empty message")
	ErrMessageTooLong    = errors.New("message too long")
)
