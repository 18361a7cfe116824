package protocol

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ManiKumarKundurthi/chat-with-me/domain"
	"github.com/ManiKumarKundurthi/chat-with-me/hub"
)

// Router is the boundary between the transport and the matchmaker: it
// decodes inbound frames, dispatches them, and fans the resulting
// notifications out to the right connections. It keeps the only map from
// connection id to live connection, so delivery never runs under the
// matchmaker's lock.
type Router struct {
	mm    *hub.Matchmaker
	mu    sync.RWMutex
	conns map[string]domain.Connection
}

func NewRouter(mm *hub.Matchmaker) *Router {
	return &Router{
		mm:    mm,
		conns: make(map[string]domain.Connection),
	}
}

func (r *Router) Open(conn domain.Connection) {
	r.mu.Lock()
	r.conns[conn.ID()] = conn
	r.mu.Unlock()

	r.mm.Connect(conn.ID())
	slog.Info("client connected", "clientId", conn.ID())
}

// Closed runs the disconnect teardown. It is driven by the read pump, so
// it completes before the connection id can ever be reused.
func (r *Router) Closed(conn domain.Connection) {
	notes := r.mm.Disconnect(conn.ID())

	r.mu.Lock()
	delete(r.conns, conn.ID())
	r.mu.Unlock()

	r.deliver(notes)
	slog.Info("client disconnected", "clientId", conn.ID())
}

func (r *Router) Handle(conn domain.Connection, data []byte) {
	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("invalid frame", "clientId", conn.ID(), "error", err)
		return
	}

	var notes []domain.Notification
	switch ev.Event {
	case domain.EventPing:
		var p domain.Ping
		decode(ev.Data, &p)
		r.send(conn, domain.EventPong, domain.Pong{Timestamp: p.Timestamp, ClientID: conn.ID()})
		return
	case domain.EventJoinChat:
		var p domain.JoinChat
		if !decode(ev.Data, &p) {
			return
		}
		notes = r.mm.Join(conn.ID(), p.Username, p.Password)
	case domain.EventListRooms:
		notes = r.mm.ListRooms(conn.ID())
	case domain.EventJoinRoomByID:
		var p domain.JoinRoom
		if !decode(ev.Data, &p) {
			return
		}
		notes = r.mm.JoinRoom(conn.ID(), p.RoomID)
	case domain.EventSendMessage:
		var p domain.ChatMessage
		if !decode(ev.Data, &p) {
			return
		}
		notes = r.mm.RouteMessage(conn.ID(), p.Message)
	case domain.EventTyping:
		var p domain.TypingState
		if !decode(ev.Data, &p) {
			return
		}
		notes = r.mm.SetTyping(conn.ID(), p.Typing)
	default:
		slog.Warn("unknown event", "clientId", conn.ID(), "event", ev.Event)
		return
	}

	r.deliver(notes)
}

func (r *Router) deliver(notes []domain.Notification) {
	for _, n := range notes {
		r.mu.RLock()
		conn := r.conns[n.Target]
		r.mu.RUnlock()
		if conn == nil {
			// Target raced away between computing and delivering.
			continue
		}
		r.send(conn, n.Event, n.Payload)
	}
}

func (r *Router) send(conn domain.Connection, event string, payload any) {
	frame := domain.Event{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			slog.Warn("marshal error", "clientId", conn.ID(), "event", event, "error", err)
			return
		}
		frame.Data = data
	}
	out, err := json.Marshal(frame)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "event", event, "error", err)
		return
	}
	if err := conn.Send(out); err != nil {
		slog.Warn("send failed", "clientId", conn.ID(), "event", event, "error", err)
	}
}

// decode tolerates a missing data object so bare events like list_rooms
// still dispatch.
func decode(data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("invalid payload", "error", err)
		return false
	}
	return true
}
