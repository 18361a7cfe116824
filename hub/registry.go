package hub

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/ManiKumarKundurthi/chat-with-me/domain"
)

const maxNameLen = 50

// Role of a connection. Connections start unassigned and pick a role on
// their first join_chat.
type Role int

const (
	RoleUnassigned Role = iota
	RoleUser
	RoleAdmin
)

// Session is the registry's record of one live connection.
type Session struct {
	ID   string
	Role Role
	Name string
}

// Registry maps connection ids to their role and display name. It has no
// locking of its own: the Matchmaker owns it and serializes all access.
type Registry struct {
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register adds a connection with no role yet. The gateway guarantees id
// uniqueness, so a duplicate is a programming error, not a user error.
func (r *Registry) Register(id string) (*Session, error) {
	if _, ok := r.sessions[id]; ok {
		return nil, fmt.Errorf("connection %s already registered", id)
	}
	s := &Session{ID: id}
	r.sessions[id] = s
	return s, nil
}

// AssignRole names a connection and fixes its role. The name is trimmed,
// must be 1-50 runes, and is stored HTML-escaped.
func (r *Registry) AssignRole(id string, role Role, name string) error {
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrUnknownConnection
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return domain.ErrInvalidName
	}
	s.Role = role
	s.Name = html.EscapeString(name)
	return nil
}

func (r *Registry) Lookup(id string) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrUnknownConnection
	}
	return s, nil
}

// Remove is idempotent.
func (r *Registry) Remove(id string) {
	delete(r.sessions, id)
}

// FindAdmin returns the active admin session, or nil. At most one admin
// is connected at a time; a second login is rejected at authentication.
func (r *Registry) FindAdmin() *Session {
	for _, s := range r.sessions {
		if s.Role == RoleAdmin {
			return s
		}
	}
	return nil
}

func (r *Registry) Len() int {
	return len(r.sessions)
}
