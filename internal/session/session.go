package session

import (
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleSystem is reserved for the knowledge-base prompt injected at
	// completion time; it is never stored in a session.
	RoleSystem = "system"
)

// Marker messages appended when an operator hands the conversation over to or
// back from manual mode.
const (
	ManualModeMarker = "Manual chat continued"
	AutoModeMarker   = "Automate chat continued"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is one end-user conversation. Messages are append-only and ordered;
// the registry serializes appends per session through mu.
type Session struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	messages  []Message
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Messages returns a copy; mutating the result does not touch the session.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) append(m Message) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
