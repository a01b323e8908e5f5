// Package domain contains core domain types for the coaching service.
package domain

import (
	"time"
)

// Role identifies the speaker of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session holds the conversational state of one coaching session.
// Traits are fixed at creation; Messages is append-only and chronological.
type Session struct {
	ID        string       `json:"session_id"`
	Traits    []string     `json:"traits"`
	Messages  []Message    `json:"messages"`
	Goals     GoalTracking `json:"goal_tracking"`
	TurnCount int          `json:"turn_count"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewSession returns a session with no turns and all goal flags cleared.
func NewSession(id string, traits []string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Traits:    append([]string(nil), traits...),
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Traits = append([]string(nil), s.Traits...)
	c.Messages = append([]Message(nil), s.Messages...)
	return &c
}

// RecordUser appends a user utterance and counts the turn.
func (s *Session) RecordUser(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: content})
	s.TurnCount++
}

// RecordAssistant appends a coach reply.
func (s *Session) RecordAssistant(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: content})
}

// RecentMessages returns the last n messages of the log.
func (s *Session) RecentMessages(n int) []Message {
	if n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// UserMessageCount counts user-role entries; it always equals TurnCount.
func (s *Session) UserMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}
