package domain

import (
	"errors"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a saved conversation. Assistant messages may carry
// the event trace of the run that produced them, without content chunks.
type Message struct {
	Role         Role
	Content      string
	SearchEvents []Event
	CreatedAt    time.Time
}

// Conversation is the persisted record kept by the history collaborator.
type Conversation struct {
	ID        string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationSummary is a list entry without messages.
type ConversationSummary struct {
	ID           string
	Title        string
	MessageCount int
	UpdatedAt    time.Time
}

// Turns rebuilds conversational context from alternating user/assistant
// messages.
func (c Conversation) Turns() []Turn {
	var (
		turns   []Turn
		pending *Turn
	)
	for _, msg := range c.Messages {
		switch msg.Role {
		case RoleUser:
			pending = &Turn{Query: msg.Content}
		case RoleAssistant:
			if pending != nil {
				pending.Response = msg.Content
				turns = append(turns, *pending)
				pending = nil
			}
		}
	}
	return turns
}

// ErrConversationNotFound is returned by repositories for unknown ids.
var ErrConversationNotFound = errors.New("conversation not found")
