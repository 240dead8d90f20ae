package app

import (
	"github.com/google/uuid"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// StartConversation creates a new conversation owned by CreatorID. An empty
// title gets the placeholder and becomes eligible for auto-titling.
type StartConversation struct {
	BaseCommand
	CreatorID string
	Title     string
}

// ConversationStarted is the StartConversation result.
type ConversationStarted struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SendMessage appends a user message and, when a generator is wired, the
// synthesized assistant response. MessageID may carry a client-supplied
// UUID so a retried send persists exactly one message; leave it uuid.Nil to
// have the server mint one.
type SendMessage struct {
	BaseCommand
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	SenderID       string
	Text           string
}

// SentMessage is the SendMessage result.
type SentMessage struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Response       string `json:"response,omitempty"`
	Deduplicated   bool   `json:"deduplicated,omitempty"`
}

// UpdateMessage appends a fresh content revision to an existing message and
// regenerates the response for it.
type UpdateMessage struct {
	BaseCommand
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Text           string
}

// MessageRevised is the UpdateMessage result.
type MessageRevised struct {
	MessageID string `json:"message_id"`
	Revision  int    `json:"revision"`
}

// PinMessage pins the target message, unpinning any other.
type PinMessage struct {
	BaseCommand
	ConversationID uuid.UUID
	MessageID      uuid.UUID
}

// AttachFeedback attaches a rating to one content revision of a message.
type AttachFeedback struct {
	BaseCommand
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Revision       int
	Rating         domain.Rating
	Comment        string
}

// FeedbackAttached is the AttachFeedback result.
type FeedbackAttached struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Revision       int    `json:"revision"`
}

// ArchiveConversation soft-deletes the conversation. Idempotent.
type ArchiveConversation struct {
	BaseCommand
	ConversationID uuid.UUID
}

// UnarchiveConversation restores an archived conversation. Idempotent.
type UnarchiveConversation struct {
	BaseCommand
	ConversationID uuid.UUID
}

// RenameConversation sets a new non-empty title.
type RenameConversation struct {
	BaseCommand
	ConversationID uuid.UUID
	Title          string
}

// AddParticipant adds a member with the given role.
type AddParticipant struct {
	BaseCommand
	ConversationID uuid.UUID
	UserID         string
	DisplayName    string
	Role           domain.Role
}

// Ack is the generic acknowledgement for state-flip commands.
type Ack struct {
	ConversationID string `json:"conversation_id"`
	Archived       bool   `json:"archived"`
	Title          string `json:"title,omitempty"`
}
