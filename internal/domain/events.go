package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event namespaces. Each event variant carries an explicit namespace
// discriminator instead of relying on its concrete type; subscribers and the
// dispatcher key on it.
const (
	NSMessageAdded           = "conversation.message_added"
	NSMessageUpdated         = "conversation.message_updated"
	NSMessagePinned          = "conversation.message_pinned"
	NSFeedbackAdded          = "conversation.feedback_added"
	NSConversationRenamed    = "conversation.renamed"
	NSConversationArchived   = "conversation.archived"
	NSConversationUnarchived = "conversation.unarchived"
	NSParticipantAdded       = "conversation.participant_added"
)

// Event is a plain immutable record emitted by the aggregate during a unit
// of work and published after commit.
type Event interface {
	// Namespace identifies the event variant.
	Namespace() string
	// OccurredAt is the emission time (UTC).
	OccurredAt() time.Time
}

type eventBase struct {
	At time.Time
}

func (e eventBase) OccurredAt() time.Time { return e.At }

func newEventBase(now time.Time) eventBase { return eventBase{At: now.UTC()} }

// MessageAdded is emitted when a new message is appended to a conversation.
type MessageAdded struct {
	eventBase
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	SenderID       string
	Timestamp      time.Time
}

func (MessageAdded) Namespace() string { return NSMessageAdded }

// MessageUpdated is emitted when a new content revision is appended to an
// existing message.
type MessageUpdated struct {
	eventBase
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Revision       int
}

func (MessageUpdated) Namespace() string { return NSMessageUpdated }

// MessagePinned is emitted once per pin operation, naming the new target.
type MessagePinned struct {
	eventBase
	ConversationID uuid.UUID
	MessageID      uuid.UUID
}

func (MessagePinned) Namespace() string { return NSMessagePinned }

// FeedbackAdded is emitted when feedback is attached to a content revision.
type FeedbackAdded struct {
	eventBase
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Revision       int
	Rating         Rating
	Comment        string
}

func (FeedbackAdded) Namespace() string { return NSFeedbackAdded }

// ConversationRenamed is emitted when the conversation title changes,
// including auto-generated titles.
type ConversationRenamed struct {
	eventBase
	ConversationID uuid.UUID
	Title          string
}

func (ConversationRenamed) Namespace() string { return NSConversationRenamed }

// ConversationArchived is emitted on the ACTIVE -> ARCHIVED transition.
type ConversationArchived struct {
	eventBase
	ConversationID uuid.UUID
}

func (ConversationArchived) Namespace() string { return NSConversationArchived }

// ConversationUnarchived is emitted on the ARCHIVED -> ACTIVE transition.
type ConversationUnarchived struct {
	eventBase
	ConversationID uuid.UUID
}

func (ConversationUnarchived) Namespace() string { return NSConversationUnarchived }

// ParticipantAdded is emitted when a new participant joins.
type ParticipantAdded struct {
	eventBase
	ConversationID uuid.UUID
	UserID         string
	Role           Role
}

func (ParticipantAdded) Namespace() string { return NSParticipantAdded }
