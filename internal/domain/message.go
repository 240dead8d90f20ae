package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an entity inside a Conversation. It owns an ordered history of
// Content revisions (the last one is the latest) and at most one Feedback
// per revision index.
type Message struct {
	id       uuid.UUID
	senderID string
	contents []Content
	feedback map[int]Feedback
	created  time.Time
	pinned   bool
}

// newMessage builds a message with its initial revision. Only the owning
// Conversation constructs messages.
func newMessage(id uuid.UUID, senderID string, initial Content, created time.Time) *Message {
	return &Message{
		id:       id,
		senderID: senderID,
		contents: []Content{initial},
		feedback: make(map[int]Feedback),
		created:  created,
	}
}

// ID returns the message identity.
func (m *Message) ID() uuid.UUID { return m.id }

// SenderID returns the participant who authored the message.
func (m *Message) SenderID() string { return m.senderID }

// CreatedAt returns the creation timestamp (UTC).
func (m *Message) CreatedAt() time.Time { return m.created }

// Pinned reports whether the message is the conversation's pinned one.
func (m *Message) Pinned() bool { return m.pinned }

// Revisions returns a copy of the content history in revision order.
func (m *Message) Revisions() []Content {
	out := make([]Content, len(m.contents))
	copy(out, m.contents)
	return out
}

// RevisionCount returns the number of content revisions, always >= 1.
func (m *Message) RevisionCount() int { return len(m.contents) }

// Latest returns the most recent content revision.
func (m *Message) Latest() Content { return m.contents[len(m.contents)-1] }

// FeedbackAt returns the feedback attached at the given revision index.
func (m *Message) FeedbackAt(revision int) (Feedback, bool) {
	fb, ok := m.feedback[revision]
	return fb, ok
}

// FeedbackEntries returns a copy of the revision -> feedback mapping.
func (m *Message) FeedbackEntries() map[int]Feedback {
	out := make(map[int]Feedback, len(m.feedback))
	for i, fb := range m.feedback {
		out[i] = fb
	}
	return out
}

// appendRevision adds a new content revision and returns its index.
func (m *Message) appendRevision(c Content) int {
	m.contents = append(m.contents, c)
	return len(m.contents) - 1
}

// attachFeedback attaches feedback at revision. The revision must exist and
// the slot must be empty; existing feedback is never silently overwritten.
func (m *Message) attachFeedback(revision int, fb Feedback) error {
	if revision < 0 || revision >= len(m.contents) {
		return NotFoundf("message %s has no revision %d", m.id, revision)
	}
	if _, exists := m.feedback[revision]; exists {
		return Preconditionf("feedback already attached to message %s revision %d", m.id, revision)
	}
	m.feedback[revision] = fb
	return nil
}
