package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTitleRunes bounds conversation titles.
const MaxTitleRunes = 255

// DefaultTitle is the placeholder given to conversations created without an
// explicit title. Placeholders are eligible for auto-titling from the first
// message.
const DefaultTitle = "New conversation"

// Conversation is the aggregate root. It exclusively owns its messages and
// participants, enforces every invariant of the conversation core, and
// buffers domain events until the surrounding unit of work commits.
//
// A Conversation is not safe for concurrent mutation; each instance is used
// from a single unit of work at a time. Cross-process interleavings are
// serialized by the optimistic version counter checked on save.
type Conversation struct {
	id           uuid.UUID
	creatorID    string
	title        string
	archived     bool
	version      int
	createdAt    time.Time
	updatedAt    time.Time
	messages     []*Message
	participants []Participant
	pending      []Event
}

// NewConversation creates an ACTIVE conversation owned by creatorID. The
// creator is always added as a participant with RoleOwner. An empty title
// gets the placeholder.
func NewConversation(creatorID, title string) (*Conversation, error) {
	if creatorID == "" {
		return nil, Validationf("creator id must not be empty")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleRunes {
		return nil, Validationf("title must be at most %d characters, got %d", MaxTitleRunes, n)
	}
	now := time.Now().UTC()
	return &Conversation{
		id:        uuid.New(),
		creatorID: creatorID,
		title:     title,
		createdAt: now,
		updatedAt: now,
		participants: []Participant{
			{UserID: creatorID, DisplayName: creatorID, Role: RoleOwner},
		},
	}, nil
}

// RehydratedMessage carries one persisted message during aggregate
// reconstruction.
type RehydratedMessage struct {
	ID        uuid.UUID
	SenderID  string
	Contents  []Content
	Feedback  map[int]Feedback
	CreatedAt time.Time
	Pinned    bool
}

// Rehydrate reconstructs a Conversation from persisted state. It performs no
// rule checks: the stored state is trusted to have passed them when it was
// written. The repository is the only intended caller.
func Rehydrate(
	id uuid.UUID,
	creatorID, title string,
	archived bool,
	version int,
	createdAt, updatedAt time.Time,
	participants []Participant,
	messages []RehydratedMessage,
) *Conversation {
	c := &Conversation{
		id:           id,
		creatorID:    creatorID,
		title:        title,
		archived:     archived,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		participants: append([]Participant(nil), participants...),
	}
	for _, rm := range messages {
		m := &Message{
			id:       rm.ID,
			senderID: rm.SenderID,
			contents: append([]Content(nil), rm.Contents...),
			feedback: make(map[int]Feedback, len(rm.Feedback)),
			created:  rm.CreatedAt,
			pinned:   rm.Pinned,
		}
		for i, fb := range rm.Feedback {
			m.feedback[i] = fb
		}
		c.messages = append(c.messages, m)
	}
	return c
}

// ID returns the aggregate identity.
func (c *Conversation) ID() uuid.UUID { return c.id }

// CreatorID returns the owner's user id.
func (c *Conversation) CreatorID() string { return c.creatorID }

// Title returns the current title.
func (c *Conversation) Title() string { return c.title }

// Archived reports whether the conversation is in the ARCHIVED state.
func (c *Conversation) Archived() bool { return c.archived }

// Version returns the optimistic concurrency counter as loaded. The
// repository increments it on save.
func (c *Conversation) Version() int { return c.version }

// AdvanceVersion increments the in-memory version counter. The repository
// calls it after a successful save so a later save in the same unit of work
// checks against the version it just wrote.
func (c *Conversation) AdvanceVersion() { c.version++ }

// CreatedAt returns the creation timestamp (UTC).
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last mutation timestamp (UTC).
func (c *Conversation) UpdatedAt() time.Time { return c.updatedAt }

// Messages returns the messages in insertion order. The slice is a copy but
// the entities are the aggregate's own; callers must not mutate them.
func (c *Conversation) Messages() []*Message {
	out := make([]*Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Participants returns a copy of the participant set.
func (c *Conversation) Participants() []Participant {
	out := make([]Participant, len(c.participants))
	copy(out, c.participants)
	return out
}

// Message returns the message with the given id.
func (c *Conversation) Message(id uuid.UUID) (*Message, error) {
	for _, m := range c.messages {
		if m.id == id {
			return m, nil
		}
	}
	return nil, NotFoundf("message %s not found in conversation %s", id, c.id)
}

// HasParticipant reports whether userID is a member.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// AddMessage appends a new message with a fresh UUID.
func (c *Conversation) AddMessage(content Content, senderID string) (uuid.UUID, error) {
	return c.AddMessageWithID(uuid.New(), content, senderID)
}

// AddMessageWithID appends a new message under a caller-supplied id. Clients
// retrying a send reuse the same id so the repository can deduplicate; the
// aggregate itself rejects an id it already holds.
//
// The message timestamp is max(previous message timestamp, now), keeping
// timestamps non-decreasing along insertion order even when the wall clock
// stalls. Insertion order is authoritative for ordering; the timestamp is
// informational.
func (c *Conversation) AddMessageWithID(id uuid.UUID, content Content, senderID string) (uuid.UUID, error) {
	if c.archived {
		return uuid.Nil, Preconditionf("conversation %s is archived", c.id)
	}
	if !c.HasParticipant(senderID) {
		return uuid.Nil, Preconditionf("sender %s is not a participant of conversation %s", senderID, c.id)
	}
	if _, err := c.Message(id); err == nil {
		return uuid.Nil, Preconditionf("message %s already exists in conversation %s", id, c.id)
	}

	ts := time.Now().UTC()
	if n := len(c.messages); n > 0 {
		if last := c.messages[n-1].created; ts.Before(last) {
			ts = last
		}
	}

	c.messages = append(c.messages, newMessage(id, senderID, content, ts))
	c.touch()
	c.record(MessageAdded{
		eventBase:      newEventBase(ts),
		ConversationID: c.id,
		MessageID:      id,
		SenderID:       senderID,
		Timestamp:      ts,
	})
	return id, nil
}

// UpdateMessage appends newContent as a fresh revision of an existing
// message. History is never rewritten.
func (c *Conversation) UpdateMessage(messageID uuid.UUID, newContent Content) error {
	if c.archived {
		return Preconditionf("conversation %s is archived", c.id)
	}
	m, err := c.Message(messageID)
	if err != nil {
		return err
	}
	rev := m.appendRevision(newContent)
	c.touch()
	c.record(MessageUpdated{
		eventBase:      newEventBase(c.updatedAt),
		ConversationID: c.id,
		MessageID:      messageID,
		Revision:       rev,
	})
	return nil
}

// PinMessage pins the target message, unpinning any currently pinned one, so
// at most one message is pinned at a time. A single MessagePinned event is
// emitted naming the new target.
func (c *Conversation) PinMessage(messageID uuid.UUID) error {
	if c.archived {
		return Preconditionf("conversation %s is archived", c.id)
	}
	target, err := c.Message(messageID)
	if err != nil {
		return err
	}
	for _, m := range c.messages {
		m.pinned = false
	}
	target.pinned = true
	c.touch()
	c.record(MessagePinned{
		eventBase:      newEventBase(c.updatedAt),
		ConversationID: c.id,
		MessageID:      messageID,
	})
	return nil
}

// AttachFeedback attaches feedback to a content revision of a message.
// Attaching to an occupied slot fails; no silent overwrite.
func (c *Conversation) AttachFeedback(messageID uuid.UUID, revision int, rating Rating, comment string) error {
	if c.archived {
		return Preconditionf("conversation %s is archived", c.id)
	}
	m, err := c.Message(messageID)
	if err != nil {
		return err
	}
	fb, err := NewFeedback(rating, comment)
	if err != nil {
		return err
	}
	if err := m.attachFeedback(revision, fb); err != nil {
		return err
	}
	c.touch()
	c.record(FeedbackAdded{
		eventBase:      newEventBase(c.updatedAt),
		ConversationID: c.id,
		MessageID:      messageID,
		Revision:       revision,
		Rating:         rating,
		Comment:        comment,
	})
	return nil
}

// Rename sets a new title. The title must be non-empty.
func (c *Conversation) Rename(title string) error {
	if c.archived {
		return Preconditionf("conversation %s is archived", c.id)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Validationf("title must not be empty")
	}
	if n := utf8.RuneCountInString(title); n > MaxTitleRunes {
		return Validationf("title must be at most %d characters, got %d", MaxTitleRunes, n)
	}
	if title == c.title {
		return nil
	}
	c.title = title
	c.touch()
	c.record(ConversationRenamed{
		eventBase:      newEventBase(c.updatedAt),
		ConversationID: c.id,
		Title:          title,
	})
	return nil
}

// AddParticipant adds a member. Adding an existing user id fails.
func (c *Conversation) AddParticipant(userID, displayName string, role Role) error {
	if c.archived {
		return Preconditionf("conversation %s is archived", c.id)
	}
	if userID == "" {
		return Validationf("participant user id must not be empty")
	}
	if !role.Valid() {
		return Validationf("role must be one of owner, writer, reader; got %q", role)
	}
	if c.HasParticipant(userID) {
		return Preconditionf("user %s is already a participant of conversation %s", userID, c.id)
	}
	if displayName == "" {
		displayName = userID
	}
	c.participants = append(c.participants, Participant{UserID: userID, DisplayName: displayName, Role: role})
	c.touch()
	c.record(ParticipantAdded{
		eventBase:      newEventBase(c.updatedAt),
		ConversationID: c.id,
		UserID:         userID,
		Role:           role,
	})
	return nil
}

// Archive transitions ACTIVE -> ARCHIVED. Idempotent; archiving an archived
// conversation is a no-op and emits nothing.
func (c *Conversation) Archive() {
	if c.archived {
		return
	}
	c.archived = true
	c.touch()
	c.record(ConversationArchived{
		eventBase:      newEventBase(c.updatedAt),
		ConversationID: c.id,
	})
}

// Unarchive transitions ARCHIVED -> ACTIVE. Idempotent.
func (c *Conversation) Unarchive() {
	if !c.archived {
		return
	}
	c.archived = false
	c.touch()
	c.record(ConversationUnarchived{
		eventBase:      newEventBase(c.updatedAt),
		ConversationID: c.id,
	})
}

// PendingEvents returns the buffered events without draining them.
func (c *Conversation) PendingEvents() []Event {
	out := make([]Event, len(c.pending))
	copy(out, c.pending)
	return out
}

// PullEvents drains and returns the buffered events in emission order. The
// unit of work calls this after commit; a rolled-back unit of work calls
// ClearEvents instead so the buffer is empty outside any scope either way.
func (c *Conversation) PullEvents() []Event {
	events := c.pending
	c.pending = nil
	return events
}

// ClearEvents discards buffered events, used on rollback.
func (c *Conversation) ClearEvents() { c.pending = nil }

func (c *Conversation) record(e Event) { c.pending = append(c.pending, e) }

func (c *Conversation) touch() { c.updatedAt = time.Now().UTC() }
