// Package repo implements the data persistence layer for the conversation
// aggregate, backed by GORM. This file provides the denormalized feedback
// read model: a flat JSON file fed from FeedbackAdded events after commit.
// The relational message_feedback table remains authoritative; the file is
// a convenience export for offline rating analysis.
package repo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// FeedbackEntry is one row of the read model.
type FeedbackEntry struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Revision       int       `json:"revision"`
	Rating         string    `json:"rating"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// FeedbackReadModel appends feedback entries to a JSON file. Writes are
// serialized by a mutex and go through a temp-file rename so readers never
// observe a torn file.
//
// Handle satisfies the event dispatcher's subscriber contract, so the read
// model can be subscribed directly to FeedbackAdded.
type FeedbackReadModel struct {
	mu   sync.Mutex
	path string
}

// NewFeedbackReadModel creates the store, initializing an empty file when
// none exists.
func NewFeedbackReadModel(path string) (*FeedbackReadModel, error) {
	rm := &FeedbackReadModel{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := rm.write(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, domain.Infraf(err, "stat feedback store %s", path)
	}
	return rm, nil
}

// Append adds one entry.
func (rm *FeedbackReadModel) Append(entry FeedbackEntry) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	entries, err := rm.read()
	if err != nil {
		return err
	}
	return rm.write(append(entries, entry))
}

// All returns every stored entry.
func (rm *FeedbackReadModel) All() ([]FeedbackEntry, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.read()
}

// ByConversation returns the entries for one conversation, in append order.
func (rm *FeedbackReadModel) ByConversation(conversationID string) ([]FeedbackEntry, error) {
	all, err := rm.All()
	if err != nil {
		return nil, err
	}
	var out []FeedbackEntry
	for _, e := range all {
		if e.ConversationID == conversationID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Handle projects FeedbackAdded events into the file. Other event variants
// are ignored.
func (rm *FeedbackReadModel) Handle(_ context.Context, e domain.Event) error {
	fb, ok := e.(domain.FeedbackAdded)
	if !ok {
		return nil
	}
	return rm.Append(FeedbackEntry{
		ConversationID: fb.ConversationID.String(),
		MessageID:      fb.MessageID.String(),
		Revision:       fb.Revision,
		Rating:         string(fb.Rating),
		Comment:        fb.Comment,
		CreatedAt:      fb.OccurredAt(),
	})
}

func (rm *FeedbackReadModel) read() ([]FeedbackEntry, error) {
	raw, err := os.ReadFile(rm.path)
	if err != nil {
		return nil, domain.Infraf(err, "read feedback store %s", rm.path)
	}
	var entries []FeedbackEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, domain.Infraf(err, "decode feedback store %s", rm.path)
	}
	return entries, nil
}

func (rm *FeedbackReadModel) write(entries []FeedbackEntry) error {
	if entries == nil {
		entries = []FeedbackEntry{}
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return domain.Infraf(err, "encode feedback store %s", rm.path)
	}
	tmp := rm.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(rm.path), 0o755); err != nil {
		return domain.Infraf(err, "create feedback store dir")
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return domain.Infraf(err, "write feedback store %s", rm.path)
	}
	if err := os.Rename(tmp, rm.path); err != nil {
		return domain.Infraf(err, "replace feedback store %s", rm.path)
	}
	return nil
}
