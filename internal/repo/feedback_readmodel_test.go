package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

func newReadModel(t *testing.T) *FeedbackReadModel {
	t.Helper()
	rm, err := NewFeedbackReadModel(filepath.Join(t.TempDir(), "nested", "feedback.json"))
	if err != nil {
		t.Fatalf("NewFeedbackReadModel: %v", err)
	}
	return rm
}

func TestFeedbackReadModel_AppendAndQuery(t *testing.T) {
	rm := newReadModel(t)

	convA := uuid.NewString()
	convB := uuid.NewString()
	for i, conv := range []string{convA, convA, convB} {
		err := rm.Append(FeedbackEntry{
			ConversationID: conv,
			MessageID:      uuid.NewString(),
			Revision:       i,
			Rating:         string(domain.RatingPositive),
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	all, err := rm.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("entries = %d, want 3", len(all))
	}
	if all[0].Revision != 0 || all[2].Revision != 2 {
		t.Fatalf("append order not preserved: %+v", all)
	}

	byConv, err := rm.ByConversation(convA)
	if err != nil {
		t.Fatalf("ByConversation: %v", err)
	}
	if len(byConv) != 2 {
		t.Fatalf("conversation A entries = %d, want 2", len(byConv))
	}
}

func TestFeedbackReadModel_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.json")

	rm, err := NewFeedbackReadModel(path)
	if err != nil {
		t.Fatalf("NewFeedbackReadModel: %v", err)
	}
	if err := rm.Append(FeedbackEntry{ConversationID: "c1", MessageID: "m1", Rating: "negative"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	reopened, err := NewFeedbackReadModel(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	all, err := reopened.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0].MessageID != "m1" {
		t.Fatalf("reopened store = %+v, want the original entry", all)
	}
}

func TestFeedbackReadModel_HandleProjectsFeedbackEvents(t *testing.T) {
	rm := newReadModel(t)
	ctx := context.Background()

	convID := uuid.New()
	msgID := uuid.New()

	// Variants other than FeedbackAdded are ignored.
	if err := rm.Handle(ctx, domain.MessageAdded{ConversationID: convID, MessageID: msgID}); err != nil {
		t.Fatalf("Handle MessageAdded: %v", err)
	}
	if err := rm.Handle(ctx, domain.FeedbackAdded{
		ConversationID: convID,
		MessageID:      msgID,
		Revision:       1,
		Rating:         domain.RatingNeutral,
		Comment:        "meh",
	}); err != nil {
		t.Fatalf("Handle FeedbackAdded: %v", err)
	}

	all, err := rm.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("entries = %d, want only the feedback event projected", len(all))
	}
	got := all[0]
	if got.ConversationID != convID.String() || got.Revision != 1 || got.Rating != "neutral" || got.Comment != "meh" {
		t.Fatalf("projected entry mismatch: %+v", got)
	}
}
