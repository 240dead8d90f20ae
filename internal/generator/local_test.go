package generator

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

const testCorpus = `# Company handbook

Revenue for the second quarter reached 4.2 million, driven mostly by the
enterprise tier and renewals from existing accounts.

Headcount grew to 85 people across engineering, sales, and support, with
most of the hiring concentrated in the Berlin office.

short

Office plants are watered every Tuesday by whoever lost the weekly trivia,
a tradition nobody remembers starting.`

func newLocal(t *testing.T, threshold float64) *Local {
	t.Helper()
	l, err := NewLocalFromReader(strings.NewReader(testCorpus), threshold)
	if err != nil {
		t.Fatalf("NewLocalFromReader: %v", err)
	}
	return l
}

func TestNewLocalFromFile_MissingFileKeepsNotExistCause(t *testing.T) {
	_, err := NewLocalFromFile(filepath.Join(t.TempDir(), "nope", "corpus.md"), 0.3)
	if err == nil {
		t.Fatal("expected an error for a missing corpus file")
	}
	if !errors.Is(err, domain.ErrInfrastructure) {
		t.Fatalf("error %v must carry ErrInfrastructure", err)
	}
	// Callers decide whether a missing corpus is fatal, so the cause must
	// survive the wrap.
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("error %v must carry fs.ErrNotExist", err)
	}
}

func TestLocal_IndexSkipsShortParagraphs(t *testing.T) {
	l := newLocal(t, 0.1)
	if len(l.docs) != 3 {
		t.Fatalf("indexed %d paragraphs, want 3 (heading and stub dropped)", len(l.docs))
	}
}

func TestLocal_BestParagraphWins(t *testing.T) {
	l := newLocal(t, 0.05)

	got, err := l.Generate(context.Background(), "what was revenue in the second quarter?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(got, "4.2 million") {
		t.Fatalf("answer %q does not come from the revenue paragraph", got)
	}

	got, err = l.Generate(context.Background(), "how many people work in the Berlin office?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(got, "85 people") {
		t.Fatalf("answer %q does not come from the headcount paragraph", got)
	}
}

func TestLocal_BelowThresholdFallsBack(t *testing.T) {
	l := newLocal(t, 0.9)
	got, err := l.Generate(context.Background(), "tangentially related wording")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != FallbackAnswer {
		t.Fatalf("answer = %q, want fallback", got)
	}
}

func TestLocal_EmptyQueryAndEmptyIndex(t *testing.T) {
	l := newLocal(t, 0.1)
	if got, _ := l.Generate(context.Background(), "!!! ??? ..."); got != FallbackAnswer {
		t.Fatalf("punctuation-only query answered %q, want fallback", got)
	}

	empty, err := NewLocalFromReader(strings.NewReader(""), 0.1)
	if err != nil {
		t.Fatalf("empty corpus: %v", err)
	}
	if got, _ := empty.Generate(context.Background(), "anything at all"); got != FallbackAnswer {
		t.Fatalf("empty index answered %q, want fallback", got)
	}
}

func TestLocal_Deterministic(t *testing.T) {
	l := newLocal(t, 0.01)
	first, err := l.Generate(context.Background(), "people office hiring")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := l.Generate(context.Background(), "people office hiring")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if again != first {
			t.Fatalf("run %d returned %q, first run %q", i, again, first)
		}
	}
}

func TestLocal_CancelledContext(t *testing.T) {
	l := newLocal(t, 0.1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Generate(ctx, "anything"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
