// Package generator provides ResponseGenerator implementations: a local
// deterministic retrieval answerer over a Markdown corpus, and a remote
// HTTP-backed one. Which backend serves a deployment is a wiring decision;
// the conversation core only ever sees text in, text out.
package generator

import (
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// FallbackAnswer is returned when retrieval finds nothing above threshold.
const FallbackAnswer = "I can't answer that from the provided data."

// Local answers from an in-memory paragraph index. Scoring is Jaccard
// similarity between the query token set and each paragraph's token set;
// ties break on paragraph order, so answers are deterministic. The index is
// immutable after construction and safe for concurrent use.
type Local struct {
	threshold float64
	docs      []localDoc
}

type localDoc struct {
	text   string
	tokens map[string]struct{}
}

// NewLocalFromFile builds a Local from the Markdown file at path.
// Paragraphs are split on blank lines; very short ones are skipped.
func NewLocalFromFile(path string, threshold float64) (*Local, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Infraf(err, "read corpus %s", path)
	}
	return NewLocalFromReader(bytes.NewReader(raw), threshold)
}

// NewLocalFromReader builds a Local from UTF-8 Markdown text.
func NewLocalFromReader(r io.Reader, threshold float64) (*Local, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.Infraf(err, "read corpus")
	}

	const minParagraphRunes = 40
	var docs []localDoc
	for _, para := range strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if len([]rune(para)) < minParagraphRunes {
			continue
		}
		toks := tokenize(para)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, localDoc{text: para, tokens: toks})
	}
	return &Local{threshold: threshold, docs: docs}, nil
}

// Generate returns the best-matching paragraph, or the fallback sentence
// when nothing scores above the threshold. It never fails: an empty index
// degrades to the fallback.
func (l *Local) Generate(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q := tokenize(text)
	if len(q) == 0 || len(l.docs) == 0 {
		return FallbackAnswer, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	for i, d := range l.docs {
		if s := jaccard(q, d.tokens); s > 0 {
			ranked = append(ranked, scored{idx: i, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].idx < ranked[j].idx
	})
	if len(ranked) == 0 || ranked[0].score < l.threshold {
		return FallbackAnswer, nil
	}
	return l.docs[ranked[0].idx].text, nil
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(tok) > 1 {
			out[tok] = struct{}{}
		}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
