package domain

import (
	"strings"
	"unicode/utf8"
)

// Content length bounds, in runes. The response bound is wider because
// generated answers routinely exceed the prompt.
const (
	MinTextRunes     = 3
	MaxTextRunes     = 4000
	MinResponseRunes = 3
	MaxResponseRunes = 8000
)

// profanity is a small deny-list applied to user-authored text. Matches are
// whole lowercase tokens, so "scunthorpe" style substrings pass.
var profanity = map[string]struct{}{
	"damn": {}, "hell": {}, "crap": {},
}

// Content is an immutable question/answer pair. A Message accumulates
// Content values as revisions; the last one is the latest.
type Content struct {
	text     string
	response string
}

// NewContent validates and builds a Content. Text is mandatory; response is
// optional and validated only when non-empty.
func NewContent(text, response string) (Content, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < MinTextRunes || n > MaxTextRunes {
		return Content{}, Validationf("content text must be between %d and %d characters, got %d",
			MinTextRunes, MaxTextRunes, n)
	}
	if containsProfanity(text) {
		return Content{}, Validationf("content text contains disallowed language")
	}
	if response != "" {
		if n := utf8.RuneCountInString(response); n < MinResponseRunes || n > MaxResponseRunes {
			return Content{}, Validationf("content response must be between %d and %d characters, got %d",
				MinResponseRunes, MaxResponseRunes, n)
		}
	}
	return Content{text: text, response: response}, nil
}

// RehydrateContent rebuilds a Content from persisted state without
// re-running validation: stored rows passed the rules in force when they
// were written. The repository is the only intended caller.
func RehydrateContent(text, response string) Content {
	return Content{text: text, response: response}
}

// Text returns the user-authored text.
func (c Content) Text() string { return c.text }

// Response returns the generated answer, or "" when none was produced.
func (c Content) Response() string { return c.response }

// HasResponse reports whether a generated answer is attached.
func (c Content) HasResponse() bool { return c.response != "" }

func containsProfanity(text string) bool {
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if _, ok := profanity[tok]; ok {
			return true
		}
	}
	return false
}
