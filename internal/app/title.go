package app

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// Placeholder titles eligible for auto-generation from the first message.
var placeholderTitles = map[string]struct{}{
	domain.DefaultTitle: {},
	"Untitled":          {},
	"":                  {},
}

const autoTitleMaxRunes = 60

var titleCaser = cases.Title(language.English)

// autoTitle derives a short title from the first user prompt: leading words
// title-cased and clipped at a word boundary. An unusable prompt yields "".
func autoTitle(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}
	prompt = strings.Join(strings.Fields(prompt), " ")
	if utf8.RuneCountInString(prompt) > autoTitleMaxRunes {
		runes := []rune(prompt)[:autoTitleMaxRunes]
		clipped := string(runes)
		if i := strings.LastIndex(clipped, " "); i > 0 {
			clipped = clipped[:i]
		}
		prompt = clipped
	}
	return titleCaser.String(strings.ToLower(prompt))
}

// isPlaceholderTitle reports whether the title is eligible for replacement.
func isPlaceholderTitle(title string) bool {
	_, ok := placeholderTitles[strings.TrimSpace(title)]
	return ok
}
