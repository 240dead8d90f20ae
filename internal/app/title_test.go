package app

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

func TestAutoTitle(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"simple", "what were q2 revenues", "What Were Q2 Revenues"},
		{"collapses whitespace", "  hello   there\n friend ", "Hello There Friend"},
		{"empty", "   ", ""},
		{"lowercases first", "SHOUTING ALL CAPS", "Shouting All Caps"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := autoTitle(tc.prompt); got != tc.want {
				t.Fatalf("autoTitle(%q) = %q, want %q", tc.prompt, got, tc.want)
			}
		})
	}
}

func TestAutoTitle_ClipsAtWordBoundary(t *testing.T) {
	long := strings.Repeat("reasonably ", 12) // well past the clip length
	got := autoTitle(long)
	if utf8.RuneCountInString(got) > autoTitleMaxRunes {
		t.Fatalf("title length = %d runes, want <= %d", utf8.RuneCountInString(got), autoTitleMaxRunes)
	}
	if strings.HasSuffix(got, " ") || strings.Contains(got, "Reasonabl ") {
		t.Fatalf("clip broke a word: %q", got)
	}
}

func TestIsPlaceholderTitle(t *testing.T) {
	if !isPlaceholderTitle(domain.DefaultTitle) || !isPlaceholderTitle("") || !isPlaceholderTitle("  Untitled  ") {
		t.Fatal("placeholder titles not recognized")
	}
	if isPlaceholderTitle("Quarterly numbers") {
		t.Fatal("real title treated as placeholder")
	}
}
