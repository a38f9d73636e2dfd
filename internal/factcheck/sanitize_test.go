package factcheck

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", "The act has 536 sections.", "The act has 536 sections."},
		{"script stripped", "before<script>alert('x')</script>after", "beforeafter"},
		{"script case insensitive", "a<SCRIPT src='x'>b</SCRIPT>c", "ac"},
		{"tags stripped", "<b>bold</b> and <a href='x'>link</a>", "bold and link"},
		{"nul stripped", "a\x00b", "ab"},
		{"trimmed", "  padded  ", "padded"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("a", maxInputLength+500)
	got := Sanitize(long)
	if len(got) != maxInputLength {
		t.Errorf("length = %d, want %d", len(got), maxInputLength)
	}
}

func TestSanitizeTruncatesOnRuneBoundary(t *testing.T) {
	// Devanagari runes are 3 bytes; the cap must never land mid-rune.
	long := strings.Repeat("कर", maxInputLength)
	got := Sanitize(long)
	if !utf8.ValidString(got) {
		t.Error("truncated output is not valid UTF-8")
	}
	if len(got) > maxInputLength {
		t.Errorf("length = %d, want at most %d", len(got), maxInputLength)
	}
}
