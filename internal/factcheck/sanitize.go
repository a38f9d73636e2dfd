package factcheck

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxInputLength is the hard character cap applied to claims and questions
// before any downstream use.
const maxInputLength = 2000

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
)

// Sanitize strips script blocks, HTML tags, and null bytes from user input
// and truncates it to the hard cap.
func Sanitize(text string) string {
	text = scriptRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\x00", "")
	if len(text) > maxInputLength {
		cut := maxInputLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return strings.TrimSpace(text)
}
