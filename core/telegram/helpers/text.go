package helpers

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// MaxMessageLen is Telegram's limit on message text, in UTF-16 code units.
const MaxMessageLen = 4096

// TextLen measures s the way Telegram does, in UTF-16 code units.
func TextLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// SplitText cuts text into pieces of at most limit UTF-16 units, breaking
// after the last newline that fits and inside a line only when one line is
// longer than limit. Newlines at a cut are dropped. limit <= 0 means
// MaxMessageLen.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	var parts []string
	for TextLen(text) > limit {
		cut, lastNL, size := 0, 0, 0
		for cut < len(text) {
			r, width := utf8.DecodeRuneInString(text[cut:])
			if size+utf16.RuneLen(r) > limit {
				break
			}
			size += utf16.RuneLen(r)
			cut += width
			if r == '\n' {
				lastNL = cut
			}
		}
		if lastNL > 0 {
			cut = lastNL
		}
		if part := strings.TrimRight(text[:cut], "\n"); part != "" {
			parts = append(parts, part)
		}
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, text)
	}
	return parts
}
