package logger

import (
	"strconv"
	"strings"
	"unicode"
)

// Sanitize drops control and format runes (Cc, Cf) from s, keeping
// newlines and tabs. Callback data and customer text pass through here
// before they reach a log line.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n', r == '\t':
			return r
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit is Sanitize truncated to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	s = Sanitize(s)
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// BuildRID formats the correlation id of an update as update:chat:user.
func BuildRID(updateID int, chatID, userID int64) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(updateID))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(chatID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(userID, 10))
	return b.String()
}

// CompactRID rewrites a BuildRID id as dot-separated base36 numbers, e.g.
// "123:456:789" becomes "3f.co.lx". Anything else is returned trimmed.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	out := make([]byte, 0, len(rid))
	rest := rid
	for i := 0; i < 3; i++ {
		part, tail, found := strings.Cut(rest, ":")
		if found == (i == 2) {
			return rid
		}
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return rid
		}
		if i > 0 {
			out = append(out, '.')
		}
		out = strconv.AppendInt(out, n, 36)
		rest = tail
	}
	return string(out)
}
