package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLenCountsUTF16Units(t *testing.T) {
	assert.Equal(t, 5, TextLen("order"))
	assert.Equal(t, 4, TextLen("🛒 a"))
	assert.Equal(t, 4, TextLen("Київ"))
}

func TestSplitTextKeepsShortText(t *testing.T) {
	assert.Equal(t, []string{"New order"}, SplitText("New order", 0))
	assert.Equal(t, []string{""}, SplitText("", 0))
}

func TestSplitTextBreaksOnLines(t *testing.T) {
	var lines []string
	for i := range 300 {
		lines = append(lines, strings.Repeat("x", 20)+" — ELFLIQ 18 EUR #"+string(rune('a'+i%26)))
	}
	text := strings.Join(lines, "\n")
	require.Greater(t, TextLen(text), MaxMessageLen)

	parts := SplitText(text, 0)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, TextLen(p), MaxMessageLen)
		assert.NotEmpty(t, p)
	}
	assert.Equal(t, text, strings.Join(parts, "\n"))
}

func TestSplitTextCutsOverlongLine(t *testing.T) {
	line := strings.Repeat("🛒", 10)
	parts := SplitText(line, 6)
	assert.Equal(t, []string{"🛒🛒🛒", "🛒🛒🛒", "🛒🛒🛒", "🛒"}, parts)
}
