package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name     string
		cb       *tele.Callback
		key, pay string
	}{
		{"nil", nil, "", ""},
		{"bare verb", &tele.Callback{Data: "cart"}, "cart", "cart"},
		{"verb with args", &tele.Callback{Data: "add:liquids/elf:0"}, "add", "add:liquids/elf:0"},
		{"telebot unique", &tele.Callback{Data: "\fconfirm|42"}, "confirm", "42"},
		{"resolved unique", &tele.Callback{Unique: "confirm", Data: "42"}, "confirm", "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.pay, payload)
		})
	}
}

func TestTokenKey(t *testing.T) {
	assert.Equal(t, "set_locality", TokenKey("set_locality:kyiv"))
	assert.Equal(t, "", TokenKey(""))
	assert.Equal(t, "frobnicate", TokenKey(" frobnicate :1"))
}
