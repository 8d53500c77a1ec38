// Package callbacks extracts routing keys from inline button callback data.
//
// Two encodings reach the bot: telebot's "\f<unique>|<payload>" form and raw
// tokens of the form "<verb>[:<args>]". The routing key is the unique part or
// the verb respectively.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	uniquePrefix = "\f"
	uniqueSep    = "|"
	verbSep      = ":"
)

// ParseCallbackData splits callback data into routing key and payload.
// For raw tokens the payload is the whole token so handlers can reparse it.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := cb.Data
	if rest, ok := strings.CutPrefix(raw, uniquePrefix); ok {
		unique, payload, _ := strings.Cut(rest, uniqueSep)
		return strings.TrimSpace(unique), payload
	}
	return TokenKey(raw), raw
}

// TokenKey returns the verb of a raw token.
func TokenKey(token string) string {
	verb, _, _ := strings.Cut(token, verbSep)
	return strings.TrimSpace(verb)
}

// CallbackPayload returns the payload of the current callback.
func CallbackPayload(c tele.Context) string {
	_, p := ParseCallbackData(c.Callback())
	return p
}
