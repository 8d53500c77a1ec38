// Package session keeps per-user ephemeral shopping state in memory.
package session

import (
	"maps"
	"slices"
	"time"

	"github.com/m3rciful/shopbot/shop/catalog"
)

// Prompt names the free-text input a session is waiting for.
type Prompt string

const (
	// PromptNone means plain text is ignored.
	PromptNone Prompt = ""
	// PromptLocality expects a typed locality name.
	PromptLocality Prompt = "locality"
)

// Well-known keys of Session.Extra.
const (
	ExtraLocality = "locality"
)

// Session is the state of one user. Values handed out by the Store are
// private copies; mutation goes through Store.Update.
type Session struct {
	Cart     []catalog.Product
	Path     []string
	Awaiting Prompt
	Extra    map[string]string
	LastSeen time.Time
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	out := Session{
		Path:     slices.Clone(s.Path),
		Awaiting: s.Awaiting,
		Extra:    maps.Clone(s.Extra),
		LastSeen: s.LastSeen,
	}
	if s.Cart != nil {
		out.Cart = make([]catalog.Product, len(s.Cart))
		for i, p := range s.Cart {
			out.Cart[i] = p.Clone()
		}
	}
	return out
}

// Clear drops cart, path, prompt and extra facts. LastSeen is kept.
func (s *Session) Clear() {
	s.Cart = nil
	s.Path = nil
	s.Awaiting = PromptNone
	s.Extra = nil
}

// Locality returns the chosen delivery locality, if any.
func (s Session) Locality() string {
	return s.Extra[ExtraLocality]
}

// SetExtra records an auxiliary fact.
func (s *Session) SetExtra(key, value string) {
	if s.Extra == nil {
		s.Extra = make(map[string]string, 1)
	}
	s.Extra[key] = value
}
