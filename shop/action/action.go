// Package action defines the callback tokens exchanged between rendered menus
// and inbound button presses.
//
// A token is either a bare verb ("cart") or a verb followed by ':'-separated
// arguments ("add:liquids/elf:0"). Catalog paths inside arguments are keys
// joined with '/'. Parse turns a token into one of the concrete Action types
// below; every Action renders back to the token it was parsed from.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxTokenLen is the Telegram limit for inline button callback data, in bytes.
const MaxTokenLen = 64

const (
	argSep  = ":"
	pathSep = "/"
)

// Verb names the handler a token is routed to.
type Verb string

const (
	VerbStart             Verb = "start"
	VerbHome              Verb = "home"
	VerbNavigate          Verb = "navigate"
	VerbLocalities        Verb = "localities"
	VerbAdd               Verb = "add"
	VerbCart              Verb = "cart"
	VerbClearCart         Verb = "clear_cart"
	VerbCheckout          Verb = "checkout"
	VerbSetLocality       Verb = "set_locality"
	VerbAwaitLocalityText Verb = "await_locality_text"
)

var verbs = []Verb{
	VerbStart,
	VerbHome,
	VerbNavigate,
	VerbLocalities,
	VerbAdd,
	VerbCart,
	VerbClearCart,
	VerbCheckout,
	VerbSetLocality,
	VerbAwaitLocalityText,
}

// Verbs returns the closed set of known verbs in a stable order.
func Verbs() []Verb {
	return append([]Verb(nil), verbs...)
}

var (
	// ErrUnknownAction is returned for tokens whose verb is not in the known set.
	ErrUnknownAction = errors.New("action: unknown verb")
	// ErrMalformedAction is returned when a known verb carries invalid arguments.
	ErrMalformedAction = errors.New("action: malformed arguments")
)

// ParseError describes why a token was rejected.
type ParseError struct {
	Token  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q: %s", e.Err, e.Token, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Action is a parsed token. The concrete type identifies the verb.
type Action interface {
	Verb() Verb
	Token() string
}

// Start resets the session and shows the welcome screen.
type Start struct{}

// Home shows the welcome screen without touching the cart.
type Home struct{}

// Navigate opens the catalog node at Path; an empty path is the catalog root.
type Navigate struct{ Path []string }

// Localities opens the locality picker.
type Localities struct{}

// Add puts the Index-th product of the leaf node at Path into the cart.
type Add struct {
	Path  []string
	Index int
}

// Cart shows the cart.
type Cart struct{}

// ClearCart empties the cart.
type ClearCart struct{}

// Checkout submits the cart as an order.
type Checkout struct{}

// SetLocality records one of the catalog's predefined localities.
type SetLocality struct{ Key string }

// AwaitLocalityText asks the user to type a locality name.
type AwaitLocalityText struct{}

func (Start) Verb() Verb             { return VerbStart }
func (Home) Verb() Verb              { return VerbHome }
func (Navigate) Verb() Verb          { return VerbNavigate }
func (Localities) Verb() Verb        { return VerbLocalities }
func (Add) Verb() Verb               { return VerbAdd }
func (Cart) Verb() Verb              { return VerbCart }
func (ClearCart) Verb() Verb         { return VerbClearCart }
func (Checkout) Verb() Verb          { return VerbCheckout }
func (SetLocality) Verb() Verb       { return VerbSetLocality }
func (AwaitLocalityText) Verb() Verb { return VerbAwaitLocalityText }

func (Start) Token() string             { return string(VerbStart) }
func (Home) Token() string              { return string(VerbHome) }
func (Localities) Token() string        { return string(VerbLocalities) }
func (Cart) Token() string              { return string(VerbCart) }
func (ClearCart) Token() string         { return string(VerbClearCart) }
func (Checkout) Token() string          { return string(VerbCheckout) }
func (AwaitLocalityText) Token() string { return string(VerbAwaitLocalityText) }

func (a Navigate) Token() string {
	if len(a.Path) == 0 {
		return string(VerbNavigate)
	}
	return join(VerbNavigate, JoinPath(a.Path))
}

func (a Add) Token() string {
	return join(VerbAdd, JoinPath(a.Path), strconv.Itoa(a.Index))
}

func (a SetLocality) Token() string {
	return join(VerbSetLocality, a.Key)
}

func join(v Verb, args ...string) string {
	return string(v) + argSep + strings.Join(args, argSep)
}

// JoinPath encodes catalog keys for use inside a token.
func JoinPath(path []string) string {
	return strings.Join(path, pathSep)
}

// SplitPath decodes a path argument. The empty string is the root path.
func SplitPath(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, pathSep)
}

// Parse decodes a token into its Action. Only the first segment selects the
// verb; the remaining segments are validated by the verb's own grammar.
func Parse(token string) (Action, error) {
	parts := strings.Split(token, argSep)
	verb, args := Verb(parts[0]), parts[1:]

	switch verb {
	case VerbStart:
		return noArgs(token, args, Start{})
	case VerbHome:
		return noArgs(token, args, Home{})
	case VerbLocalities:
		return noArgs(token, args, Localities{})
	case VerbCart:
		return noArgs(token, args, Cart{})
	case VerbClearCart:
		return noArgs(token, args, ClearCart{})
	case VerbCheckout:
		return noArgs(token, args, Checkout{})
	case VerbAwaitLocalityText:
		return noArgs(token, args, AwaitLocalityText{})
	case VerbNavigate:
		if len(args) == 0 {
			return Navigate{}, nil
		}
		if len(args) != 1 {
			return nil, malformed(token, "navigate takes a single path")
		}
		path, err := parsePath(args[0])
		if err != nil {
			return nil, malformed(token, err.Error())
		}
		return Navigate{Path: path}, nil
	case VerbAdd:
		if len(args) != 2 {
			return nil, malformed(token, "add takes a path and an item index")
		}
		path, err := parsePath(args[0])
		if err != nil || len(path) == 0 {
			return nil, malformed(token, "add needs a non-empty path")
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil || idx < 0 {
			return nil, malformed(token, "item index must be a non-negative integer")
		}
		return Add{Path: path, Index: idx}, nil
	case VerbSetLocality:
		if len(args) != 1 || args[0] == "" {
			return nil, malformed(token, "set_locality takes a locality key")
		}
		return SetLocality{Key: args[0]}, nil
	}
	return nil, &ParseError{Token: token, Reason: "verb not recognized", Err: ErrUnknownAction}
}

func noArgs(token string, args []string, a Action) (Action, error) {
	if len(args) > 0 {
		return nil, malformed(token, string(a.Verb())+" takes no arguments")
	}
	return a, nil
}

func parsePath(s string) ([]string, error) {
	path := SplitPath(s)
	for _, key := range path {
		if key == "" {
			return nil, errors.New("empty path segment")
		}
	}
	return path, nil
}

func malformed(token, reason string) error {
	return &ParseError{Token: token, Reason: reason, Err: ErrMalformedAction}
}
