package storefront

import (
	"context"
	"fmt"

	"github.com/m3rciful/shopbot/shop/action"
	"github.com/m3rciful/shopbot/shop/checkout"
	"github.com/m3rciful/shopbot/shop/session"
)

// Request is one decoded inbound action.
type Request struct {
	Customer checkout.Customer
	Action   action.Action
}

// Handler applies an action to the caller's live session. It runs under the
// user's session lock and must not retain sess.
type Handler func(ctx context.Context, req Request, sess *session.Session) Reply

// Router maps each verb to exactly one handler.
type Router struct {
	handlers map[action.Verb]Handler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[action.Verb]Handler)}
}

// Handle registers h for verb. Registering a verb twice, or a verb outside
// the known set, is a programming error and panics.
func (r *Router) Handle(verb action.Verb, h Handler) {
	known := false
	for _, v := range action.Verbs() {
		if v == verb {
			known = true
			break
		}
	}
	if !known {
		panic(fmt.Sprintf("storefront: unknown verb %q", verb))
	}
	if _, dup := r.handlers[verb]; dup {
		panic(fmt.Sprintf("storefront: verb %q registered twice", verb))
	}
	r.handlers[verb] = h
}

// Missing lists known verbs without a handler.
func (r *Router) Missing() []action.Verb {
	var out []action.Verb
	for _, v := range action.Verbs() {
		if _, ok := r.handlers[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// Route parses token and returns its handler. The error wraps
// action.ErrUnknownAction or action.ErrMalformedAction.
func (r *Router) Route(token string) (Handler, action.Action, error) {
	a, err := action.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	h, ok := r.handlers[a.Verb()]
	if !ok {
		return nil, nil, &action.ParseError{Token: token, Reason: "no handler registered", Err: action.ErrUnknownAction}
	}
	return h, a, nil
}
