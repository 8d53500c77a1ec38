// Package storefront is the navigation and session-state engine. It turns
// inbound action tokens and free text into session transitions and the next
// screen, independent of any chat transport.
package storefront

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/shop/action"
	"github.com/m3rciful/shopbot/shop/catalog"
	"github.com/m3rciful/shopbot/shop/checkout"
	"github.com/m3rciful/shopbot/shop/render"
	"github.com/m3rciful/shopbot/shop/session"
)

// Outcome classifies how an event was handled.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeUnknown          Outcome = "unknown"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeEmptyCart        Outcome = "empty_cart"
	OutcomeLocalityRequired Outcome = "locality_required"
	OutcomeCompleted        Outcome = "completed"
	OutcomeInvalidInput     Outcome = "invalid_input"
	OutcomeCartFull         Outcome = "cart_full"
)

// Reply is the engine's answer to one event.
type Reply struct {
	Screen  render.Screen
	Notice  string // short toast; empty when there is nothing to say
	Verb    action.Verb
	Outcome Outcome

	// Set only when an order was submitted.
	Order  *checkout.Order
	Report *checkout.Report
}

// Observer receives per-event signals, typically for metrics.
type Observer interface {
	ActionHandled(verb, outcome string)
	CheckoutFinished(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ActionHandled(string, string)          {}
func (nopObserver) CheckoutFinished(string, time.Duration) {}

// Config wires an Engine.
type Config struct {
	Catalog  *catalog.Catalog
	Sessions *session.Store
	Renderer *render.Renderer
	Checkout *checkout.Workflow
	Observer Observer
	Now      func() time.Time
}

// TextHandler consumes free text for one pending prompt.
type TextHandler func(ctx context.Context, c checkout.Customer, text string, sess *session.Session) Reply

// Engine processes events for all users. It is safe for concurrent use;
// events of one user are serialized by the session store.
type Engine struct {
	cat      *catalog.Catalog
	sessions *session.Store
	render   *render.Renderer
	checkout *checkout.Workflow
	observer Observer
	now      func() time.Time

	router *Router
	text   map[session.Prompt]TextHandler
}

// New builds an Engine with every verb registered.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, errors.New("storefront: catalog is required")
	case cfg.Sessions == nil:
		return nil, errors.New("storefront: session store is required")
	case cfg.Checkout == nil:
		return nil, errors.New("storefront: checkout workflow is required")
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.New(cfg.Catalog, render.Options{})
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{
		cat:      cfg.Catalog,
		sessions: cfg.Sessions,
		render:   cfg.Renderer,
		checkout: cfg.Checkout,
		observer: cfg.Observer,
		now:      cfg.Now,
		router:   NewRouter(),
		text:     make(map[session.Prompt]TextHandler),
	}
	e.register()
	if missing := e.router.Missing(); len(missing) > 0 {
		return nil, errors.New("storefront: verbs without handler: " + joinVerbs(missing))
	}
	return e, nil
}

// Router exposes the verb table, mainly for transports that register
// callbacks per verb.
func (e *Engine) Router() *Router { return e.router }

// Start resets the user's session and returns the welcome screen.
func (e *Engine) Start(ctx context.Context, c checkout.Customer) Reply {
	return e.HandleAction(ctx, c, action.Start{}.Token())
}

// HandleAction routes token and applies it to the caller's session. Unknown
// or malformed tokens leave the session untouched and yield the fallback
// screen.
func (e *Engine) HandleAction(ctx context.Context, c checkout.Customer, token string) Reply {
	h, a, err := e.router.Route(token)
	if err != nil {
		logger.Warn(ctx, logger.ComponentShop, "action.unknown",
			slog.String("token", logger.SanitizeLimit(token, 64)),
			slog.String("err", err.Error()),
		)
		e.observer.ActionHandled("unknown", string(OutcomeUnknown))
		return Reply{Screen: e.render.Fallback(), Notice: render.NoticeUnknown, Outcome: OutcomeUnknown}
	}

	var reply Reply
	_ = e.sessions.Update(c.ID, func(sess *session.Session) error {
		if a.Verb() != action.VerbAwaitLocalityText {
			sess.Awaiting = session.PromptNone
		}
		reply = h(ctx, Request{Customer: c, Action: a}, sess)
		return nil
	})
	reply.Verb = a.Verb()
	if reply.Outcome == "" {
		reply.Outcome = OutcomeOK
	}
	e.observer.ActionHandled(string(reply.Verb), string(reply.Outcome))
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, logger.ComponentShop, "action.handled",
			slog.String("verb", string(reply.Verb)),
			slog.String("outcome", string(reply.Outcome)),
		)
	}
	return reply
}

// HandleText feeds plain text to the pending prompt, if any. The second
// result is false when no prompt was pending and the text was dropped.
func (e *Engine) HandleText(ctx context.Context, c checkout.Customer, text string) (Reply, bool) {
	if !e.AwaitingText(c.ID) {
		return Reply{}, false
	}
	var (
		reply   Reply
		handled bool
	)
	_ = e.sessions.Update(c.ID, func(sess *session.Session) error {
		h, ok := e.text[sess.Awaiting]
		if !ok {
			// Prompt was cleared between the check and the lock.
			return nil
		}
		handled = true
		reply = h(ctx, c, text, sess)
		return nil
	})
	if !handled {
		return Reply{}, false
	}
	if reply.Outcome == "" {
		reply.Outcome = OutcomeOK
	}
	e.observer.ActionHandled("text", string(reply.Outcome))
	return reply, true
}

// AwaitingText reports whether the user has a pending free-text prompt.
func (e *Engine) AwaitingText(userID int64) bool {
	sess, ok := e.sessions.Peek(userID)
	return ok && sess.Awaiting != session.PromptNone
}

func joinVerbs(vs []action.Verb) string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}
