package storefront

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/shop/action"
	"github.com/m3rciful/shopbot/shop/cart"
	"github.com/m3rciful/shopbot/shop/checkout"
	"github.com/m3rciful/shopbot/shop/render"
	"github.com/m3rciful/shopbot/shop/session"
)

// maxLocalityLen bounds typed locality names, in runes.
const maxLocalityLen = 64

func (e *Engine) register() {
	e.router.Handle(action.VerbStart, e.start)
	e.router.Handle(action.VerbHome, e.home)
	e.router.Handle(action.VerbNavigate, e.navigate)
	e.router.Handle(action.VerbLocalities, e.localities)
	e.router.Handle(action.VerbAdd, e.add)
	e.router.Handle(action.VerbCart, e.showCart)
	e.router.Handle(action.VerbClearCart, e.clearCart)
	e.router.Handle(action.VerbCheckout, e.submit)
	e.router.Handle(action.VerbSetLocality, e.setLocality)
	e.router.Handle(action.VerbAwaitLocalityText, e.awaitLocality)

	e.text[session.PromptLocality] = e.typedLocality
}

func (e *Engine) start(_ context.Context, _ Request, sess *session.Session) Reply {
	sess.Clear()
	return Reply{Screen: e.render.Welcome(*sess)}
}

func (e *Engine) home(_ context.Context, _ Request, sess *session.Session) Reply {
	sess.Path = nil
	return Reply{Screen: e.render.Welcome(*sess)}
}

func (e *Engine) navigate(ctx context.Context, req Request, sess *session.Session) Reply {
	path := req.Action.(action.Navigate).Path
	node, err := e.cat.Lookup(path)
	if err != nil {
		return e.notFound(ctx, req, sess)
	}
	sess.Path = slices.Clone(path)
	return Reply{Screen: e.render.Node(sess.Path, node, *sess)}
}

func (e *Engine) localities(_ context.Context, _ Request, sess *session.Session) Reply {
	return Reply{Screen: e.render.Localities(*sess)}
}

func (e *Engine) add(ctx context.Context, req Request, sess *session.Session) Reply {
	a := req.Action.(action.Add)
	p, err := e.cat.Product(a.Path, a.Index)
	if err != nil {
		return e.notFound(ctx, req, sess)
	}
	if cart.Full(sess) {
		return Reply{Screen: e.render.Cart(*sess), Notice: render.NoticeCartFull, Outcome: OutcomeCartFull}
	}
	cart.Add(sess, p)
	sess.Path = slices.Clone(a.Path)
	return Reply{Screen: e.render.Cart(*sess), Notice: render.NoticeAdded}
}

func (e *Engine) showCart(_ context.Context, _ Request, sess *session.Session) Reply {
	return Reply{Screen: e.render.Cart(*sess)}
}

func (e *Engine) clearCart(_ context.Context, _ Request, sess *session.Session) Reply {
	cart.Clear(sess)
	return Reply{Screen: e.render.Cart(*sess), Notice: render.NoticeCartCleared}
}

// submit is the checkout transition. It runs under the user's session lock,
// so a repeated press observes the already reset cart.
func (e *Engine) submit(ctx context.Context, req Request, sess *session.Session) Reply {
	if cart.IsEmpty(sess) {
		return Reply{Screen: e.render.Cart(*sess), Notice: render.NoticeCartEmpty, Outcome: OutcomeEmptyCart}
	}
	if len(e.cat.Localities) > 0 && sess.Locality() == "" {
		return Reply{Screen: e.render.Localities(*sess), Notice: render.NoticePickLocality, Outcome: OutcomeLocalityRequired}
	}

	started := time.Now()
	order, err := checkout.BuildOrder(req.Customer, *sess, e.render.LocalityTitle(sess.Locality()), e.render.Currency(), e.now())
	if err != nil {
		return Reply{Screen: e.render.Cart(*sess), Notice: render.NoticeCartEmpty, Outcome: OutcomeEmptyCart}
	}
	report := e.checkout.Submit(ctx, order)
	sess.Clear()

	failed := len(report.Failed())
	logger.Info(ctx, logger.ComponentCheckout, "checkout.completed",
		slog.String("order_id", order.ID),
		slog.Int("items", len(order.Items)),
		slog.String("total", order.Total.String()),
		slog.Int("delivered", report.Delivered()),
		slog.Int("failed", failed),
	)
	if failed > 0 && failed == len(report.Deliveries) {
		logger.Error(ctx, logger.ComponentCheckout, "checkout.undelivered",
			slog.String("order_id", order.ID),
			slog.String("err", report.Err().Error()),
		)
	}
	e.observer.CheckoutFinished(string(OutcomeCompleted), time.Since(started))

	return Reply{
		Screen:  e.render.Confirmation(order.ID, len(order.Items), order.Total),
		Outcome: OutcomeCompleted,
		Order:   &order,
		Report:  &report,
	}
}

func (e *Engine) setLocality(_ context.Context, req Request, sess *session.Session) Reply {
	key := req.Action.(action.SetLocality).Key
	if _, ok := e.cat.Locality(key); !ok {
		return Reply{Screen: e.render.Localities(*sess), Notice: render.NoticeNotFound, Outcome: OutcomeNotFound}
	}
	sess.SetExtra(session.ExtraLocality, key)
	return e.afterLocality(sess)
}

func (e *Engine) awaitLocality(_ context.Context, _ Request, sess *session.Session) Reply {
	sess.Awaiting = session.PromptLocality
	return Reply{Screen: e.render.LocalityPrompt()}
}

func (e *Engine) typedLocality(_ context.Context, _ checkout.Customer, text string, sess *session.Session) Reply {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return Reply{Screen: e.render.LocalityPrompt(), Notice: render.NoticeLocalityEmpty, Outcome: OutcomeInvalidInput}
	}
	if utf8.RuneCountInString(text) > maxLocalityLen {
		text = string([]rune(text)[:maxLocalityLen])
	}
	sess.Awaiting = session.PromptNone
	sess.SetExtra(session.ExtraLocality, text)
	return e.afterLocality(sess)
}

// afterLocality returns to the cart when there is something to check out,
// otherwise to the welcome screen.
func (e *Engine) afterLocality(sess *session.Session) Reply {
	if cart.IsEmpty(sess) {
		return Reply{Screen: e.render.Welcome(*sess)}
	}
	return Reply{Screen: e.render.Cart(*sess)}
}

// notFound handles a stale path or product index by moving the user back to
// the catalog root. The cart is left alone.
func (e *Engine) notFound(ctx context.Context, req Request, sess *session.Session) Reply {
	logger.Info(ctx, logger.ComponentShop, "action.stale",
		slog.String("verb", string(req.Action.Verb())),
		slog.String("token", req.Action.Token()),
	)
	sess.Path = nil
	return Reply{
		Screen:  e.render.Node(nil, e.cat.Root(), *sess),
		Notice:  render.NoticeNotFound,
		Outcome: OutcomeNotFound,
	}
}
