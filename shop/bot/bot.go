// Package bot adapts the storefront engine to Telegram: commands, callback
// tokens and prompted text go in, rendered screens come out as inline
// keyboards.
package bot

import (
	"context"
	"strings"

	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/callbacks"
	"github.com/m3rciful/shopbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/keyboard"
	"github.com/m3rciful/shopbot/core/telegram/router"
	"github.com/m3rciful/shopbot/shop/action"
	"github.com/m3rciful/shopbot/shop/checkout"
	"github.com/m3rciful/shopbot/shop/render"
	"github.com/m3rciful/shopbot/shop/storefront"

	tele "gopkg.in/telebot.v4"
)

// Engine is the part of storefront.Engine the bot drives.
type Engine interface {
	Start(ctx context.Context, c checkout.Customer) storefront.Reply
	HandleAction(ctx context.Context, c checkout.Customer, token string) storefront.Reply
	HandleText(ctx context.Context, c checkout.Customer, text string) (storefront.Reply, bool)
	AwaitingText(userID int64) bool
}

const helpText = "Use the buttons to browse the catalog and add products to your cart.\n" +
	"/start opens the catalog from the top and empties the cart.\n" +
	"/cart shows what you have picked so far."

// Bot handles Telegram updates for one engine.
type Bot struct {
	engine Engine
}

// New returns a Bot driving engine.
func New(engine Engine) *Bot {
	return &Bot{engine: engine}
}

// Register adds the shop commands and one callback per verb to reg. Tokens
// with an unknown verb reach the engine through the not-found handler so
// they get the fallback screen.
func (b *Bot) Register(reg *tg.Registry) error {
	menu := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: b.onStart, Description: "Open the catalog"}},
		{"/cart", commands.Command{Handler: b.onCart, Description: "Show your cart"}},
		{"/help", commands.Command{Handler: b.onHelp, Description: "How to order"}},
	}
	for _, m := range menu {
		if err := reg.RegisterCommand(m.name, m.cmd); err != nil {
			return err
		}
	}
	for _, v := range action.Verbs() {
		if err := reg.RegisterCallback(string(v), b.onCallback); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(b.onCallback)
	return nil
}

// Routes builds the bot routes for reg, with b owning prompted text.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return append(routes, router.TextRoutes(b, reg, router.TextOptions{})...)
}

// AwaitingText implements router.Prompter.
func (b *Bot) AwaitingText(userID int64) bool {
	return b.engine.AwaitingText(userID)
}

// HandleText implements router.Prompter. Text arriving after the prompt was
// cleared is dropped without a reply.
func (b *Bot) HandleText(c tele.Context) error {
	reply, ok := b.engine.HandleText(tghelpers.BuildContext(c), CustomerOf(c.Sender()), c.Text())
	if !ok {
		router.SetOutcome(c, string(storefront.OutcomeUnknown))
		return nil
	}
	return b.show(c, reply)
}

func (b *Bot) onStart(c tele.Context) error {
	return b.show(c, b.engine.Start(tghelpers.BuildContext(c), CustomerOf(c.Sender())))
}

func (b *Bot) onCart(c tele.Context) error {
	return b.show(c, b.engine.HandleAction(tghelpers.BuildContext(c), CustomerOf(c.Sender()), action.Cart{}.Token()))
}

func (b *Bot) onHelp(c tele.Context) error {
	return tghelpers.SendText(c, helpText)
}

func (b *Bot) onCallback(c tele.Context) error {
	token := callbacks.CallbackPayload(c)
	return b.show(c, b.engine.HandleAction(tghelpers.BuildContext(c), CustomerOf(c.Sender()), token))
}

// show delivers reply: callbacks edit the message they came from and get
// the notice as a toast, other updates get a new message led by the notice.
func (b *Bot) show(c tele.Context, reply storefront.Reply) error {
	router.SetOutcome(c, string(reply.Outcome))
	markup := Markup(reply.Screen)

	if c.Callback() != nil {
		if err := tghelpers.Respond(c, reply.Notice); err != nil {
			return err
		}
		return tghelpers.EditOrSend(c, reply.Screen.Text, markup)
	}

	text := reply.Screen.Text
	if reply.Notice != "" {
		text = reply.Notice + "\n\n" + text
	}
	return tghelpers.SendText(c, text, markup)
}

// Markup renders screen buttons one per row. It returns nil for a screen
// without buttons.
func Markup(s render.Screen) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(s.Buttons))
	for _, b := range s.Buttons {
		btns = append(btns, keyboard.InlineBtn{Text: b.Label, Data: b.Token, URL: b.URL})
	}
	return keyboard.InlineButtons(btns)
}

// CustomerOf maps a Telegram user onto the order identity.
func CustomerOf(u *tele.User) checkout.Customer {
	if u == nil {
		return checkout.Customer{}
	}
	return checkout.Customer{
		ID:     u.ID,
		Handle: u.Username,
		Name:   strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
}
