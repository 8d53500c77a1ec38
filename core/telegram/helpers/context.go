package helpers

import (
	"context"

	"github.com/m3rciful/shopbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Keys under which the update scope is cached on tele.Context.
const (
	KeyContext = "shopbot.ctx"
	KeyRID     = "rid"
)

// BuildContext returns the logging context of the update behind c: its
// correlation id, update/user/chat ids and the telegram component logger.
// The first call caches the result on c so every later layer shares it.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(KeyContext).(context.Context); ok {
		return ctx
	}

	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID
	rid := logger.BuildRID(updateID, chatID, userID)

	ctx := logger.WithRID(logger.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component(logger.ComponentTelegram))
	c.Set(KeyRID, rid)
	c.Set(KeyContext, ctx)
	return ctx
}

// WithHandler tags the cached context with the route name and returns it.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(KeyContext, ctx)
	return ctx
}
