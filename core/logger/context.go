package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	keyUpdate ctxKey = iota
	keyLogger
)

// updateScope identifies the Telegram update a context serves. It is stored
// as a single value and copied on every change.
type updateScope struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
}

func scopeOf(ctx context.Context) updateScope {
	if ctx == nil {
		return updateScope{}
	}
	s, _ := ctx.Value(keyUpdate).(updateScope)
	return s
}

func withScope(ctx context.Context, edit func(*updateScope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeOf(ctx)
	edit(&s)
	return context.WithValue(ctx, keyUpdate, s)
}

// WithLogger makes log the logger returned by FromContext. A nil log is ignored.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, keyLogger, log)
}

// FromContext returns the logger stored by WithLogger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(keyLogger).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// WithRID sets the correlation id logged as rid.
func WithRID(ctx context.Context, rid string) context.Context {
	return withScope(ctx, func(s *updateScope) { s.rid = rid })
}

// WithUpdateMeta sets the update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withScope(ctx, func(s *updateScope) {
		s.updateID = updateID
		s.userID = userID
		s.chatID = chatID
	})
}

// WithHandler names the route serving the update. An empty name keeps ctx.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withScope(ctx, func(s *updateScope) { s.handler = handler })
}

func RIDFrom(ctx context.Context) string     { return scopeOf(ctx).rid }
func HandlerFrom(ctx context.Context) string { return scopeOf(ctx).handler }
func UpdateIDFrom(ctx context.Context) int   { return scopeOf(ctx).updateID }
func UserIDFrom(ctx context.Context) int64   { return scopeOf(ctx).userID }
func ChatIDFrom(ctx context.Context) int64   { return scopeOf(ctx).chatID }
