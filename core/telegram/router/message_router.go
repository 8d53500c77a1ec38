package router

import (
	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Prompter owns free-text input for users with a pending question.
type Prompter interface {
	AwaitingText(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing. Text goes to
// the prompter when it waits for this user, then to a matching command,
// then to opts.UnknownText.
func TextRoutes(prompter Prompter, reg *tg.Registry, opts TextOptions) []tg.Route {
	awaiting := func(c tele.Context) bool {
		return prompter != nil && c.Sender() != nil && prompter.AwaitingText(c.Sender().ID)
	}

	handler := func(c tele.Context) error {
		start := timeNow()

		if awaiting(c) {
			return handleWithSummary(c, "prompt", start, "", "", func() error {
				return prompter.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "unknown", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "unknown", nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := timeNow()
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, "", "unknown", func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", "unknown", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
