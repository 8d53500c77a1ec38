package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// UpdateClaimer marks an update id as processed. Claim returns false when
// the id was claimed before.
type UpdateClaimer interface {
	Claim(ctx context.Context, updateID int) (bool, error)
}

// DedupMiddleware drops updates Telegram delivers more than once, which
// happens after webhook timeouts and restarts. Store errors fail open: the
// update is processed rather than lost.
func DedupMiddleware(store UpdateClaimer) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			upd := c.Update()
			if store == nil || upd.ID == 0 {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			fresh, err := store.Claim(ctx, upd.ID)
			if err != nil {
				logger.Warn(ctx, logger.ComponentTelegram, "update.dedup",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				return next(c)
			}
			if !fresh {
				logger.Info(ctx, logger.ComponentTelegram, "update.dedup",
					slog.String("status", "duplicate"),
					slog.String("kind", UpdateKind(upd)),
				)
				if c.Callback() != nil {
					_ = c.Respond()
				}
				return nil
			}
			return next(c)
		}
	}
}
