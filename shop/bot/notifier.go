package bot

import (
	"context"
	"errors"
	"sync/atomic"

	tg "github.com/m3rciful/shopbot/core/telegram"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrNotStarted is returned by Operators before the bot runtime is bound.
var ErrNotStarted = errors.New("bot: runtime not started")

// Operators sends order notifications to operator chats. The checkout
// workflow is built before the bot exists, so the runtime is bound later
// from the start hook.
type Operators struct {
	rt atomic.Pointer[tg.Runtime]
}

// Bind attaches the running bot and its dispatcher.
func (o *Operators) Bind(rt tg.Runtime) {
	o.rt.Store(&rt)
}

// Notify implements checkout.Notifier. Text longer than one Telegram
// message goes out as several messages in order; the first failed part
// fails the delivery. Each part is sent through the runtime's dispatcher.
func (o *Operators) Notify(ctx context.Context, operatorID int64, text string) error {
	rt := o.rt.Load()
	if rt == nil || rt.Bot == nil {
		return ErrNotStarted
	}
	for _, part := range tghelpers.SplitText(text, tghelpers.MaxMessageLen) {
		run := func() error {
			_, err := rt.Bot.Send(tele.ChatID(operatorID), part, &tele.SendOptions{DisableWebPagePreview: true})
			return err
		}
		var err error
		if rt.Dispatcher == nil {
			err = run()
		} else {
			err = rt.Dispatcher.Do(ctx, "notify.operator", "sendMessage", run)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
