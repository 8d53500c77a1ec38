package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrInvalidRoute rejects a registration with an empty key, no handler
	// or, for commands, no description or leading slash.
	ErrInvalidRoute = errors.New("telegram: invalid route")
	// ErrDuplicateRoute rejects a key or alias that is already taken.
	ErrDuplicateRoute = errors.New("telegram: duplicate route")
)

// Registry maps slash commands and callback keys to handlers. It is filled
// before polling starts and read concurrently afterwards.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	aliases          map[string]string
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry returns an empty Registry whose unknown-callback handler
// answers with a short toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func rejectRoute(event, key string, err error) error {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event,
		slog.String("status", "skip"),
		slog.String("key", key),
		slog.String("err", err.Error()),
	)
	return err
}

// RegisterCommand adds name ("/start") and its aliases.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 || cmd.Handler == nil || cmd.Description == "" {
		return rejectRoute("register.command", name, fmt.Errorf("%w: command %q", ErrInvalidRoute, name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	keys := []string{name}
	for _, alias := range cmd.Aliases {
		keys = append(keys, "/"+strings.TrimPrefix(alias, "/"))
	}
	for _, k := range keys {
		if _, taken := r.commands[k]; taken {
			return rejectRoute("register.command", name, fmt.Errorf("%w: command %q", ErrDuplicateRoute, k))
		}
		if _, taken := r.aliases[k]; taken {
			return rejectRoute("register.command", name, fmt.Errorf("%w: command %q", ErrDuplicateRoute, k))
		}
	}
	r.commands[name] = cmd
	for _, k := range keys[1:] {
		r.aliases[k] = name
	}
	return nil
}

// Command returns the command registered under name.
func (r *Registry) Command(name string) (commands.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// CommandNames returns registered command names in sorted order.
func (r *Registry) CommandNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.commands))
}

// ListCommands returns the menu entries without the leading slash, the
// form setMyCommands expects. Hidden commands are dropped when visibleOnly.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for _, name := range r.CommandNames() {
		cmd, _ := r.Command(name)
		if visibleOnly && cmd.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: name[1:], Description: cmd.Description})
	}
	return list
}

// LookupCommand resolves the first word of text to a command, following
// aliases and ignoring a "@botname" suffix.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	word, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	word, _, _ = strings.Cut(word, "@")
	if !strings.HasPrefix(word, "/") || len(word) < 2 {
		return "", commands.Command{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[word]; ok {
		word = canonical
	}
	cmd, ok := r.commands[word]
	if !ok {
		return "", commands.Command{}, false
	}
	return word, cmd, true
}

// RegisterCallback binds key, the part of callback data before the first
// ':', to handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return rejectRoute("register.callback", key, fmt.Errorf("%w: callback %q", ErrInvalidRoute, key))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.callbacks[key]; taken {
		return rejectRoute("register.callback", key, fmt.Errorf("%w: callback %q", ErrDuplicateRoute, key))
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for unregistered keys. nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unregistered keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// InitBotCommands publishes the visible commands as the Telegram menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if len(list) == 0 {
		return
	}
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
