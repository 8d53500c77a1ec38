package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/shopbot/core/telegram"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/sender"
	"github.com/m3rciful/shopbot/shop/action"
	"github.com/m3rciful/shopbot/shop/checkout"
	"github.com/m3rciful/shopbot/shop/render"
	"github.com/m3rciful/shopbot/shop/storefront"
)

type stubEngine struct {
	tokens   []string
	texts    []string
	awaiting bool
	reply    storefront.Reply
}

func (e *stubEngine) Start(_ context.Context, _ checkout.Customer) storefront.Reply {
	e.tokens = append(e.tokens, "start")
	return e.reply
}

func (e *stubEngine) HandleAction(_ context.Context, _ checkout.Customer, token string) storefront.Reply {
	e.tokens = append(e.tokens, token)
	return e.reply
}

func (e *stubEngine) HandleText(_ context.Context, _ checkout.Customer, text string) (storefront.Reply, bool) {
	if !e.awaiting {
		return storefront.Reply{}, false
	}
	e.texts = append(e.texts, text)
	return e.reply, true
}

func (e *stubEngine) AwaitingText(int64) bool { return e.awaiting }

type fakeContext struct {
	tele.Context
	upd     tele.Update
	store   map[string]any
	toasts  []string
	edited  []string
	sent    []string
	markups []*tele.ReplyMarkup
}

func callbackCtx(data string) *fakeContext {
	u := &tele.User{ID: 7, Username: "ann", FirstName: "Ann", LastName: "Lee"}
	return &fakeContext{
		upd:   tele.Update{ID: 1, Callback: &tele.Callback{Sender: u, Data: data}},
		store: map[string]any{},
	}
}

func messageCtx(text string) *fakeContext {
	u := &tele.User{ID: 7, Username: "ann"}
	return &fakeContext{
		upd:   tele.Update{ID: 2, Message: &tele.Message{Sender: u, Text: text}},
		store: map[string]any{},
	}
}

func (f *fakeContext) Update() tele.Update      { return f.upd }
func (f *fakeContext) Callback() *tele.Callback { return f.upd.Callback }
func (f *fakeContext) Chat() *tele.Chat         { return nil }
func (f *fakeContext) Get(key string) any       { return f.store[key] }
func (f *fakeContext) Set(key string, v any)    { f.store[key] = v }

func (f *fakeContext) Sender() *tele.User {
	if f.upd.Callback != nil {
		return f.upd.Callback.Sender
	}
	return f.upd.Message.Sender
}

func (f *fakeContext) Text() string {
	if f.upd.Message != nil {
		return f.upd.Message.Text
	}
	return ""
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	text := ""
	if len(resp) > 0 {
		text = resp[0].Text
	}
	f.toasts = append(f.toasts, text)
	return nil
}

func (f *fakeContext) EditOrSend(what any, opts ...any) error {
	f.edited = append(f.edited, fmt.Sprint(what))
	f.record(opts)
	return nil
}

func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, fmt.Sprint(what))
	f.record(opts)
	return nil
}

func (f *fakeContext) record(opts []any) {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.markups = append(f.markups, so.ReplyMarkup)
		}
	}
}

var cartReply = storefront.Reply{
	Screen: render.Screen{
		Text: "Your cart",
		Buttons: []render.Button{
			{Label: "Checkout", Token: "checkout"},
			{Label: "Contact", URL: "https://t.me/shop"},
		},
	},
	Notice:  render.NoticeAdded,
	Outcome: storefront.OutcomeOK,
}

func TestRegisterWiresEveryVerb(t *testing.T) {
	reg := tg.NewRegistry()
	b := New(&stubEngine{})
	require.NoError(t, b.Register(reg))

	var want []string
	for _, v := range action.Verbs() {
		want = append(want, string(v))
	}
	assert.ElementsMatch(t, want, reg.ListCallbacks())
	assert.Equal(t, []string{"/cart", "/help", "/start"}, reg.CommandNames())
	assert.NotEmpty(t, b.Routes(reg))
}

func TestCallbackEditsMessageWithToast(t *testing.T) {
	eng := &stubEngine{reply: cartReply}
	b := New(eng)
	c := callbackCtx("add:liquids:0")

	require.NoError(t, b.onCallback(c))

	assert.Equal(t, []string{"add:liquids:0"}, eng.tokens)
	assert.Equal(t, []string{render.NoticeAdded}, c.toasts)
	assert.Equal(t, []string{"Your cart"}, c.edited)
	require.Len(t, c.markups, 1)
	rows := c.markups[0].InlineKeyboard
	require.Len(t, rows, 2)
	assert.Equal(t, "checkout", rows[0][0].Data)
	assert.Equal(t, "https://t.me/shop", rows[1][0].URL)
	assert.Empty(t, rows[1][0].Data)
	assert.Equal(t, "ok", c.store["outcome"])
}

func TestUnknownVerbReachesEngine(t *testing.T) {
	eng := &stubEngine{reply: storefront.Reply{Screen: render.Screen{Text: "fallback"}, Outcome: storefront.OutcomeUnknown}}
	reg := tg.NewRegistry()
	require.NoError(t, New(eng).Register(reg))

	c := callbackCtx("frobnicate:1")
	require.NoError(t, reg.CallbackNotFound()(c))
	assert.Equal(t, []string{"frobnicate:1"}, eng.tokens)
	assert.Equal(t, []string{"fallback"}, c.edited)
	assert.Equal(t, "unknown", c.store["outcome"])
}

func TestCommandSendsNewMessageLedByNotice(t *testing.T) {
	eng := &stubEngine{reply: cartReply}
	c := messageCtx("/cart")

	require.NoError(t, New(eng).onCart(c))
	assert.Equal(t, []string{action.Cart{}.Token()}, eng.tokens)
	assert.Equal(t, []string{render.NoticeAdded + "\n\nYour cart"}, c.sent)
	assert.Empty(t, c.toasts)
}

func TestPromptedTextIsHandled(t *testing.T) {
	eng := &stubEngine{awaiting: true, reply: storefront.Reply{Screen: render.Screen{Text: "Locality set"}}}
	b := New(eng)
	c := messageCtx("Tallinn")

	assert.True(t, b.AwaitingText(7))
	require.NoError(t, b.HandleText(c))
	assert.Equal(t, []string{"Tallinn"}, eng.texts)
	assert.Equal(t, []string{"Locality set"}, c.sent)
}

func TestStrayTextIsDropped(t *testing.T) {
	eng := &stubEngine{}
	c := messageCtx("hello")

	require.NoError(t, New(eng).HandleText(c))
	assert.Empty(t, c.sent)
	assert.Equal(t, "unknown", c.store["outcome"])
}

func TestMarkupWithoutButtons(t *testing.T) {
	assert.Nil(t, Markup(render.Screen{Text: "bare"}))
}

func TestCustomerOf(t *testing.T) {
	c := CustomerOf(&tele.User{ID: 5, Username: "bob", FirstName: "Bob"})
	assert.Equal(t, checkout.Customer{ID: 5, Handle: "bob", Name: "Bob"}, c)
	assert.Equal(t, checkout.Customer{}, CustomerOf(nil))
}

func TestOperatorsRequireRuntime(t *testing.T) {
	var ops Operators
	assert.ErrorIs(t, ops.Notify(context.Background(), 1, "order"), ErrNotStarted)
}

func TestOperatorsSendThroughDispatcher(t *testing.T) {
	var (
		mu    sync.Mutex
		chats []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		chats = append(chats, fmt.Sprint(body["chat_id"]))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":42}}}`))
	}))
	defer srv.Close()

	b, err := tele.NewBot(tele.Settings{Token: "1:test", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	disp := sender.NewDispatcher(sender.Options{Workers: 1})
	defer disp.Close()

	var ops Operators
	ops.Bind(tg.Runtime{Bot: b, Dispatcher: disp})
	require.NoError(t, ops.Notify(context.Background(), 42, "New order"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"42"}, chats)
}

func TestOperatorsSplitLongNotification(t *testing.T) {
	var (
		mu    sync.Mutex
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		texts = append(texts, fmt.Sprint(body["text"]))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":42}}}`))
	}))
	defer srv.Close()

	b, err := tele.NewBot(tele.Settings{Token: "1:test", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	var ops Operators
	ops.Bind(tg.Runtime{Bot: b})

	lines := []string{"🛒 New order"}
	for i := range 150 {
		lines = append(lines, fmt.Sprintf("%d. ELFLIQ Strawberry Ice 50mg — 18 EUR", i+1))
	}
	text := strings.Join(lines, "\n")
	require.Greater(t, tghelpers.TextLen(text), tghelpers.MaxMessageLen)

	require.NoError(t, ops.Notify(context.Background(), 42, text))

	mu.Lock()
	defer mu.Unlock()
	require.Greater(t, len(texts), 1)
	for _, part := range texts {
		assert.LessOrEqual(t, tghelpers.TextLen(part), tghelpers.MaxMessageLen)
	}
	assert.Equal(t, text, strings.Join(texts, "\n"))
}
