package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopbot/core/bootstrap"
	coreconfig "github.com/m3rciful/shopbot/core/config"
	"github.com/m3rciful/shopbot/core/dedup"
	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/shop/checkout"
	"github.com/m3rciful/shopbot/shop/journal"
	"github.com/m3rciful/shopbot/shop/storefront"
)

const catalogYAML = `
title: Vape Shop
currency: EUR
localities:
  - {key: kyiv, title: Kyiv}
children:
  - key: liquids
    title: Liquids
    items:
      - {name: ELFLIQ, price: 18, attributes: {nicotine: 50mg}}
  - key: pods
    title: Pods
    children:
      - key: elfbar
        title: Elf Bar
        items:
          - {name: Elf Bar 600, price: 9.99}
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))
	return path
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "1:test"}},
		Shop: ShopConfig{
			CatalogPath: writeCatalog(t),
			OperatorIDs: []int64{101, 202},
		},
	}
	require.NoError(t, cfg.Normalize())
	return cfg
}

func noInfra(context.Context, bootstrap.Options) (*bootstrap.Result, error) {
	return &bootstrap.Result{}, nil
}

func TestShopConfigNormalize(t *testing.T) {
	s := ShopConfig{OperatorIDs: []int64{5, 3, 5}, CatalogURL: "https://t.me/shop", Currency: " uah "}
	require.NoError(t, s.Normalize())
	assert.Equal(t, []int64{3, 5}, s.OperatorIDs)
	assert.Equal(t, "https://t.me/shop", s.ContactURL)
	assert.Equal(t, "UAH", s.Currency)
	assert.Equal(t, defaultCatalogPath, s.CatalogPath)
	assert.Equal(t, 10*time.Second, s.NotifyTimeout)
	assert.Equal(t, 24*time.Hour, s.SessionIdleTTL)

	owner := ShopConfig{OwnerID: 9}
	require.NoError(t, owner.Normalize())
	assert.Equal(t, []int64{9}, owner.OperatorIDs)
}

func TestShopConfigAddsOwnerToOperators(t *testing.T) {
	s := ShopConfig{OperatorIDs: []int64{8, 7}, OwnerID: 9}
	require.NoError(t, s.Normalize())
	assert.Equal(t, []int64{7, 8, 9}, s.OperatorIDs)

	dup := ShopConfig{OperatorIDs: []int64{9, 4}, OwnerID: 9}
	require.NoError(t, dup.Normalize())
	assert.Equal(t, []int64{4, 9}, dup.OperatorIDs)

	bad := ShopConfig{OperatorIDs: []int64{4}, OwnerID: -3}
	assert.Error(t, bad.Normalize())
}

func TestShopConfigRejects(t *testing.T) {
	cases := map[string]ShopConfig{
		"no operators":      {},
		"negative operator": {OperatorIDs: []int64{-1}},
		"relative url":      {OperatorIDs: []int64{1}, ContactURL: "t.me/shop"},
		"ftp url":           {OperatorIDs: []int64{1}, ContactURL: "ftp://x.example"},
		"negative timeout":  {OperatorIDs: []int64{1}, NotifyTimeout: -time.Second},
		"negative workers":  {OperatorIDs: []int64{1}, NotifyConcurrency: -1},
		"negative idle ttl": {OperatorIDs: []int64{1}, SessionIdleTTL: -time.Minute},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Normalize())
		})
	}
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: file-token
database:
  host: db
  name: shop
shop:
  catalog_path: /srv/catalog.yaml
  operator_ids: [11]
  notify_timeout: 3s
`), 0o600))
	t.Setenv("OPERATOR_IDS", "7,8")
	t.Setenv("SESSION_IDLE_TTL", "2h")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, []int64{7, 8}, cfg.Shop.OperatorIDs)
	assert.Equal(t, 3*time.Second, cfg.Shop.NotifyTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Shop.SessionIdleTTL)
	assert.Equal(t, "/srv/catalog.yaml", cfg.Shop.CatalogPath)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestCheckCatalog(t *testing.T) {
	var out bytes.Buffer
	sum, err := CheckCatalog(writeCatalog(t), &out)
	require.NoError(t, err)
	assert.Equal(t, CatalogSummary{Title: "Vape Shop", Currency: "EUR", Categories: 1, Leaves: 2, Products: 2, Localities: 1}, sum)
	assert.Contains(t, out.String(), "products=2")

	_, err = CheckCatalog(filepath.Join(t.TempDir(), "missing.yaml"), &out)
	assert.Error(t, err)
}

func TestBootstrapWiresDefaults(t *testing.T) {
	a, err := Bootstrap(context.Background(), testConfig(t), Options{Bootstrap: noInfra})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, journal.Nop{}, a.Journal)
	assert.IsType(t, &dedup.Memory{}, a.Dedup)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	var names []string
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"recover", "logger", "dedup", "metrics"}, names)
	assert.NotEmpty(t, opts.Routes)
	assert.Same(t, a.Dispatcher, opts.Dispatcher)
	assert.Contains(t, opts.Registry.ListCallbacks(), "checkout")
}

func TestBootstrapFailsOnBadCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Shop.CatalogPath = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := Bootstrap(context.Background(), cfg, Options{Bootstrap: noInfra})
	assert.Error(t, err)
}

// fakeTelegram records sendMessage calls. flood holds, per chat, how many
// sends are rejected with 429 before one succeeds.
type fakeTelegram struct {
	mu    sync.Mutex
	sends map[string][]string
	flood map[string]int
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, "/sendMessage") {
		f.mu.Lock()
		chat := fmt.Sprint(body["chat_id"])
		if f.flood[chat] > 0 {
			f.flood[chat]--
			f.mu.Unlock()
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`))
			return
		}
		f.sends[chat] = append(f.sends[chat], fmt.Sprint(body["text"]))
		f.mu.Unlock()
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`))
}

func TestCheckoutNotifiesEveryOperator(t *testing.T) {
	fake := &fakeTelegram{sends: map[string][]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a, err := Bootstrap(context.Background(), testConfig(t), Options{Bootstrap: noInfra})
	require.NoError(t, err)

	b, err := tele.NewBot(tele.Settings{Token: "1:test", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	a.Operators.Bind(tg.Runtime{Bot: b, Dispatcher: a.Dispatcher})

	ctx := context.Background()
	buyer := checkout.Customer{ID: 7, Handle: "ann", Name: "Ann Lee"}
	for _, token := range []string{"navigate:liquids", "add:liquids:0", "add:liquids:0", "checkout", "set_locality:kyiv"} {
		a.Engine.HandleAction(ctx, buyer, token)
	}
	reply := a.Engine.HandleAction(ctx, buyer, "checkout")
	require.Equal(t, storefront.OutcomeCompleted, reply.Outcome)
	require.NotNil(t, reply.Order)
	assert.Equal(t, "36", reply.Order.Total.String())

	// A second press sees the reset cart.
	again := a.Engine.HandleAction(ctx, buyer, "checkout")
	assert.Equal(t, storefront.OutcomeEmptyCart, again.Outcome)

	require.NoError(t, a.Close())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.sends["101"], 1)
	require.Len(t, fake.sends["202"], 1)
	assert.Contains(t, fake.sends["101"][0], reply.Order.ID)

	n, err := testutil.GatherAndCount(a.Metrics.Registry(), "shopbot_order_deliveries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOperatorSendRetriesFloodControl(t *testing.T) {
	fake := &fakeTelegram{sends: map[string][]string{}, flood: map[string]int{"101": 1}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a, err := Bootstrap(context.Background(), testConfig(t), Options{Bootstrap: noInfra})
	require.NoError(t, err)

	b, err := tele.NewBot(tele.Settings{Token: "1:test", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	a.Operators.Bind(tg.Runtime{Bot: b, Dispatcher: a.Dispatcher})

	require.NoError(t, a.Operators.Notify(context.Background(), 101, "New order"))
	require.NoError(t, a.Close())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"New order"}, fake.sends["101"])
	assert.Zero(t, fake.flood["101"])
	assert.Zero(t, a.Dispatcher.ErrorCount())
}

// slowRecorder counts deliveries after a short delay.
type slowRecorder struct {
	mu    sync.Mutex
	delay time.Duration
	ids   []string
}

func (r *slowRecorder) RecordDelivery(_ context.Context, o checkout.Order, _ checkout.Delivery) error {
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, o.ID)
	return nil
}

func (r *slowRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.ids)
}

func TestCloseDrainsJournalWrites(t *testing.T) {
	a, err := Bootstrap(context.Background(), testConfig(t), Options{Bootstrap: noInfra})
	require.NoError(t, err)
	rec := &slowRecorder{delay: 50 * time.Millisecond}
	a.Journal = rec

	ctx := context.Background()
	a.recordDelivery(ctx, checkout.Order{ID: "before"}, checkout.Delivery{OperatorID: 101})
	require.NoError(t, a.Close())
	assert.Equal(t, []string{"before"}, rec.recorded())

	a.recordDelivery(ctx, checkout.Order{ID: "after"}, checkout.Delivery{OperatorID: 101})
	a.closeJournal()
	assert.Equal(t, []string{"before"}, rec.recorded())
}
