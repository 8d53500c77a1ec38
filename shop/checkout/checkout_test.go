package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shopbot/shop/catalog"
	"github.com/m3rciful/shopbot/shop/session"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  map[int64][]string
	fail  map[int64]error
	block map[int64]bool
}

func newRecorder() *recordingNotifier {
	return &recordingNotifier{sent: map[int64][]string{}, fail: map[int64]error{}, block: map[int64]bool{}}
}

func (r *recordingNotifier) Notify(ctx context.Context, op int64, text string) error {
	r.mu.Lock()
	err, block := r.fail[op], r.block[op]
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.sent[op] = append(r.sent[op], text)
	r.mu.Unlock()
	return nil
}

func elfliqSession() session.Session {
	p := catalog.Product{Name: "ELFLIQ", Price: decimal.NewFromInt(18)}
	return session.Session{Cart: []catalog.Product{p, p}}
}

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func TestBuildOrderEmptyCart(t *testing.T) {
	_, err := BuildOrder(Customer{ID: 1}, session.Session{}, "", "EUR", fixedNow)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestBuildOrderSnapshotsCart(t *testing.T) {
	s := elfliqSession()
	o, err := BuildOrder(Customer{ID: 1}, s, "Kyiv", "EUR", fixedNow)
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Len(t, o.Items, 2)
	assert.True(t, decimal.NewFromInt(36).Equal(o.Total))

	s.Cart[0].Name = "changed"
	assert.Equal(t, "ELFLIQ", o.Items[0].Name)
}

func TestFormatNotification(t *testing.T) {
	o, err := BuildOrder(Customer{ID: 42, Handle: "alice", Name: "Alice Doe"}, elfliqSession(), "Kyiv", "EUR", fixedNow)
	require.NoError(t, err)

	text := FormatNotification(o)
	assert.Contains(t, text, "Order: "+o.ID)
	assert.Contains(t, text, "Customer: Alice Doe @alice (id 42)")
	assert.Contains(t, text, "Locality: Kyiv")
	assert.Contains(t, text, "1. ELFLIQ — 18 EUR")
	assert.Contains(t, text, "2. ELFLIQ — 18 EUR")
	assert.Contains(t, text, "Total: 36 EUR")
	assert.True(t, strings.HasSuffix(text, "Time: 2024-03-05 14:07:09"))
}

func TestFormatNotificationWithoutOptionalFields(t *testing.T) {
	o, err := BuildOrder(Customer{ID: 7}, elfliqSession(), "", "", fixedNow)
	require.NoError(t, err)
	text := FormatNotification(o)
	assert.Contains(t, text, "Customer: (id 7)")
	assert.NotContains(t, text, "Locality:")
	assert.Contains(t, text, "Total: 36\n")
}

func TestSubmitFansOutToEveryOperator(t *testing.T) {
	rec := newRecorder()
	var hooked []int64
	w := NewWorkflow(rec, Config{
		Operators: []int64{100, 200},
		Timeout:   time.Second,
		OnDelivery: func(_ context.Context, _ Order, d Delivery) {
			hooked = append(hooked, d.OperatorID)
		},
	})

	o, err := BuildOrder(Customer{ID: 1}, elfliqSession(), "", "EUR", fixedNow)
	require.NoError(t, err)
	rep := w.Submit(context.Background(), o)

	assert.NoError(t, rep.Err())
	assert.Equal(t, 2, rep.Delivered())
	assert.Len(t, rec.sent[100], 1)
	assert.Len(t, rec.sent[200], 1)
	assert.Equal(t, rec.sent[100][0], rec.sent[200][0])
	assert.ElementsMatch(t, []int64{100, 200}, hooked)
}

func TestSubmitIsolatesFailures(t *testing.T) {
	rec := newRecorder()
	boom := errors.New("chat not found")
	rec.fail[100] = boom
	rec.block[300] = true

	w := NewWorkflow(rec, Config{Operators: []int64{100, 200, 300}, Timeout: 50 * time.Millisecond, Concurrency: 2})
	o, err := BuildOrder(Customer{ID: 1}, elfliqSession(), "", "EUR", fixedNow)
	require.NoError(t, err)

	rep := w.Submit(context.Background(), o)
	assert.Equal(t, 1, rep.Delivered())
	assert.Len(t, rec.sent[200], 1)

	failed := rep.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, int64(100), failed[0].OperatorID)
	assert.ErrorIs(t, failed[0], boom)
	assert.Equal(t, int64(300), failed[1].OperatorID)
	assert.ErrorIs(t, failed[1], context.DeadlineExceeded)

	var derr *DeliveryError
	assert.True(t, errors.As(rep.Err(), &derr))
}

func TestNewWorkflowRequiresOperators(t *testing.T) {
	assert.Panics(t, func() { NewWorkflow(newRecorder(), Config{}) })
}
