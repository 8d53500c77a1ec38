package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/shopbot/core/logger"
)

// Notifier delivers a text message to one operator.
type Notifier interface {
	Notify(ctx context.Context, operatorID int64, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, operatorID int64, text string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, operatorID int64, text string) error {
	return f(ctx, operatorID, text)
}

// DeliveryError reports a failed send to one operator.
type DeliveryError struct {
	OperatorID int64
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("checkout: deliver to operator %d: %v", e.OperatorID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Delivery is the outcome of one operator send.
type Delivery struct {
	OperatorID int64
	Duration   time.Duration
	Err        error
}

// Report summarizes a Submit call.
type Report struct {
	Deliveries []Delivery
}

// Failed returns the failed deliveries as errors.
func (r Report) Failed() []*DeliveryError {
	var out []*DeliveryError
	for _, d := range r.Deliveries {
		if d.Err != nil {
			out = append(out, &DeliveryError{OperatorID: d.OperatorID, Err: d.Err})
		}
	}
	return out
}

// Err joins every delivery failure, or returns nil.
func (r Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, f := range failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Delivered counts successful sends.
func (r Report) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err == nil {
			n++
		}
	}
	return n
}

// Config tunes a Workflow.
type Config struct {
	Operators   []int64
	Timeout     time.Duration // per operator send; 0 disables
	Concurrency int           // max parallel sends; 0 means one goroutine per operator
	// OnDelivery observes every send result. It runs on the sending goroutine.
	OnDelivery func(ctx context.Context, o Order, d Delivery)
}

// Workflow forwards orders to every configured operator.
type Workflow struct {
	notifier Notifier
	cfg      Config
}

// NewWorkflow returns a Workflow. It panics without operators since startup
// validation guarantees at least one.
func NewWorkflow(n Notifier, cfg Config) *Workflow {
	if n == nil {
		panic("checkout: nil notifier")
	}
	if len(cfg.Operators) == 0 {
		panic("checkout: no operators configured")
	}
	cfg.Operators = append([]int64(nil), cfg.Operators...)
	return &Workflow{notifier: n, cfg: cfg}
}

// Operators returns the configured operator identities.
func (w *Workflow) Operators() []int64 {
	return append([]int64(nil), w.cfg.Operators...)
}

// Submit sends one copy of the order to each operator concurrently. A
// failing operator never prevents delivery to the others; every attempt is
// reported in order of configuration.
func (w *Workflow) Submit(ctx context.Context, o Order) Report {
	text := FormatNotification(o)
	deliveries := make([]Delivery, len(w.cfg.Operators))

	var g errgroup.Group
	if w.cfg.Concurrency > 0 {
		g.SetLimit(w.cfg.Concurrency)
	}
	var hookMu sync.Mutex
	for i, op := range w.cfg.Operators {
		g.Go(func() error {
			d := w.deliver(ctx, op, text)
			deliveries[i] = d
			w.logDelivery(ctx, o, d)
			if w.cfg.OnDelivery != nil {
				hookMu.Lock()
				w.cfg.OnDelivery(ctx, o, d)
				hookMu.Unlock()
			}
			// Failures are reported, never propagated, so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()
	return Report{Deliveries: deliveries}
}

func (w *Workflow) deliver(ctx context.Context, op int64, text string) Delivery {
	sendCtx := ctx
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	err := w.notifier.Notify(sendCtx, op, text)
	return Delivery{OperatorID: op, Duration: time.Since(start), Err: err}
}

func (w *Workflow) logDelivery(ctx context.Context, o Order, d Delivery) {
	attrs := []slog.Attr{
		slog.String("order_id", o.ID),
		slog.Int64("operator_id", d.OperatorID),
		slog.Duration("dur", d.Duration),
	}
	if d.Err != nil {
		attrs = append(attrs, slog.String("status", "fail"), slog.String("err", d.Err.Error()))
		logger.Error(ctx, logger.ComponentCheckout, "checkout.delivery", attrs...)
		return
	}
	attrs = append(attrs, slog.String("status", "ok"))
	logger.Info(ctx, logger.ComponentCheckout, "checkout.delivery", attrs...)
}
