// Package sender runs outbound Bot API calls with retries, either queued on
// a worker pool or inline for callers that need the outcome.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when every queue slot is taken.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilRun = errors.New("telegram sender: nil run function")
)

// Options tunes a Dispatcher. Zero values select the defaults.
type Options struct {
	QueueSize    int           // default 256
	Workers      int           // default 4
	MaxRetries   int           // retries after the first attempt
	RetryBackoff time.Duration // first wait, grows linearly; default 2s
	MaxDuration  time.Duration // budget for all attempts of one call; default 12s
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := make([]slog.Attr, 0, 2+len(extra))
	attrs = append(attrs, slog.String("action", j.action))
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}

// Dispatcher executes Bot API calls. Transient failures (timeouts, 5xx,
// flood control) are retried; flood waits honour Telegram's retry_after.
type Dispatcher struct {
	opts Options
	jobs chan job
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
	errs atomic.Uint64
}

// NewDispatcher starts the worker pool.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		stop: make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				_ = d.execute(j)
			}
		}()
	}
	return d
}

// Enqueue hands run to the worker pool without waiting. run may be called
// more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs the call on the caller's goroutine with the same retry policy as
// queued jobs and returns the final error.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	return d.execute(job{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// ErrorCount returns the number of calls that failed after all retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		close(d.jobs)
		d.wg.Wait()
	})
}

// wait returns the pause before attempt+1.
func (d *Dispatcher) wait(attempt int, err error) time.Duration {
	delay := d.opts.RetryBackoff * time.Duration(attempt)
	if after, ok := netutil.RetryAfter(err); ok {
		delay = max(delay, after)
	}
	return delay
}

func (d *Dispatcher) execute(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	budget, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, logger.ComponentSender, "send.start", j.attrs()...)

	attempt := 0
	err := budget.Err()
	for err == nil {
		attempt++
		if err = j.run(); err == nil {
			d.logSuccess(ctx, j, attempt, time.Since(start))
			return nil
		}
		if attempt > d.opts.MaxRetries || !netutil.ShouldRetry(err) {
			break
		}

		delay := d.wait(attempt, err)
		timer := time.NewTimer(delay)
		select {
		case <-budget.Done():
			timer.Stop()
			err = budget.Err()
			continue
		case <-timer.C:
		}
		logger.Debug(ctx, logger.ComponentSender, "send.retry.backoff",
			j.attrs(slog.Int("attempt", attempt), slog.Duration("backoff", delay))...)
		err = nil
	}

	d.errs.Add(1)
	logger.Error(ctx, logger.ComponentSender, "send.fail", j.attrs(
		slog.String("status", "fail"),
		slog.String("err", Redact(err)),
		slog.String("err_code", ClassifyError(err)),
		slog.Bool("retryable", netutil.ShouldRetry(err)),
		slog.Int("attempts", attempt),
		slog.Duration("duration", time.Since(start)),
	)...)
	return err
}

func (d *Dispatcher) logSuccess(ctx context.Context, j job, attempt int, elapsed time.Duration) {
	attrs := j.attrs(slog.String("status", "ok"), slog.Duration("duration", elapsed))
	if attempt == 1 {
		logger.Debug(ctx, logger.ComponentSender, "send.success", attrs...)
		return
	}
	logger.Info(ctx, logger.ComponentSender, "send.retry.success", append(attrs, slog.Int("attempt", attempt))...)
}
