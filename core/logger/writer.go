package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// request is a line to write, or a flush barrier when ack is set.
type request struct {
	line []byte
	ack  chan error
}

// asyncWriter takes log lines off the caller's goroutine. A single loop owns
// the sinks; it flushes them whenever the queue runs dry, so bursts cost one
// syscall per sink instead of one per line. A full queue blocks callers
// rather than dropping lines.
type asyncWriter struct {
	queue chan request
	done  chan struct{}
	sinks []*bufio.Writer

	closeMu sync.RWMutex
	closed  bool

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		queue: make(chan request, 256),
		done:  make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for req := range w.queue {
		if req.ack != nil {
			req.ack <- w.flushSinks()
			continue
		}
		w.setErr(w.writeSinks(req.line))
		if len(w.queue) == 0 {
			w.setErr(w.flushSinks())
		}
	}
	w.setErr(w.flushSinks())
}

// Write queues a copy of p. The first sink error is sticky and returned by
// every later call.
func (w *asyncWriter) Write(p []byte) error {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- request{line: append([]byte(nil), p...)}
	return nil
}

// Flush blocks until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return w.firstErr()
	}
	ack := make(chan error, 1)
	w.queue <- request{ack: ack}
	if err := <-ack; err != nil {
		return err
	}
	return w.firstErr()
}

// Close drains the queue, flushes the sinks and stops the loop. It is safe
// to call more than once.
func (w *asyncWriter) Close() error {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.closeMu.Unlock()
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) writeSinks(p []byte) error {
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushSinks() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) firstErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
