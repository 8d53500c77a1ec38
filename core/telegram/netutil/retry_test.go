package netutil

import (
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

type timeout struct{}

func (timeout) Error() string   { return "timeout" }
func (timeout) Timeout() bool   { return true }
func (timeout) Temporary() bool { return false }

func TestShouldRetry(t *testing.T) {
	retry := []error{
		timeout{},
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
		&url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeout{}},
		&tele.Error{Code: 502, Description: "Bad Gateway"},
		tele.FloodError{RetryAfter: 3},
	}
	for _, err := range retry {
		assert.True(t, ShouldRetry(err), "%v", err)
	}

	final := []error{
		nil,
		errors.New("boom"),
		&tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"},
		&url.Error{Op: "Post", URL: "https://api.telegram.org", Err: errors.New("bad request")},
	}
	for _, err := range final {
		assert.False(t, ShouldRetry(err), "%v", err)
	}
}

func TestRetryAfter(t *testing.T) {
	d, ok := RetryAfter(tele.FloodError{RetryAfter: 3})
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	_, ok = RetryAfter(errors.New("x"))
	assert.False(t, ok)
}
