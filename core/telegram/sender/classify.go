package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

var (
	tokenRe      = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
	trailingCode = regexp.MustCompile(`\((\d{3})\)\s*$`)
)

// errorClasses are tried in order; the first match labels the error.
var errorClasses = []struct {
	label string
	match func(error) bool
}{
	{"timeout", isTimeout},
	{"dns", isDNS},
	{"dial", isDial},
	{"tls", isTLS},
	{"flood", func(err error) bool { return statusOf(err) == http.StatusTooManyRequests }},
	{"forbidden", func(err error) bool { return statusOf(err) == http.StatusForbidden }},
	{"http_5xx", func(err error) bool { return statusOf(err) >= 500 }},
	{"http_4xx", func(err error) bool { return statusOf(err) >= 400 }},
}

// ClassifyError labels a send error for logs: "timeout", "dns", "dial",
// "tls", "flood", "forbidden" (the operator blocked the bot), "http_5xx",
// "http_4xx" or "unknown". nil yields "".
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorClasses {
		if c.match(err) {
			return c.label
		}
	}
	return "unknown"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNS(err error) bool {
	var e *net.DNSError
	return errors.As(err, &e)
}

func isDial(err error) bool {
	var e *net.OpError
	return errors.As(err, &e) && e.Op == "dial"
}

func isTLS(err error) bool {
	var e tls.AlertError
	return errors.As(err, &e)
}

// statusOf returns the Bot API status carried by err, falling back to a
// trailing "(NNN)" in the message.
func statusOf(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return http.StatusBadRequest
	}
	if m := trailingCode.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// Redact renders err with any bot token masked.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
