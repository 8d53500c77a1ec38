package telegram

import (
	"github.com/m3rciful/shopbot/core/telegram/middleware"
)

// MiddlewareOptions selects the optional parts of the default chain.
type MiddlewareOptions struct {
	// Dedup drops redelivered updates; nil disables de-duplication.
	Dedup middleware.UpdateClaimer
	// Updates observes every handled update; nil disables it.
	Updates middleware.UpdateObserver
}

// DefaultMiddlewares builds the shared middleware chain: panic recovery,
// update de-duplication, logging context and message counters.
func DefaultMiddlewares(opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if opts.Dedup != nil {
		mws = append(mws, Middleware{Name: "dedup", Use: middleware.DedupMiddleware(opts.Dedup)})
	}
	mws = append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware(opts.Updates)})
	return mws
}
