package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "taskpanel/pkg/logx"
)

// Requests slower than this are logged at INFO even when they succeed.
const slowRequest = 750 * time.Millisecond

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] is the outermost layer.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// Timeout bounds the handler's context. d <= 0 means no bound.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// Recover turns a handler panic into an error.
func Recover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				requestLogger(log, req).Error("handler panicked",
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("panic: %v", r)
			}()
			return next(ctx, req)
		}
	}
}

// LogRequests logs each finished request: failures at WARN, slow ones at
// INFO, the rest at DEBUG.
func LogRequests(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			l := requestLogger(log, req).With(
				logx.String("kind", string(req.Update.Kind)),
				logx.String("cmd", req.Command),
				logx.Duration("dur", took),
			)
			switch {
			case err != nil:
				l.Warn("request failed", logx.Err(err))
			case took >= slowRequest:
				l.Info("request ok (slow)")
			default:
				l.Debug("request ok")
			}
			return err
		}
	}
}

// requestLogger prefers the request's logger, which carries the request id.
func requestLogger(fallback logx.Logger, req *Request) logx.Logger {
	if req != nil && req.ReqID != "" {
		return req.Logger
	}
	return fallback
}
