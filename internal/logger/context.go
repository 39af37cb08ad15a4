package logger

import (
	"context"

	"go.uber.org/zap"
)

// ctxKey is unexported so only this package can place loggers on a context.
type ctxKey struct{}

// ContextWithLogger returns a context carrying the logger. The HTTP
// middleware uses it to hand a request-scoped logger (request id fields
// already bound) to handlers further down the chain.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger carried by ctx, or a no-op logger when the
// context came from outside the middleware stack.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
