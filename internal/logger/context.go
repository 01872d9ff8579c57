package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger returns a child context carrying l.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// With adds fields to the logger already carried by ctx. Without one, ctx is returned as is.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	l := fromContext(ctx)
	if l == nil || len(fields) == 0 {
		return ctx
	}
	return ContextWithLogger(ctx, l.With(fields...))
}

// FromContext returns the request logger. fallback is used outside a request, a no-op logger
// when fallback is nil too.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	switch l := fromContext(ctx); {
	case l != nil:
		return l
	case fallback != nil:
		return fallback
	default:
		return zap.NewNop()
	}
}

func fromContext(ctx context.Context) *zap.Logger {
	l, _ := ctx.Value(ctxKey{}).(*zap.Logger)
	return l
}
