// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and the executor read them. Keeping
// the package free of net/http lets background workers (the bridge relay and
// endpoint consumers) populate the same values without an HTTP request.
//
// Usage in services (read values):
//
//	caller := requestcontext.Caller(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"mintgate/pkg/domain"
)

type (
	callerKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	sourceKey      struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyCaller      = callerKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeySource      = sourceKey{}
)

// Caller returns the authenticated caller account, or the null account.
func Caller(ctx context.Context) domain.Account {
	if a, ok := ctx.Value(ContextKeyCaller).(domain.Account); ok {
		return a
	}
	return domain.Account{}
}

// HasCaller reports whether an authenticated caller is present.
func HasCaller(ctx context.Context) bool {
	_, ok := ctx.Value(ContextKeyCaller).(domain.Account)
	return ok
}

func WithCaller(ctx context.Context, caller domain.Account) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// RequestID returns the correlation id, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Source names the entry point that started the work ("http", "relay",
// "endpoint"). Used as a log and metric label.
func Source(ctx context.Context) string {
	if s, ok := ctx.Value(ContextKeySource).(string); ok {
		return s
	}
	return "internal"
}

func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ContextKeySource, source)
}

// Now returns the request time when one was injected, otherwise time.Now.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
