package middleware

import (
	"context"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserIDFromContext retrieves a caller identifier from the request context,
// if one was set. This service has no login surface, so the context never
// carries one in production; RateLimit falls back to the remote address
// when this returns empty.
func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(userIDKey).(string)
	return uid
}

// WithUserID returns a new context carrying uid. Exists for tests that
// exercise context-scoped behavior (rate limiting) without a real caller.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}
