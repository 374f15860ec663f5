package web

import (
	"context"
	"time"
)

// ctxKey represents the type of value for the context key.
type ctxKey int

// KeyValues is how request values or stored/retrieved.
const KeyValues ctxKey = 1

// Values represent state for each request.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
	Error      bool
}

// ContextValues returns the request values, or nil outside of a request.
func ContextValues(ctx context.Context) *Values {
	v, ok := ctx.Value(KeyValues).(*Values)
	if !ok {
		return nil
	}
	return v
}

// userKey is where the authenticated user id is stored.
const userKey ctxKey = 2

// ContextWithUserID returns a context holding the id of the authenticated user.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// ContextUserID returns the authenticated user id associated with the context.
func ContextUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey).(string)
	if !ok || len(userID) == 0 {
		return "", false
	}
	return userID, true
}
