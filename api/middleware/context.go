package middleware

import (
	"context"

	"github.com/safetrackhq/safetrack-backend/internal/access"
)

type contextKey string

const (
	ctxIdentity contextKey = "identity"
	ctxAccessID contextKey = "access_id"
)

// IdentityFromContext returns the database-backed actor seeded by Auth.
func IdentityFromContext(ctx context.Context) (access.Identity, bool) {
	if ctx == nil {
		return access.Identity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(access.Identity)
	return identity, ok
}

// AccessIDFromContext returns the session id of the presented token.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// WithIdentity injects the resolved actor, for handlers and tests.
func WithIdentity(ctx context.Context, identity access.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// WithAccessID injects the session id of the presented token.
func WithAccessID(ctx context.Context, accessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccessID, accessID)
}
