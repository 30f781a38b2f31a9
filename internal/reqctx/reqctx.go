// Package reqctx carries the per-request context value threaded through
// every pipeline stage: request id, start time, and a field for the hash
// of the credential that was admitted.
package reqctx

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type key struct{}

// Context is the small structured value passed as pipeline stages'
// first argument (via context.Context) rather than reached for as a
// global.
type Context struct {
	RequestID      string
	CredentialHash string
	StartedAt      time.Time
}

// New creates a fresh Context with a generated request id.
func New() Context {
	return Context{RequestID: uuid.New().String(), StartedAt: time.Now()}
}

// WithContext attaches rc to ctx.
func WithContext(ctx context.Context, rc Context) context.Context {
	return context.WithValue(ctx, key{}, rc)
}

// FromContext retrieves the Context previously attached by WithContext,
// or a fresh Context from New (generated id, start time now) if none is
// present.
func FromContext(ctx context.Context) Context {
	if rc, ok := ctx.Value(key{}).(Context); ok {
		return rc
	}
	return New()
}

// Elapsed returns the time since the request started.
func (c Context) Elapsed() time.Duration {
	return time.Since(c.StartedAt)
}
