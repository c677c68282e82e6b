// Package correlation carries the per-request correlation id used to tie
// together a client response and the log lines generated while serving it.
// It is split out of internal/httpapi so internal/apperr (which every
// other package returns errors through) can read it without importing the
// httpapi package and creating an import cycle.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// New mints a fresh correlation id.
func New() string { return uuid.NewString() }

// WithContext returns a context carrying id as the request's correlation id.
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the correlation id stored in ctx, or "" if none.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
