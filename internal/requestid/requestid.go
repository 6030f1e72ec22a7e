// Package requestid carries a correlation id from the session layer through the
// gateway's X-Request-ID header and into audit entries.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header the id travels in
const Header = "X-Request-ID"

type key struct{}

// New returns a fresh id
func New() string {
	return uuid.NewString()
}

// With returns ctx tagged with id
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, key{}, id)
}

// From returns the id in ctx, or ""
func From(ctx context.Context) string {
	if id, ok := ctx.Value(key{}).(string); ok {
		return id
	}
	return ""
}

// Ensure returns ctx unchanged if it already carries an id, otherwise tags it with a new one
func Ensure(ctx context.Context) (context.Context, string) {
	if id := From(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return With(ctx, id), id
}
