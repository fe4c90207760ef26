// Package requestid carries a correlation id across the storefront, its store client and the store.
package requestid

import "context"

// Header is the HTTP header the id travels in.
const Header = "X-Request-ID"

type ctxKey struct{}

// With returns a context carrying id.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the id stored in ctx, or "" when none was set.
func From(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
