package identity

import "context"

// contextKey is unexported to keep caller identity writable only via
// WithCaller.
type contextKey struct{}

// WithCaller stores the authenticated caller identity on the context.
// The HTTP auth middleware is the only writer.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, contextKey{}, caller)
}

// CallerFromContext returns the authenticated caller identity, or
// false when the request never passed the auth middleware.
func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(contextKey{}).(string)
	return caller, ok && caller != ""
}
