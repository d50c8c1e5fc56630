package tools

import "context"

type requestContextKey struct{}

// WithRequestContext returns a context carrying the caller identity.
// The HTTP layer attaches it once per request; adapters invoked through
// the framework (rather than the dispatcher) recover it from here.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom extracts the caller identity from ctx. A missing
// value yields the zero RequestContext, which adapters treat as an
// anonymous caller.
func RequestContextFrom(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(RequestContext)
	return rc
}
