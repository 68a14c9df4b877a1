package trace

import "context"

type stateKey struct{}

// state is what a context carries: the tracer and the current span.
type state struct {
	tracer Tracer
	span   uint64
}

func stateOf(ctx context.Context) state {
	if ctx != nil {
		if st, ok := ctx.Value(stateKey{}).(state); ok {
			return st
		}
	}
	return state{tracer: Nop}
}

// FromContext returns the tracer carried by ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	return stateOf(ctx).tracer
}

// WithTracer attaches t to ctx. Spans started from the result are roots.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, stateKey{}, state{tracer: t})
}

// Current returns the ID of the span carried by ctx, 0 at the root.
func Current(ctx context.Context) uint64 {
	return stateOf(ctx).span
}
