package trace

import (
	"context"
	"sync/atomic"
	"time"
)

// seq numbers events and spans process-wide so several tracers sharing a
// stream stay ordered.
var seq, spanSeq atomic.Uint64

// Span is an open begin event. The zero of *Span (nil) is a valid
// disabled span.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	started time.Time
	attrs   map[string]string
}

// Begin opens a span under parent (0 for a root). Scopes finer than the
// tracer's level yield a nil span.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if !Enabled(t) || !t.Level().ShouldEmit(scope) {
		return nil
	}
	s := &Span{
		tracer:  t,
		id:      spanSeq.Add(1),
		parent:  parent,
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	t.Emit(&Event{
		Time:     s.started,
		Seq:      seq.Add(1),
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: parent,
		Name:     name,
	})
	return s
}

// Start opens a span under the span carried by ctx and returns a context
// in which the new span is current.
func Start(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	st := stateOf(ctx)
	s := Begin(st.tracer, scope, name, st.span)
	if s == nil {
		return ctx, nil
	}
	return context.WithValue(ctx, stateKey{}, state{tracer: st.tracer, span: s.id}), s
}

// Set attaches an attribute reported with the end event.
func (s *Span) Set(key, value string) *Span {
	if s == nil {
		return nil
	}
	if s.attrs == nil {
		s.attrs = make(map[string]string)
	}
	s.attrs[key] = value
	return s
}

// End closes the span and returns its duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil {
		return 0
	}
	now := time.Now()
	dur := now.Sub(s.started)
	s.tracer.Emit(&Event{
		Time:     now,
		Seq:      seq.Add(1),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Detail:   detail,
		Dur:      dur,
		Attrs:    s.attrs,
	})
	return dur
}

// ID returns the span ID, 0 for a disabled span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Point emits an instant event under the span carried by ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	st := stateOf(ctx)
	if !Enabled(st.tracer) || !st.tracer.Level().ShouldEmit(scope) {
		return
	}
	st.tracer.Emit(&Event{
		Time:     time.Now(),
		Seq:      seq.Add(1),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: st.span,
		Name:     name,
		Detail:   detail,
	})
}
