package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	// KindPoint is an instant event.
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event; lower values are coarser.
type Scope uint8

const (
	// ScopeDriver is one CLI command.
	ScopeDriver Scope = iota + 1
	// ScopeStage is a pipeline stage such as irgen or finalize.
	ScopeStage
	// ScopePass is one optimisation pass over the module.
	ScopePass
	// ScopeFunction is per-function work inside a stage.
	ScopeFunction
)

func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopeStage:
		return "stage"
	case ScopePass:
		return "pass"
	case ScopeFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Event is one trace record. Begin and end events of a span share SpanID;
// end events carry the span's duration.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	Name     string // "irgen", "sroa", "main"
	Detail   string
	Dur      time.Duration
	Attrs    map[string]string
}
