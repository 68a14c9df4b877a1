package diag

// Result is the outcome every compiler stage returns.
//
// HasValue is true whenever a value could be produced, including the case
// where error-recovery placeholders were substituted and Errors is non-empty.
// It is false only when recovery was impossible.
type Result[T any] struct {
	Value    T
	HasValue bool
	Warnings []Diagnostic
	Errors   []Diagnostic
}

// Ok builds a successful result.
func Ok[T any](v T, warnings []Diagnostic) Result[T] {
	return Result[T]{Value: v, HasValue: true, Warnings: warnings}
}

// Fail builds a result that carries no value.
func Fail[T any](warnings, errors []Diagnostic) Result[T] {
	return Result[T]{Warnings: warnings, Errors: errors}
}

// FromBag splits bag into warnings and errors and attaches v when hasValue.
func FromBag[T any](v T, hasValue bool, bag *Bag) Result[T] {
	r := Result[T]{HasValue: hasValue, Warnings: bag.Warnings(), Errors: bag.Errors()}
	if hasValue {
		r.Value = v
	}
	return r
}

// Succeeded reports whether a value exists and no error was recorded.
func (r Result[T]) Succeeded() bool {
	return r.HasValue && len(r.Errors) == 0
}

// Unwrap moves the diagnostics of r into bag and returns the value.
// It is the glue between stages: callers keep accumulating into one bag.
func (r Result[T]) Unwrap(bag *Bag) (T, bool) {
	if bag != nil {
		for _, d := range r.Warnings {
			bag.Add(d)
		}
		for _, d := range r.Errors {
			bag.Add(d)
		}
	}
	return r.Value, r.HasValue
}

// Diagnostics returns errors followed by warnings.
func (r Result[T]) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	return out
}

// Map applies f to the value of r, keeping diagnostics.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	out := Result[U]{HasValue: r.HasValue, Warnings: r.Warnings, Errors: r.Errors}
	if r.HasValue {
		out.Value = f(r.Value)
	}
	return out
}
