package diag

import "swayc/internal/source"

type reportKey struct {
	code Code
	sev  Severity
	span source.Span
	msg  string
}

// dedup forwards each distinct (code, severity, span, message) once.
type dedup struct {
	next Reporter
	seen map[reportKey]bool
}

// Dedup wraps next so that repeated reports of the same diagnostic at the
// same span are dropped. Notes of a dropped repeat are discarded.
func Dedup(next Reporter) Reporter {
	if next == nil {
		next = NopReporter{}
	}
	return &dedup{next: next, seen: make(map[reportKey]bool)}
}

func (r *dedup) Report(code Code, sev Severity, primary source.Span, msg string, notes []Note) {
	k := reportKey{code: code, sev: sev, span: primary, msg: msg}
	if r.seen[k] {
		return
	}
	r.seen[k] = true
	r.next.Report(code, sev, primary, msg, notes)
}
