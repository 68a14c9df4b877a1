package diag

import "sort"

// Bag collects diagnostics up to a limit.
type Bag struct {
	items []Diagnostic
	max   int
}

// NewBag creates a bag holding at most max diagnostics; max <= 0 means unbounded.
func NewBag(max int) *Bag {
	capHint := max
	if capHint <= 0 || capHint > 64 {
		capHint = 64
	}
	return &Bag{
		items: make([]Diagnostic, 0, capHint),
		max:   max,
	}
}

// Add appends d unless the limit is reached.
// It returns false when the diagnostic was dropped.
func (b *Bag) Add(d Diagnostic) bool {
	if b.max > 0 && len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// HasErrors reports whether any diagnostic has Severity >= SevError.
func (b *Bag) HasErrors() bool {
	if b == nil {
		return false
	}
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any diagnostic has Severity >= SevWarning.
func (b *Bag) HasWarnings() bool {
	if b == nil {
		return false
	}
	for i := range b.items {
		if b.items[i].Severity >= SevWarning {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Items returns the internal slice; callers must not modify it.
func (b *Bag) Items() []Diagnostic {
	if b == nil {
		return nil
	}
	return b.items
}

// Errors returns the error-severity diagnostics in insertion order.
func (b *Bag) Errors() []Diagnostic {
	return b.filter(func(d Diagnostic) bool { return d.Severity >= SevError })
}

// Warnings returns the warning-severity diagnostics in insertion order.
func (b *Bag) Warnings() []Diagnostic {
	return b.filter(func(d Diagnostic) bool { return d.Severity == SevWarning })
}

func (b *Bag) filter(keep func(Diagnostic) bool) []Diagnostic {
	if b == nil {
		return nil
	}
	var out []Diagnostic
	for _, d := range b.items {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Merge appends every diagnostic of other, growing the limit when needed.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	if b.max > 0 && len(b.items)+len(other.items) > b.max {
		b.max = len(b.items) + len(other.items)
	}
	b.items = append(b.items, other.items...)
}

// Sort orders diagnostics by file, start, end, severity (desc) and code
// so output is deterministic.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		if di.Primary.End != dj.Primary.End {
			return di.Primary.End < dj.Primary.End
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		return di.Code < dj.Code
	})
}
