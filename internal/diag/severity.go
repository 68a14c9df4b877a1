package diag

// Severity orders diagnostics; only SevError stops code generation.
type Severity uint8

const (
	SevNote Severity = iota
	SevWarning
	SevError
)

// String returns the lower-case label printed before a diagnostic.
func (s Severity) String() string {
	return [...]string{"note", "warning", "error"}[min(int(s), 2)]
}
