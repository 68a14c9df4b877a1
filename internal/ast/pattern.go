package ast

import (
	"swayc/internal/source"
	"swayc/internal/types"
)

type PatternKind uint8

const (
	PatWildcard PatternKind = iota + 1
	PatLit
	PatVar
	PatStruct
	PatTuple
	PatEnum
)

// Pattern is a type-checked match pattern.
type Pattern struct {
	Kind PatternKind
	Type types.TypeID
	Span source.Span

	Lit     Lit
	Name    string // PatVar binding, PatEnum variant
	Fields  []FieldPattern
	Elems   []*Pattern
	Payload *Pattern // PatEnum; nil matches any payload
}

// FieldPattern matches one named struct field.
type FieldPattern struct {
	Name    string
	Pattern *Pattern
}
