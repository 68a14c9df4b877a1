package ast

import (
	"swayc/internal/source"
	"swayc/internal/types"
)

// ProgramKind is the kind of compilation unit.
type ProgramKind uint8

const (
	ProgramScript ProgramKind = iota
	ProgramContract
	ProgramPredicate
	ProgramLibrary
)

func (k ProgramKind) String() string {
	switch k {
	case ProgramScript:
		return "script"
	case ProgramContract:
		return "contract"
	case ProgramPredicate:
		return "predicate"
	case ProgramLibrary:
		return "library"
	}
	return "unknown"
}

// Program is a fully type-checked compilation unit as handed over by the
// front end. Types and Decls are read-only for the core.
type Program struct {
	Name  string
	Kind  ProgramKind
	Types *types.Interner
	Decls *DeclTable
	Files *source.FileSet
}

// Entries returns the entry functions in declaration order.
func (p *Program) Entries() []FnID {
	var out []FnID
	for _, id := range p.Decls.FnIDs() {
		if p.Decls.Fn(id).IsEntry {
			out = append(out, id)
		}
	}
	return out
}
