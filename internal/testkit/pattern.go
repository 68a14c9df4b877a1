package testkit

import (
	"swayc/internal/ast"
	"swayc/internal/types"
)

func PWild(t types.TypeID) *ast.Pattern { return &ast.Pattern{Kind: ast.PatWildcard, Type: t} }

func PVar(name string, t types.TypeID) *ast.Pattern {
	return &ast.Pattern{Kind: ast.PatVar, Name: name, Type: t}
}

func (b *Builder) PU64(v uint64) *ast.Pattern {
	return &ast.Pattern{Kind: ast.PatLit, Type: b.B.U64, Lit: ast.Lit{Kind: ast.LitUint, Uint: v}}
}

func (b *Builder) PBool(v bool) *ast.Pattern {
	return &ast.Pattern{Kind: ast.PatLit, Type: b.B.Bool, Lit: ast.Lit{Kind: ast.LitBool, Bool: v}}
}

func PTuple(t types.TypeID, elems ...*ast.Pattern) *ast.Pattern {
	return &ast.Pattern{Kind: ast.PatTuple, Type: t, Elems: elems}
}

// PStruct matches named fields of struct t.
func PStruct(t types.TypeID, fields ...ast.FieldPattern) *ast.Pattern {
	return &ast.Pattern{Kind: ast.PatStruct, Type: t, Fields: fields}
}

func FP(name string, p *ast.Pattern) ast.FieldPattern {
	return ast.FieldPattern{Name: name, Pattern: p}
}

// PEnum matches variant of enum t; payload nil matches any payload.
func PEnum(t types.TypeID, variant string, payload *ast.Pattern) *ast.Pattern {
	return &ast.Pattern{Kind: ast.PatEnum, Type: t, Name: variant, Payload: payload}
}
