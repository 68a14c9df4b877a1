// Package testkit builds typed programs for tests.
package testkit

import (
	"swayc/internal/ast"
	"swayc/internal/source"
	"swayc/internal/types"
)

// Builder assembles a typed program. Helpers compute expression types the
// way the front end would.
type Builder struct {
	Prog *ast.Program
	T    *types.Interner
	B    types.Builtins
}

func NewBuilder(kind ast.ProgramKind) *Builder {
	in := types.NewInterner()
	files := source.NewFileSet()
	files.AddVirtual("test.sw", nil)
	return &Builder{
		Prog: &ast.Program{Name: "test", Kind: kind, Types: in, Decls: ast.NewDeclTable(), Files: files},
		T:    in,
		B:    in.Builtins(),
	}
}

func (b *Builder) Struct(name string, fields ...types.StructField) types.TypeID {
	return b.T.RegisterStruct(name, source.Span{}, fields)
}

func (b *Builder) Enum(name string, variants ...types.EnumVariant) types.TypeID {
	return b.T.RegisterEnum(name, source.Span{}, variants)
}

// SF is a struct field.
func SF(name string, t types.TypeID) types.StructField { return types.StructField{Name: name, Type: t} }

// V is an enum variant.
func V(name string, t types.TypeID) types.EnumVariant { return types.EnumVariant{Name: name, Type: t} }

// P is a parameter.
func P(name string, t types.TypeID) ast.Param { return ast.Param{Name: name, Type: t} }

// Fn declares a function whose body is body.
func (b *Builder) Fn(name string, params []ast.Param, ret types.TypeID, body *ast.Block) ast.FnID {
	return b.Prog.Decls.AddFn(ast.FnDecl{Name: name, Params: params, Ret: ret, Body: body})
}

// Entry declares an entry function.
func (b *Builder) Entry(name string, params []ast.Param, ret types.TypeID, body *ast.Block) ast.FnID {
	return b.Prog.Decls.AddFn(ast.FnDecl{Name: name, Params: params, Ret: ret, Body: body, IsEntry: true})
}

// Storage declares the contract storage fields.
func (b *Builder) Storage(fields ...ast.StorageField) {
	b.Prog.Decls.Storage = &ast.StorageDecl{Fields: fields}
}

func (b *Builder) Const(name string, t types.TypeID, v *ast.Expr) ast.ConstID {
	return b.Prog.Decls.AddConst(ast.ConstDecl{Name: name, Type: t, Value: v})
}

// Body is a block with statements and a tail.
func Body(tail *ast.Expr, stmts ...*ast.Stmt) *ast.Block {
	return &ast.Block{Stmts: stmts, Tail: tail}
}
