package testkit

import (
	"fortio.org/safecast"

	"swayc/internal/ast"
	"swayc/internal/types"
)

func (b *Builder) Unit() *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLit, Type: b.B.Unit, Lit: ast.Lit{Kind: ast.LitUnit}}
}

func (b *Builder) U64(v uint64) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLit, Type: b.B.U64, Lit: ast.Lit{Kind: ast.LitUint, Uint: v}}
}

// UintOf is an integer literal of type t.
func (b *Builder) UintOf(t types.TypeID, v uint64) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLit, Type: t, Lit: ast.Lit{Kind: ast.LitUint, Uint: v}}
}

func (b *Builder) Bool(v bool) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLit, Type: b.B.Bool, Lit: ast.Lit{Kind: ast.LitBool, Bool: v}}
}

func (b *Builder) B256(v [32]byte) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLit, Type: b.B.B256, Lit: ast.Lit{Kind: ast.LitB256, B256: v}}
}

func (b *Builder) Str(s string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLit, Type: b.T.Str(safecast.MustConv[uint32](len(s))), Lit: ast.Lit{Kind: ast.LitStr, Str: s}}
}

func (b *Builder) Var(name string, t types.TypeID) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprVar, Type: t, Name: name}
}

// Bin is a binary expression. Comparisons and logical operators are bool.
func (b *Builder) Bin(op ast.Op, x, y *ast.Expr) *ast.Expr {
	t := x.Type
	if op.IsComparison() || op == ast.OpLogicalAnd || op == ast.OpLogicalOr {
		t = b.B.Bool
	}
	return &ast.Expr{Kind: ast.ExprBinary, Type: t, Op: op, X: x, Y: y}
}

func (b *Builder) Not(x *ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprUnary, Type: x.Type, Op: ast.OpNot, X: x}
}

// F initialises one struct field.
func F(name string, v *ast.Expr) ast.FieldInit { return ast.FieldInit{Name: name, Value: v} }

func (b *Builder) StructLit(t types.TypeID, fields ...ast.FieldInit) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprStruct, Type: t, Fields: fields}
}

func (b *Builder) Tuple(elems ...*ast.Expr) *ast.Expr {
	ts := make([]types.TypeID, len(elems))
	for i, e := range elems {
		ts[i] = e.Type
	}
	return &ast.Expr{Kind: ast.ExprTuple, Type: b.T.Tuple(ts), Elems: elems}
}

func (b *Builder) Array(elem types.TypeID, elems ...*ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprArray, Type: b.T.Array(elem, safecast.MustConv[uint32](len(elems))), Elems: elems}
}

// EnumLit instantiates variant of enum t. payload is nil for unit variants.
func (b *Builder) EnumLit(t types.TypeID, variant string, payload *ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprEnum, Type: t, Name: variant, X: payload}
}

// Field reads a struct field.
func (b *Builder) Field(x *ast.Expr, name string) *ast.Expr {
	t := b.B.ErrorRecovery
	if info, ok := b.T.StructInfo(x.Type); ok {
		for _, f := range info.Fields {
			if f.Name == name {
				t = f.Type
			}
		}
	}
	return &ast.Expr{Kind: ast.ExprField, Type: t, X: x, Name: name}
}

// At reads a tuple element.
func (b *Builder) At(x *ast.Expr, i uint64) *ast.Expr {
	t := b.B.ErrorRecovery
	if info, ok := b.T.TupleInfo(x.Type); ok && i < uint64(len(info.Elems)) {
		t = info.Elems[i]
	}
	return &ast.Expr{Kind: ast.ExprTupleIndex, Type: t, X: x, Index: i}
}

// Index reads an array element.
func (b *Builder) Index(x, idx *ast.Expr) *ast.Expr {
	tt, _ := b.T.Lookup(x.Type)
	return &ast.Expr{Kind: ast.ExprArrayIndex, Type: tt.Elem, X: x, Y: idx}
}

func (b *Builder) Call(fn ast.FnID, args ...*ast.Expr) *ast.Expr {
	ret := b.B.ErrorRecovery
	if d := b.Prog.Decls.Fn(fn); d != nil {
		ret = d.Ret
	}
	return &ast.Expr{Kind: ast.ExprCall, Type: ret, Fn: fn, Elems: args}
}

func (b *Builder) If(cond, then, els *ast.Expr) *ast.Expr {
	t := b.B.Unit
	if els != nil {
		t = then.Type
	}
	return &ast.Expr{Kind: ast.ExprIf, Type: t, X: cond, Then: then, Else: els}
}

func (b *Builder) Block(tail *ast.Expr, stmts ...*ast.Stmt) *ast.Expr {
	t := b.B.Unit
	if tail != nil {
		t = tail.Type
	}
	return &ast.Expr{Kind: ast.ExprBlock, Type: t, Block: Body(tail, stmts...)}
}

// Arm is one match arm.
func Arm(p *ast.Pattern, body *ast.Expr) ast.MatchArm { return ast.MatchArm{Pattern: p, Body: body} }

func (b *Builder) Match(x *ast.Expr, t types.TypeID, arms ...ast.MatchArm) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprMatch, Type: t, X: x, Arms: arms}
}

func (b *Builder) Revert(code uint64) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprRevert, Type: b.B.Unit, X: b.U64(code)}
}

func (b *Builder) Log(x *ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprLog, Type: b.B.Unit, X: x}
}

// StorageRead reads the storage field at path.
func (b *Builder) StorageRead(t types.TypeID, path ...string) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprStorageRead, Type: t, Path: path}
}

// AbiCast is abi(name, addr).
func (b *Builder) AbiCast(name string, addr *ast.Expr) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprAbiCast, Type: b.T.ContractCaller(name), Abi: name, X: addr}
}

// ContractCall calls method of abi; args[0] is the caller.
func (b *Builder) ContractCall(abi, method string, ret types.TypeID, params ast.CallParams, args ...*ast.Expr) *ast.Expr {
	return &ast.Expr{
		Kind:         ast.ExprContractCall,
		Type:         ret,
		Elems:        args,
		ContractCall: &ast.ContractCallExpr{Abi: abi, Method: method, Params: params},
	}
}
