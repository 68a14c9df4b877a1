package irgen

import (
	"swayc/internal/ast"
	"swayc/internal/ir"
	"swayc/internal/types"
)

// constWords evaluates e at compile time into its memory layout. ok is
// false when e is not a constant expression.
func (g *generator) constWords(e *ast.Expr) ([]uint64, bool) {
	if e == nil {
		return nil, false
	}
	switch e.Kind {
	case ast.ExprLit:
		switch e.Lit.Kind {
		case ast.LitUnit:
			return []uint64{}, true
		case ast.LitBool:
			if e.Lit.Bool {
				return []uint64{1}, true
			}
			return []uint64{0}, true
		case ast.LitUint:
			return []uint64{e.Lit.Uint & g.widthMask(e.Type)}, true
		case ast.LitB256:
			return ir.B256Words(e.Lit.B256), true
		case ast.LitStr:
			n, err := g.m.Layout.SizeOf(e.Type)
			if err != nil {
				return nil, false
			}
			return ir.StrWords(e.Lit.Str, n), true
		}
	case ast.ExprConst:
		c := g.prog.Decls.Const(e.Const)
		if c == nil {
			return nil, false
		}
		return g.constWords(c.Value)
	case ast.ExprBlock:
		if e.Block == nil || len(e.Block.Stmts) > 0 {
			return nil, false
		}
		if e.Block.Tail == nil {
			return []uint64{}, true
		}
		return g.constWords(e.Block.Tail)
	case ast.ExprAbiCast:
		return g.constWords(e.X)
	case ast.ExprUnary:
		x, ok := g.constScalar(e.X)
		if !ok {
			return nil, false
		}
		if g.tin.KindOf(e.Type) == types.KindBool {
			return []uint64{x ^ 1}, true
		}
		return []uint64{^x & g.widthMask(e.Type)}, true
	case ast.ExprBinary:
		return g.constBinary(e)
	case ast.ExprStruct, ast.ExprTuple, ast.ExprArray, ast.ExprEnum:
		return g.constAggregate(e)
	}
	return nil, false
}

func (g *generator) constScalar(e *ast.Expr) (uint64, bool) {
	w, ok := g.constWords(e)
	if !ok || len(w) != 1 {
		return 0, false
	}
	return w[0], true
}

func (g *generator) constBinary(e *ast.Expr) ([]uint64, bool) {
	x, ok := g.constScalar(e.X)
	if !ok {
		return nil, false
	}
	y, ok := g.constScalar(e.Y)
	if !ok {
		return nil, false
	}
	var r uint64
	switch e.Op {
	case ast.OpAdd:
		r = x + y
	case ast.OpSub:
		r = x - y
	case ast.OpMul:
		r = x * y
	case ast.OpDiv, ast.OpMod:
		if y == 0 {
			return nil, false
		}
		if e.Op == ast.OpDiv {
			r = x / y
		} else {
			r = x % y
		}
	case ast.OpBitAnd, ast.OpLogicalAnd:
		r = x & y
	case ast.OpBitOr, ast.OpLogicalOr:
		r = x | y
	case ast.OpBitXor:
		r = x ^ y
	case ast.OpShl:
		r = x << (y & 63)
	case ast.OpShr:
		r = x >> (y & 63)
	case ast.OpEq:
		r = boolWord(x == y)
	case ast.OpNe:
		r = boolWord(x != y)
	case ast.OpLt:
		r = boolWord(x < y)
	case ast.OpLe:
		r = boolWord(x <= y)
	case ast.OpGt:
		r = boolWord(x > y)
	case ast.OpGe:
		r = boolWord(x >= y)
	default:
		return nil, false
	}
	return []uint64{r & g.widthMask(e.Type)}, true
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (g *generator) constAggregate(e *ast.Expr) ([]uint64, bool) {
	size, err := g.m.Layout.SizeOf(e.Type)
	if err != nil {
		return nil, false
	}
	out := make([]uint64, size)
	put := func(path []uint64, v *ast.Expr) bool {
		w, ok := g.constWords(v)
		if !ok {
			return false
		}
		off, _, err := g.m.Layout.IndexOffsetWords(e.Type, path)
		if err != nil || off+uint64(len(w)) > size {
			return false
		}
		copy(out[off:], w)
		return true
	}
	switch e.Kind {
	case ast.ExprStruct:
		for _, fi := range e.Fields {
			i, err := g.fieldIndex(e.Span, e.Type, fi.Name)
			if err != nil || !put([]uint64{i}, fi.Value) {
				return nil, false
			}
		}
	case ast.ExprTuple, ast.ExprArray:
		for i, el := range e.Elems {
			idx, err := pathIndex(e.Span, i)
			if err != nil || !put([]uint64{idx}, el) {
				return nil, false
			}
		}
	case ast.ExprEnum:
		tag, ok := g.tin.VariantTag(e.Type, e.Name)
		if !ok || size == 0 {
			return nil, false
		}
		out[0] = tag
		if e.X != nil && !put([]uint64{1, tag}, e.X) {
			return nil, false
		}
	}
	return out, true
}

func (g *generator) widthMask(t types.TypeID) uint64 {
	tt, ok := g.tin.Lookup(t)
	if !ok {
		return ^uint64(0)
	}
	switch tt.Kind {
	case types.KindBool:
		return 1
	case types.KindByte:
		return 0xff
	case types.KindUint:
		if tt.Width >= 64 {
			return ^uint64(0)
		}
		return 1<<uint(tt.Width) - 1
	}
	return ^uint64(0)
}
