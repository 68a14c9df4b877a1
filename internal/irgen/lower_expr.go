package irgen

import (
	"swayc/internal/ast"
	"swayc/internal/ir"
	"swayc/internal/types"
)

var binOps = map[ast.Op]ir.BinOp{
	ast.OpAdd:    ir.BinAdd,
	ast.OpSub:    ir.BinSub,
	ast.OpMul:    ir.BinMul,
	ast.OpDiv:    ir.BinDiv,
	ast.OpMod:    ir.BinMod,
	ast.OpBitAnd: ir.BinAnd,
	ast.OpBitOr:  ir.BinOr,
	ast.OpBitXor: ir.BinXor,
	ast.OpShl:    ir.BinShl,
	ast.OpShr:    ir.BinShr,
}

var preds = map[ast.Op]ir.Pred{
	ast.OpEq: ir.PredEq,
	ast.OpNe: ir.PredNe,
	ast.OpLt: ir.PredLt,
	ast.OpLe: ir.PredLe,
	ast.OpGt: ir.PredGt,
	ast.OpGe: ir.PredGe,
}

// expr lowers e and returns its value. A nil expression is unit.
func (l *funcLowerer) expr(e *ast.Expr) (ir.ValueID, error) {
	if e == nil {
		return l.b.ConstUnit(), nil
	}
	saved := l.b.Span()
	if !e.Span.IsZero() {
		l.b.SetSpan(e.Span)
	}
	defer l.b.SetSpan(saved)

	switch e.Kind {
	case ast.ExprLit:
		return l.literal(l.g.irType(e.Type), e.Lit), nil
	case ast.ExprVar:
		bd, ok := l.lookup(e.Name)
		if !ok {
			return ir.NoValueID, internalf(e.Span, "unbound variable %q", e.Name)
		}
		if bd.isLocal {
			return l.b.Load(l.b.GetLocal(bd.local)), nil
		}
		return bd.value, nil
	case ast.ExprConst:
		c := l.g.prog.Decls.Const(e.Const)
		if c == nil {
			return ir.NoValueID, internalf(e.Span, "unknown constant %d", e.Const)
		}
		return l.expr(c.Value)
	case ast.ExprBinary:
		return l.binary(e)
	case ast.ExprUnary:
		x, err := l.expr(e.X)
		if err != nil {
			return ir.NoValueID, err
		}
		return l.b.Not(x), nil
	case ast.ExprStruct, ast.ExprTuple, ast.ExprArray, ast.ExprEnum:
		return l.aggregate(e)
	case ast.ExprField, ast.ExprTupleIndex, ast.ExprArrayIndex:
		return l.access(e)
	case ast.ExprBlock:
		return l.block(e.Block)
	case ast.ExprIf:
		return l.ifExpr(e)
	case ast.ExprMatch:
		return l.match(e)
	case ast.ExprCall:
		return l.call(e)
	case ast.ExprContractCall:
		return l.contractCall(e)
	case ast.ExprStorageRead:
		return l.storageRead(e)
	case ast.ExprAbiCast:
		return l.expr(e.X)
	case ast.ExprRevert:
		code, err := l.expr(e.X)
		if err != nil {
			return ir.NoValueID, err
		}
		l.b.Revert(code)
		l.deadBlock()
		return l.unitOrUndef(e.Type), nil
	case ast.ExprLog:
		x, err := l.expr(e.X)
		if err != nil {
			return ir.NoValueID, err
		}
		l.b.Log(x)
		return l.b.ConstUnit(), nil
	case ast.ExprErrorRecovery:
		return l.b.Undef(e.Type), nil
	}
	return ir.NoValueID, internalf(e.Span, "cannot lower %s expression", e.Kind)
}

func (l *funcLowerer) literal(ty types.TypeID, lit ast.Lit) ir.ValueID {
	switch lit.Kind {
	case ast.LitBool:
		return l.b.ConstBool(lit.Bool)
	case ast.LitUint:
		return l.b.ConstUint(ty, lit.Uint)
	case ast.LitB256:
		return l.b.ConstB256(lit.B256)
	case ast.LitStr:
		return l.b.ConstStr(ty, lit.Str)
	}
	return l.b.ConstUnit()
}

func (l *funcLowerer) binary(e *ast.Expr) (ir.ValueID, error) {
	if e.Op == ast.OpLogicalAnd || e.Op == ast.OpLogicalOr {
		return l.shortCircuit(e)
	}
	x, err := l.expr(e.X)
	if err != nil {
		return ir.NoValueID, err
	}
	y, err := l.expr(e.Y)
	if err != nil {
		return ir.NoValueID, err
	}
	if p, ok := preds[e.Op]; ok {
		return l.b.Cmp(p, x, y), nil
	}
	op, ok := binOps[e.Op]
	if !ok {
		return ir.NoValueID, internalf(e.Span, "operator %s is not binary", e.Op)
	}
	return l.b.Binary(op, x, y), nil
}

// shortCircuit evaluates the right operand only when the left one does not
// decide the result.
func (l *funcLowerer) shortCircuit(e *ast.Expr) (ir.ValueID, error) {
	x, err := l.expr(e.X)
	if err != nil {
		return ir.NoValueID, err
	}
	isAnd := e.Op == ast.OpLogicalAnd
	from := l.b.Block()
	rhs := l.b.NewBlock("rhs")
	end := l.b.NewBlock("end_logic")
	if isAnd {
		l.b.CondBranch(x, rhs, end)
	} else {
		l.b.CondBranch(x, end, rhs)
	}

	l.setBlock(rhs)
	y, err := l.expr(e.Y)
	if err != nil {
		return ir.NoValueID, err
	}
	incoming := []ir.PhiIncoming{{Block: from, Value: l.b.ConstBool(!isAnd)}}
	if !l.b.Terminated() {
		incoming = append(incoming, ir.PhiIncoming{Block: l.b.Block(), Value: y})
		l.b.Branch(end)
	}
	l.setBlock(end)
	return l.join(e.Type, incoming), nil
}

func (l *funcLowerer) ifExpr(e *ast.Expr) (ir.ValueID, error) {
	cond, err := l.expr(e.X)
	if err != nil {
		return ir.NoValueID, err
	}
	then := l.b.NewBlock("then")
	els := l.b.NewBlock("else")
	end := l.b.NewBlock("end_if")
	l.b.CondBranch(cond, then, els)

	var incoming []ir.PhiIncoming
	for _, arm := range []struct {
		block ir.BlockID
		body  *ast.Expr
	}{{then, e.Then}, {els, e.Else}} {
		l.setBlock(arm.block)
		v, err := l.expr(arm.body)
		if err != nil {
			return ir.NoValueID, err
		}
		if !l.b.Terminated() {
			incoming = append(incoming, ir.PhiIncoming{Block: l.b.Block(), Value: v})
			l.b.Branch(end)
		}
	}
	l.setBlock(end)
	if len(incoming) == 0 {
		l.dead = true
	}
	return l.join(e.Type, incoming), nil
}

// join merges the values reaching the current block.
func (l *funcLowerer) join(ty types.TypeID, incoming []ir.PhiIncoming) ir.ValueID {
	switch {
	case l.tin.KindOf(ty) == types.KindUnit || len(incoming) == 0:
		return l.unitOrUndef(ty)
	case len(incoming) == 1:
		return incoming[0].Value
	}
	return l.b.Phi(l.g.irType(ty), incoming)
}

// access reads a field, tuple element or array element. Reads below a
// local go through memory; everything else extracts from the value.
func (l *funcLowerer) access(e *ast.Expr) (ir.ValueID, error) {
	ptr, ok, err := l.place(e)
	if err != nil {
		return ir.NoValueID, err
	}
	if ok {
		return l.b.Load(ptr), nil
	}
	agg, err := l.expr(e.X)
	if err != nil {
		return ir.NoValueID, err
	}
	idx, err := l.index(e)
	if err != nil {
		return ir.NoValueID, err
	}
	return l.b.ExtractValue(agg, idx), nil
}

// place returns a pointer to the memory e denotes when e is a local or a
// constant path below one.
func (l *funcLowerer) place(e *ast.Expr) (ir.ValueID, bool, error) {
	switch e.Kind {
	case ast.ExprVar:
		bd, ok := l.lookup(e.Name)
		if !ok || !bd.isLocal {
			return ir.NoValueID, false, nil
		}
		return l.b.GetLocal(bd.local), true, nil
	case ast.ExprField, ast.ExprTupleIndex, ast.ExprArrayIndex:
		base, ok, err := l.place(e.X)
		if err != nil || !ok {
			return ir.NoValueID, false, err
		}
		idx, err := l.index(e)
		if err != nil {
			return ir.NoValueID, false, err
		}
		return l.b.GetElemPtr(base, idx), true, nil
	}
	return ir.NoValueID, false, nil
}

func (l *funcLowerer) index(e *ast.Expr) (uint64, error) {
	switch e.Kind {
	case ast.ExprField:
		return l.g.fieldIndex(e.Span, e.X.Type, e.Name)
	case ast.ExprTupleIndex:
		return e.Index, nil
	}
	if e.Y == nil || e.Y.Kind != ast.ExprLit || e.Y.Lit.Kind != ast.LitUint {
		return 0, unimplemented(e.Span, "array index that is not a literal")
	}
	if _, ok := l.g.m.Layout.ElemType(e.X.Type, e.Y.Lit.Uint); !ok {
		return 0, internalf(e.Span, "index %d out of range for %s", e.Y.Lit.Uint, l.tin.String(e.X.Type))
	}
	return e.Y.Lit.Uint, nil
}

// aggregate builds a struct, tuple, array or enum value by inserting each
// element into undef. Struct fields are evaluated in declaration order.
func (l *funcLowerer) aggregate(e *ast.Expr) (ir.ValueID, error) {
	agg := l.b.Undef(l.g.irType(e.Type))
	switch e.Kind {
	case ast.ExprStruct:
		fields, err := ast.DeclaredFields(l.tin, e)
		if err != nil {
			return ir.NoValueID, internalf(e.Span, "%v", err)
		}
		for i, fi := range fields {
			if fi.Value == nil {
				continue
			}
			if agg, err = l.insert(e, agg, fi.Value, i); err != nil {
				return ir.NoValueID, err
			}
		}
	case ast.ExprTuple, ast.ExprArray:
		for i, el := range e.Elems {
			var err error
			if agg, err = l.insert(e, agg, el, i); err != nil {
				return ir.NoValueID, err
			}
		}
	case ast.ExprEnum:
		tag, ok := l.tin.VariantTag(e.Type, e.Name)
		if !ok {
			return ir.NoValueID, internalf(e.Span, "variant %q not found on %s", e.Name, l.tin.String(e.Type))
		}
		agg = l.b.InsertValue(agg, l.u64(tag), 0)
		if e.X != nil {
			v, err := l.expr(e.X)
			if err != nil {
				return ir.NoValueID, err
			}
			agg = l.b.InsertValue(agg, v, 1, tag)
		}
	}
	return agg, nil
}

func (l *funcLowerer) insert(e *ast.Expr, agg ir.ValueID, el *ast.Expr, i int) (ir.ValueID, error) {
	idx, err := pathIndex(e.Span, i)
	if err != nil {
		return ir.NoValueID, err
	}
	v, err := l.expr(el)
	if err != nil {
		return ir.NoValueID, err
	}
	return l.b.InsertValue(agg, v, idx), nil
}
