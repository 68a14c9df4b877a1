package asmgen

import (
	"swayc/internal/asm"
	"swayc/internal/ast"
	"swayc/internal/calls"
	"swayc/internal/diag"
	"swayc/internal/layout"
	"swayc/internal/types"
)

var legacyBinOps = map[ast.Op]asm.Opcode{
	ast.OpAdd:    asm.ADD,
	ast.OpSub:    asm.SUB,
	ast.OpMul:    asm.MUL,
	ast.OpDiv:    asm.DIV,
	ast.OpMod:    asm.MOD,
	ast.OpBitAnd: asm.AND,
	ast.OpBitOr:  asm.OR,
	ast.OpBitXor: asm.XOR,
	ast.OpShl:    asm.SLL,
	ast.OpShr:    asm.SRL,
}

func (c *lowering) expr(e *ast.Expr, ret asm.Register) {
	if e == nil {
		return
	}
	saved := c.span
	c.span = e.Span
	defer func() { c.span = saved }()

	switch e.Kind {
	case ast.ExprLit:
		c.literal(e.Lit, ret)
	case ast.ExprVar:
		r, ok := c.ns.Lookup(e.Name)
		if !ok {
			c.internal(diag.InternalInvariant, e.Span, "variable %q is not bound", e.Name)
			return
		}
		c.emit(asm.Instr(asm.MOVE, ret, r))
	case ast.ExprConst:
		decl := c.l.Prog.Decls.Const(e.Const)
		if decl == nil {
			c.internal(diag.InternalInvariant, e.Span, "unknown constant %d", e.Const)
			return
		}
		c.expr(decl.Value, ret)
	case ast.ExprBinary:
		c.binary(e, ret)
	case ast.ExprUnary:
		x := c.seq.Next()
		c.expr(e.X, x)
		if c.l.Types.KindOf(e.Type) == types.KindBool {
			c.emit(asm.Instr(asm.EQ, ret, x, asm.Zero))
			return
		}
		c.emit(asm.Instr(asm.NOT, ret, x))
		c.mask(ret, e.Type)
	case ast.ExprStruct, ast.ExprTuple, ast.ExprArray, ast.ExprEnum:
		c.instantiate(e, ret)
	case ast.ExprField, ast.ExprTupleIndex:
		c.access(e, ret)
	case ast.ExprArrayIndex:
		c.arrayIndex(e, ret)
	case ast.ExprBlock:
		c.block(e.Block, ret)
	case ast.ExprIf:
		c.ifExpr(e, ret)
	case ast.ExprMatch:
		c.match(e, ret)
	case ast.ExprCall:
		c.call(e, ret)
	case ast.ExprRevert:
		code := c.seq.Next()
		c.expr(e.X, code)
		c.emit(asm.Instr(asm.RVRT, code))
	case ast.ExprLog:
		x := c.seq.Next()
		c.expr(e.X, x)
		if n := c.size(e.X.Type); n > 0 && !c.isWord(e.X.Type) {
			c.emit(asm.Instr(asm.LOGD, asm.Zero, asm.Zero, x, c.constReg(n*layout.WordBytes)))
			return
		}
		c.emit(asm.Instr(asm.LOG, x, asm.Zero, asm.Zero, asm.Zero))
	case ast.ExprContractCall, ast.ExprStorageRead, ast.ExprAbiCast:
		c.unimplemented(e.Span, "%s expressions in the legacy code generator", e.Kind)
	case ast.ExprErrorRecovery:
	default:
		c.internal(diag.InternalInvariant, e.Span, "cannot lower %s expression", e.Kind)
	}
}

// literal loads scalars through the data section and points at blobs in it.
func (c *lowering) literal(lit ast.Lit, ret asm.Register) {
	switch lit.Kind {
	case ast.LitUnit:
	case ast.LitBool:
		var v uint64
		if lit.Bool {
			v = 1
		}
		c.emit(asm.LoadData(ret, c.ns.InsertDataValue(asm.WordLiteral(v))))
	case ast.LitUint:
		c.emit(asm.LoadData(ret, c.ns.InsertDataValue(asm.WordLiteral(lit.Uint))))
	case ast.LitB256:
		c.emit(asm.AddrData(ret, c.ns.InsertDataValue(asm.B256Literal(lit.B256))))
	case ast.LitStr:
		c.emit(asm.AddrData(ret, c.ns.InsertDataValue(asm.StrLiteral(lit.Str))))
	}
}

func (c *lowering) binary(e *ast.Expr, ret asm.Register) {
	switch e.Op {
	case ast.OpLogicalAnd, ast.OpLogicalOr:
		end := c.seq.NextLabel("sc")
		c.expr(e.X, ret)
		if e.Op == ast.OpLogicalAnd {
			t := c.seq.Next()
			c.emit(asm.Instr(asm.EQ, t, ret, asm.Zero), asm.JumpNZ(t, end))
		} else {
			c.emit(asm.JumpNZ(ret, end))
		}
		c.expr(e.Y, ret)
		c.emit(asm.LabelOp(end))
		return
	}
	x, y := c.seq.Next(), c.seq.Next()
	c.expr(e.X, x)
	c.expr(e.Y, y)
	if e.Op.IsComparison() {
		c.compare(e, x, y, ret)
		return
	}
	opc, ok := legacyBinOps[e.Op]
	if !ok {
		c.internal(diag.InternalInvariant, e.Span, "unknown operator %s", e.Op)
		return
	}
	c.emit(asm.Instr(opc, ret, x, y))
	c.mask(ret, e.Type)
}

func (c *lowering) compare(e *ast.Expr, x, y, ret asm.Register) {
	t := e.X.Type
	if !c.isWord(t) {
		n := c.size(t)
		if e.Op != ast.OpEq && e.Op != ast.OpNe {
			c.unimplemented(e.Span, "ordering comparison of %s", c.l.Types.String(t))
			return
		}
		c.emit(asm.Instr(asm.MEQ, ret, x, y, c.constReg(n*layout.WordBytes)))
		if e.Op == ast.OpNe {
			c.emit(asm.Instr(asm.EQ, ret, ret, asm.Zero))
		}
		return
	}
	switch e.Op {
	case ast.OpEq:
		c.emit(asm.Instr(asm.EQ, ret, x, y))
	case ast.OpNe:
		c.emit(asm.Instr(asm.EQ, ret, x, y), asm.Instr(asm.EQ, ret, ret, asm.Zero))
	case ast.OpLt:
		c.emit(asm.Instr(asm.LT, ret, x, y))
	case ast.OpGt:
		c.emit(asm.Instr(asm.GT, ret, x, y))
	case ast.OpLe:
		c.emit(asm.Instr(asm.GT, ret, x, y), asm.Instr(asm.EQ, ret, ret, asm.Zero))
	case ast.OpGe:
		c.emit(asm.Instr(asm.LT, ret, x, y), asm.Instr(asm.EQ, ret, ret, asm.Zero))
	}
}

func (c *lowering) mask(r asm.Register, t types.TypeID) {
	tt, ok := c.l.Types.Lookup(t)
	if !ok {
		return
	}
	var m uint64
	switch {
	case tt.Kind == types.KindByte:
		m = 0xff
	case tt.Kind == types.KindUint && tt.Width < types.Width64:
		m = 1<<uint(tt.Width) - 1
	default:
		return
	}
	if fitsImm(m, 12) {
		c.emit(asm.InstrImm(asm.ANDI, m, r, r))
		return
	}
	c.emit(asm.Instr(asm.AND, r, r, c.constReg(m)))
}

func (c *lowering) ifExpr(e *ast.Expr, ret asm.Register) {
	cond := c.seq.Next()
	c.expr(e.X, cond)
	then, end := c.seq.NextLabel("then"), c.seq.NextLabel("endif")
	c.emit(asm.JumpNZ(cond, then))
	if e.Else != nil {
		c.expr(e.Else, ret)
	}
	c.emit(asm.Jump(end), asm.LabelOp(then))
	c.expr(e.Then, ret)
	c.emit(asm.LabelOp(end))
}

// call inlines the callee body. A mismatched argument count is reported
// and the call is replaced by an error-recovery unit value.
func (c *lowering) call(e *ast.Expr, ret asm.Register) {
	decl := c.l.Prog.Decls.Fn(e.Fn)
	if decl == nil {
		c.internal(diag.InternalInvariant, e.Span, "call to unknown function %d", e.Fn)
		return
	}
	if !calls.CheckArity(decl.Name, len(decl.Params), len(e.Elems), e.Span, c.l.Reporter) {
		return
	}
	for _, fr := range c.inlines {
		if fr.fn == e.Fn {
			c.unimplemented(e.Span, "recursive call to %s in the legacy code generator", decl.Name)
			return
		}
	}
	args := make([]asm.Register, len(e.Elems))
	for i, arg := range e.Elems {
		args[i] = c.seq.Next()
		c.expr(arg, args[i])
	}
	// The callee sees only its parameters.
	outer := c.vars
	c.vars = []map[string]types.TypeID{{}}
	c.push()
	for i, p := range decl.Params {
		c.bind(p.Name, args[i], p.Type)
	}
	end := c.seq.NextLabel("ret")
	c.inlines = append(c.inlines, inlineFrame{fn: e.Fn, ret: ret, end: end})
	loops := c.loops
	c.loops = nil
	c.block(decl.Body, ret)
	c.loops = loops
	c.inlines = c.inlines[:len(c.inlines)-1]
	c.pop()
	c.vars = outer
	c.emit(asm.LabelOp(end))
}

func (c *lowering) block(b *ast.Block, ret asm.Register) {
	if b == nil {
		return
	}
	c.push()
	defer c.pop()
	for _, s := range b.Stmts {
		c.stmt(s)
	}
	if b.Tail != nil {
		c.expr(b.Tail, ret)
	}
}

// isPlace reports whether e names existing memory, so binding it copies.
func isPlace(e *ast.Expr) bool {
	switch e.Kind {
	case ast.ExprVar, ast.ExprField, ast.ExprTupleIndex, ast.ExprArrayIndex:
		return true
	}
	return false
}

func (c *lowering) stmt(s *ast.Stmt) {
	saved := c.span
	c.span = s.Span
	defer func() { c.span = saved }()

	switch s.Kind {
	case ast.StmtLet:
		r := c.seq.Next()
		c.expr(s.Value, r)
		if isPlace(s.Value) && !c.isWord(s.Value.Type) {
			r = c.copyToStack(r, s.Value.Type)
		}
		c.bind(s.Name, r, s.Value.Type)
	case ast.StmtExpr:
		c.expr(s.Value, c.seq.Next())
	case ast.StmtAssign:
		c.assign(s)
	case ast.StmtReturn:
		c.ret(s)
	case ast.StmtWhile:
		cond, body, end := c.seq.NextLabel("while"), c.seq.Next(), c.seq.NextLabel("endwhile")
		c.emit(asm.LabelOp(cond))
		c.expr(s.Cond, body)
		c.emit(asm.Instr(asm.EQ, body, body, asm.Zero), asm.JumpNZ(body, end))
		c.loops = append(c.loops, loopFrame{cont: cond, brk: end})
		c.block(s.Body, c.seq.Next())
		c.loops = c.loops[:len(c.loops)-1]
		c.emit(asm.Jump(cond), asm.LabelOp(end))
	case ast.StmtBreak, ast.StmtContinue:
		if len(c.loops) == 0 {
			c.internal(diag.InternalInvariant, s.Span, "break or continue outside a loop")
			return
		}
		fr := c.loops[len(c.loops)-1]
		if s.Kind == ast.StmtBreak {
			c.emit(asm.Jump(fr.brk))
		} else {
			c.emit(asm.Jump(fr.cont))
		}
	case ast.StmtStorageWrite:
		c.unimplemented(s.Span, "storage writes in the legacy code generator")
	}
}

// copyToStack allocates a fresh stack copy of the value at src.
func (c *lowering) copyToStack(src asm.Register, t types.TypeID) asm.Register {
	n := c.size(t)
	ptr := c.seq.Next()
	c.emit(asm.Instr(asm.MOVE, ptr, asm.SP))
	if n > 0 {
		c.emit(asm.InstrImm(asm.CFEI, n*layout.WordBytes))
		c.copyWords(ptr, src, n)
	}
	return ptr
}

func (c *lowering) assign(s *ast.Stmt) {
	target, ok := c.ns.Lookup(s.Name)
	t, known := c.varType(s.Name)
	if !ok || !known {
		c.internal(diag.InternalInvariant, s.Span, "variable %q is not bound", s.Name)
		return
	}
	val := c.seq.Next()
	c.expr(s.Value, val)
	if len(s.Path) == 0 {
		if c.isWord(t) {
			c.emit(asm.Instr(asm.MOVE, target, val))
			return
		}
		c.copyWords(target, val, c.size(t))
		return
	}
	var off uint64
	cur := t
	for _, name := range s.Path {
		idx, ok := c.l.Types.FieldIndex(cur, name)
		if !ok {
			c.internal(diag.InternalFieldNotFound, s.Span, "field %q not found on %s", name, c.l.Types.String(cur))
			return
		}
		lay, ok := c.layoutOf(cur, s.Span)
		if !ok {
			return
		}
		off += lay.Fields[idx].OffsetWords
		cur = lay.Fields[idx].Type
	}
	c.writeAt(target, off, val, cur)
}

func (c *lowering) ret(s *ast.Stmt) {
	if n := len(c.inlines); n > 0 {
		fr := c.inlines[n-1]
		if s.Value != nil {
			c.expr(s.Value, fr.ret)
		}
		c.emit(asm.Jump(fr.end))
		return
	}
	if c.entry == nil {
		c.internal(diag.InternalInvariant, s.Span, "return outside a function")
		return
	}
	val := c.seq.Next()
	if s.Value != nil {
		c.expr(s.Value, val)
	}
	c.entryReturn(val, c.entry.Ret)
}
