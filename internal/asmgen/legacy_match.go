package asmgen

import (
	"swayc/internal/asm"
	"swayc/internal/ast"
	"swayc/internal/diag"
	"swayc/internal/layout"
	"swayc/internal/matcher"
	"swayc/internal/types"
)

// match lowers arms as a chain of requirement tests. Enum patterns are not
// supported here; the IR path handles them.
func (c *lowering) match(e *ast.Expr, ret asm.Register) {
	for _, arm := range e.Arms {
		if matcher.ContainsEnum(arm.Pattern) {
			c.unimplemented(arm.Pattern.Span, "enum patterns in the legacy code generator")
			return
		}
	}
	results := make([]matcher.Result, len(e.Arms))
	for i, arm := range e.Arms {
		res, err := matcher.Desugar(c.l.Types, e.X.Type, arm.Pattern)
		if err != nil {
			c.internal(diag.InternalInvariant, arm.Pattern.Span, "%v", err)
			return
		}
		results[i] = res
	}

	scrut := c.seq.Next()
	c.expr(e.X, scrut)
	end := c.seq.NextLabel("endmatch")
	for i, arm := range e.Arms {
		next := c.seq.NextLabel("arm")
		for _, req := range results[i].Requirements {
			v, ok := c.project(scrut, e.X.Type, req.Path)
			if !ok {
				return
			}
			lit := c.seq.Next()
			c.literal(req.Value, lit)
			t := c.seq.Next()
			if c.isWord(req.Type) {
				c.emit(asm.Instr(asm.EQ, t, v, lit))
			} else {
				c.emit(asm.Instr(asm.MEQ, t, v, lit, c.constReg(c.size(req.Type)*layout.WordBytes)))
			}
			c.emit(asm.Instr(asm.EQ, t, t, asm.Zero), asm.JumpNZ(t, next))
		}
		c.push()
		for _, b := range results[i].Bindings {
			v, ok := c.project(scrut, e.X.Type, b.Path)
			if !ok {
				c.pop()
				return
			}
			c.bind(b.Name, v, b.Type)
		}
		c.expr(arm.Body, ret)
		c.pop()
		c.emit(asm.Jump(end), asm.LabelOp(next))
	}
	c.emit(asm.Instr(asm.RVRT, asm.Zero).WithComment("no arm matched"), asm.LabelOp(end))
}

// project resolves a matcher path against the scrutinee at base.
func (c *lowering) project(base asm.Register, t types.TypeID, path []matcher.Projection) (asm.Register, bool) {
	if len(path) == 0 {
		return base, true
	}
	var off uint64
	cur := t
	for _, p := range path {
		lay, ok := c.layoutOf(cur, c.span)
		if !ok {
			return asm.Register{}, false
		}
		switch p.Kind {
		case matcher.ProjStructField, matcher.ProjTupleField:
			if p.Index >= uint64(len(lay.Fields)) {
				c.internal(diag.InternalFieldNotFound, c.span, "projection %s out of range", p)
				return asm.Register{}, false
			}
			off += lay.Fields[p.Index].OffsetWords
		case matcher.ProjArrayIndex:
			off += p.Index * lay.ElemWords
		default:
			c.unimplemented(c.span, "%s projection in the legacy code generator", p.Kind)
			return asm.Register{}, false
		}
		cur = p.Type
	}
	r := c.seq.Next()
	c.readAt(r, base, off, cur)
	return r, true
}
