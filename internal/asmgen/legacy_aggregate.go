package asmgen

import (
	"fortio.org/safecast"

	"swayc/internal/asm"
	"swayc/internal/ast"
	"swayc/internal/diag"
	"swayc/internal/layout"
	"swayc/internal/types"
)

// instantiate builds a struct, tuple, array or enum on the stack:
//
//	move  ptr $sp
//	cfei  size*8
//	mcli  ptr size
//	sw / mcpi per field at its layout offset
//	move  ret ptr
//
// Enums load their tag from the data section before allocating.
func (c *lowering) instantiate(e *ast.Expr, ret asm.Register) {
	lay, ok := c.layoutOf(e.Type, e.Span)
	if !ok {
		return
	}
	tin := c.l.Types
	var tag asm.Register
	var tagValue uint64
	if e.Kind == ast.ExprEnum {
		v, found := tin.VariantTag(e.Type, e.Name)
		if !found {
			c.internal(diag.InternalFieldNotFound, e.Span, "variant %q not found on %s", e.Name, tin.String(e.Type))
			return
		}
		tagValue = v
		tag = c.seq.Next()
		c.emit(asm.LoadData(tag, c.ns.InsertDataValue(asm.WordLiteral(tagValue))).WithComment("tag %d", tagValue))
	}

	ptr := c.seq.Next()
	c.emit(asm.Instr(asm.MOVE, ptr, asm.SP))
	if lay.SizeWords > 0 {
		c.emit(
			asm.InstrImm(asm.CFEI, lay.SizeBytes()),
			asm.InstrImm(asm.MCLI, lay.SizeWords, ptr),
		)
	}

	switch e.Kind {
	case ast.ExprStruct:
		fields, err := ast.DeclaredFields(tin, e)
		if err != nil || len(fields) != len(lay.Fields) {
			c.internal(diag.InternalFieldNotFound, e.Span, "struct literal of %s: %v", tin.String(e.Type), err)
			return
		}
		for i, fi := range fields {
			if fi.Value == nil {
				continue
			}
			f := lay.Fields[i]
			c.initField(ptr, f.OffsetWords, f.Type, fi.Value)
		}
	case ast.ExprTuple:
		for i, el := range e.Elems {
			if i >= len(lay.Fields) {
				c.internal(diag.InternalFieldNotFound, e.Span, "tuple element %d out of range", i)
				return
			}
			f := lay.Fields[i]
			c.initField(ptr, f.OffsetWords, f.Type, el)
		}
	case ast.ExprArray:
		tt, _ := tin.Lookup(e.Type)
		for i, el := range e.Elems {
			c.initField(ptr, safecast.MustConv[uint64](i)*lay.ElemWords, tt.Elem, el)
		}
	case ast.ExprEnum:
		c.emit(asm.InstrImm(asm.SW, 0, ptr, tag))
		if e.X != nil {
			payload, ok := variantType(tin, e.Type, tagValue)
			if !ok {
				c.internal(diag.InternalFieldNotFound, e.Span, "variant %q has no payload", e.Name)
				return
			}
			c.initField(ptr, lay.TagWords, payload, e.X)
		}
	}
	c.emit(asm.Instr(asm.MOVE, ret, ptr))
}

func variantType(tin *types.Interner, enum types.TypeID, tag uint64) (types.TypeID, bool) {
	info, ok := tin.EnumInfo(enum)
	if !ok || tag >= uint64(len(info.Variants)) {
		return types.NoTypeID, false
	}
	return info.Variants[tag].Type, true
}

func (c *lowering) initField(ptr asm.Register, off uint64, t types.TypeID, val *ast.Expr) {
	r := c.seq.Next()
	c.expr(val, r)
	c.writeAt(ptr, off, r, t)
}

// access reads a struct field or tuple element: a word load for register
// values, base + offset*8 for everything else.
func (c *lowering) access(e *ast.Expr, ret asm.Register) {
	tin := c.l.Types
	baseType := e.X.Type
	lay, ok := c.layoutOf(baseType, e.Span)
	if !ok {
		return
	}
	idx := -1
	switch e.Kind {
	case ast.ExprField:
		if i, found := tin.FieldIndex(baseType, e.Name); found {
			idx = i
		}
	case ast.ExprTupleIndex:
		if i, err := safecast.Conv[int](e.Index); err == nil {
			idx = i
		}
	}
	if idx < 0 || idx >= len(lay.Fields) {
		_, err := layout.FieldNamed(lay, e.Name)
		c.internal(diag.InternalFieldNotFound, e.Span, "%s.%s: %v", tin.String(baseType), e.Name, err)
		return
	}
	base := c.seq.Next()
	c.expr(e.X, base)
	f := lay.Fields[idx]
	c.readAt(ret, base, f.OffsetWords, f.Type)
}

func (c *lowering) arrayIndex(e *ast.Expr, ret asm.Register) {
	lay, ok := c.layoutOf(e.X.Type, e.Span)
	if !ok {
		return
	}
	tt, _ := c.l.Types.Lookup(e.X.Type)
	base := c.seq.Next()
	c.expr(e.X, base)
	if e.Y.Kind == ast.ExprLit && e.Y.Lit.Kind == ast.LitUint {
		c.readAt(ret, base, e.Y.Lit.Uint*lay.ElemWords, tt.Elem)
		return
	}
	idx, off, addr := c.seq.Next(), c.seq.Next(), c.seq.Next()
	c.expr(e.Y, idx)
	c.emit(
		asm.Instr(asm.MUL, off, idx, c.constReg(lay.ElemWords*layout.WordBytes)),
		asm.Instr(asm.ADD, addr, base, off),
	)
	c.readAt(ret, addr, 0, tt.Elem)
}
