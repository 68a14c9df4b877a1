package asmgen

import (
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/ir"
)

// value returns the register holding id. Constants are materialised at
// every use so no register outlives the block that needs it.
func (fe *funcEmitter) value(id ir.ValueID) (asm.Register, error) {
	v := fe.f.Value(id)
	if v == nil {
		return asm.Register{}, fmt.Errorf("%s: unknown value v%d", fe.f.Name, id)
	}
	if v.Kind != ir.ValueConst {
		return fe.regs[id], nil
	}
	return fe.emitConst(v)
}

func (fe *funcEmitter) emitConst(v *ir.Value) (asm.Register, error) {
	c := v.Const
	switch c.Kind {
	case ir.ConstUnit:
		return asm.Zero, nil
	case ir.ConstBool:
		if c.Bool {
			return asm.One, nil
		}
		return asm.Zero, nil
	case ir.ConstUint:
		if c.Uint == 0 {
			return asm.Zero, nil
		}
		return fe.constReg(c.Uint), nil
	case ir.ConstB256:
		r := fe.seq.Next()
		fe.emitOp(asm.AddrData(r, fe.ns.InsertDataValue(asm.B256Literal(c.B256))))
		return r, nil
	case ir.ConstStr:
		r := fe.seq.Next()
		fe.emitOp(asm.AddrData(r, fe.ns.InsertDataValue(asm.StrLiteral(c.Str))))
		return r, nil
	case ir.ConstUndef:
		n, err := fe.size(v.Type)
		if err != nil {
			return asm.Register{}, err
		}
		if n <= 1 {
			return asm.Zero, nil
		}
		r := fe.seq.Next()
		fe.allocSlot(r, n)
		fe.clear(r, n)
		return r, nil
	}
	return asm.Register{}, fmt.Errorf("unknown constant kind %d", c.Kind)
}

// clear zeroes n words at ptr.
func (fe *funcEmitter) clear(ptr asm.Register, n uint64) {
	if n > 0 {
		fe.emitOp(asm.InstrImm(asm.MCLI, n, ptr))
	}
}
