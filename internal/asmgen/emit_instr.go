package asmgen

import (
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/ir"
	"swayc/internal/types"
)

var binOpcodes = map[ir.BinOp]asm.Opcode{
	ir.BinAdd: asm.ADD,
	ir.BinSub: asm.SUB,
	ir.BinMul: asm.MUL,
	ir.BinDiv: asm.DIV,
	ir.BinMod: asm.MOD,
	ir.BinAnd: asm.AND,
	ir.BinOr:  asm.OR,
	ir.BinXor: asm.XOR,
	ir.BinShl: asm.SLL,
	ir.BinShr: asm.SRL,
}

func (fe *funcEmitter) emitInstr(v *ir.Value) error {
	in := &v.Instr
	dst := fe.regs[v.ID]
	switch in.Op {
	case ir.OpNop, ir.OpPhi:
		return nil
	case ir.OpBinary:
		return fe.emitBinary(v)
	case ir.OpCmp:
		return fe.emitCmp(v)
	case ir.OpNot:
		x, err := fe.value(in.Operands[0])
		if err != nil {
			return err
		}
		if fe.tin.KindOf(v.Type) == types.KindBool {
			fe.emitOp(asm.Instr(asm.EQ, dst, x, asm.Zero))
			return nil
		}
		fe.emitOp(asm.Instr(asm.NOT, dst, x))
		fe.mask(dst, v.Type)
		return nil
	case ir.OpCall:
		return fe.emitCall(v)
	case ir.OpContractCall:
		return fe.emitContractCall(v)
	case ir.OpGetLocal:
		fe.addOffset(dst, asm.LocalsBase, fe.localOff[in.Local])
		return nil
	case ir.OpLoad:
		return fe.emitLoad(v)
	case ir.OpStore:
		return fe.emitStore(v)
	case ir.OpGetElemPtr:
		return fe.emitGetElemPtr(v)
	case ir.OpInsertValue:
		return fe.emitInsertValue(v)
	case ir.OpExtractValue:
		return fe.emitExtractValue(v)
	case ir.OpStateLoadWord, ir.OpStateStoreWord, ir.OpStateLoadQuad, ir.OpStateStoreQuad:
		return fe.emitStorage(v)
	case ir.OpLog:
		return fe.emitLog(v)
	case ir.OpPtrToInt, ir.OpCastPtr:
		x, err := fe.value(in.Operands[0])
		if err != nil {
			return err
		}
		fe.emitOp(asm.Instr(asm.MOVE, dst, x))
		return nil
	}
	return fmt.Errorf("%s: cannot lower %s", fe.f.Name, in.Op)
}

func (fe *funcEmitter) operands(v *ir.Value) ([]asm.Register, error) {
	out := make([]asm.Register, len(v.Instr.Operands))
	for i, id := range v.Instr.Operands {
		r, err := fe.value(id)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (fe *funcEmitter) emitBinary(v *ir.Value) error {
	ops, err := fe.operands(v)
	if err != nil {
		return err
	}
	opc, ok := binOpcodes[v.Instr.BinOp]
	if !ok {
		return fmt.Errorf("unknown binary operator %s", v.Instr.BinOp)
	}
	dst := fe.regs[v.ID]
	fe.emitOp(asm.Instr(opc, dst, ops[0], ops[1]))
	fe.mask(dst, v.Type)
	return nil
}

// mask truncates r to the width of integer type t.
func (fe *funcEmitter) mask(r asm.Register, t types.TypeID) {
	tt, ok := fe.tin.Lookup(t)
	if !ok {
		return
	}
	var m uint64
	switch tt.Kind {
	case types.KindByte:
		m = 0xff
	case types.KindUint:
		if tt.Width >= types.Width64 {
			return
		}
		m = 1<<uint(tt.Width) - 1
	default:
		return
	}
	if fitsImm(m, 12) {
		fe.emitOp(asm.InstrImm(asm.ANDI, m, r, r))
		return
	}
	fe.emitOp(asm.Instr(asm.AND, r, r, fe.constReg(m)))
}

func (fe *funcEmitter) emitCmp(v *ir.Value) error {
	ops, err := fe.operands(v)
	if err != nil {
		return err
	}
	x, y := ops[0], ops[1]
	dst := fe.regs[v.ID]
	opType := fe.f.Value(v.Instr.Operands[0]).Type
	n, err := fe.size(opType)
	if err != nil {
		return err
	}
	pred := v.Instr.Pred
	switch {
	case n == 0:
		if pred == ir.PredEq || pred == ir.PredLe || pred == ir.PredGe {
			fe.emitOp(asm.Instr(asm.MOVE, dst, asm.One))
		} else {
			fe.emitOp(asm.Instr(asm.MOVE, dst, asm.Zero))
		}
		return nil
	case n > 1:
		if pred != ir.PredEq && pred != ir.PredNe {
			return unimplemented(v.Span, "ordering comparison of %s", fe.tin.String(opType))
		}
		fe.emitOp(asm.Instr(asm.MEQ, dst, x, y, fe.constReg(n*8)))
		if pred == ir.PredNe {
			fe.emitOp(asm.Instr(asm.EQ, dst, dst, asm.Zero))
		}
		return nil
	}
	switch pred {
	case ir.PredEq:
		fe.emitOp(asm.Instr(asm.EQ, dst, x, y))
	case ir.PredNe:
		fe.emitOp(asm.Instr(asm.EQ, dst, x, y))
		fe.emitOp(asm.Instr(asm.EQ, dst, dst, asm.Zero))
	case ir.PredLt:
		fe.emitOp(asm.Instr(asm.LT, dst, x, y))
	case ir.PredGt:
		fe.emitOp(asm.Instr(asm.GT, dst, x, y))
	case ir.PredLe:
		fe.emitOp(asm.Instr(asm.GT, dst, x, y))
		fe.emitOp(asm.Instr(asm.EQ, dst, dst, asm.Zero))
	case ir.PredGe:
		fe.emitOp(asm.Instr(asm.LT, dst, x, y))
		fe.emitOp(asm.Instr(asm.EQ, dst, dst, asm.Zero))
	default:
		return fmt.Errorf("unknown predicate %d", pred)
	}
	return nil
}

func (fe *funcEmitter) emitLog(v *ir.Value) error {
	x, err := fe.value(v.Instr.Operands[0])
	if err != nil {
		return err
	}
	n, err := fe.size(fe.f.Value(v.Instr.Operands[0]).Type)
	if err != nil {
		return err
	}
	if n <= 1 {
		fe.emitOp(asm.Instr(asm.LOG, x, asm.Zero, asm.Zero, asm.Zero))
		return nil
	}
	fe.emitOp(asm.Instr(asm.LOGD, asm.Zero, asm.Zero, x, fe.constReg(n*8)))
	return nil
}
