package asmgen

import (
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/ir"
)

// Aggregates wider than a word live in memory and their values are
// pointers. Copy-type values live in registers.

func (fe *funcEmitter) emitLoad(v *ir.Value) error {
	ptr, err := fe.value(v.Instr.Operands[0])
	if err != nil {
		return err
	}
	n, err := fe.size(v.Type)
	if err != nil {
		return err
	}
	dst := fe.regs[v.ID]
	switch {
	case n == 0:
	case n == 1:
		fe.emitOp(asm.InstrImm(asm.LW, 0, dst, ptr))
	default:
		fe.allocSlot(dst, n)
		fe.copyWords(dst, ptr, n)
		fe.owned[v.ID] = true
	}
	return nil
}

func (fe *funcEmitter) emitStore(v *ir.Value) error {
	ops, err := fe.operands(v)
	if err != nil {
		return err
	}
	n, err := fe.size(fe.f.Value(v.Instr.Operands[1]).Type)
	if err != nil {
		return err
	}
	switch {
	case n == 0:
	case n == 1:
		fe.emitOp(asm.InstrImm(asm.SW, 0, ops[0], ops[1]))
	default:
		fe.copyWords(ops[0], ops[1], n)
	}
	return nil
}

func (fe *funcEmitter) emitGetElemPtr(v *ir.Value) error {
	ptr, err := fe.value(v.Instr.Operands[0])
	if err != nil {
		return err
	}
	elem, ok := fe.tin.PointeeOf(fe.f.Value(v.Instr.Operands[0]).Type)
	if !ok {
		return fmt.Errorf("get_elem_ptr on non-pointer v%d", v.Instr.Operands[0])
	}
	off, _, err := fe.lay.IndexOffsetWords(elem, v.Instr.Indices)
	if err != nil {
		return err
	}
	fe.addOffset(fe.regs[v.ID], ptr, off)
	return nil
}

func (fe *funcEmitter) emitExtractValue(v *ir.Value) error {
	aggID := v.Instr.Operands[0]
	agg, err := fe.value(aggID)
	if err != nil {
		return err
	}
	aggType := fe.f.Value(aggID).Type
	aggSize, err := fe.size(aggType)
	if err != nil {
		return err
	}
	off, leaf, err := fe.lay.IndexOffsetWords(aggType, v.Instr.Indices)
	if err != nil {
		return err
	}
	n, err := fe.size(leaf)
	if err != nil {
		return err
	}
	dst := fe.regs[v.ID]
	switch {
	case n == 0:
	case aggSize == 1:
		fe.emitOp(asm.Instr(asm.MOVE, dst, agg))
	case n == 1:
		fe.loadWord(dst, agg, off)
	default:
		fe.addOffset(dst, agg, off)
	}
	return nil
}

// emitInsertValue writes into a fresh copy of the aggregate unless this
// instruction is the only user of memory it owns.
func (fe *funcEmitter) emitInsertValue(v *ir.Value) error {
	aggID, valID := v.Instr.Operands[0], v.Instr.Operands[1]
	aggType := fe.f.Value(aggID).Type
	aggSize, err := fe.size(aggType)
	if err != nil {
		return err
	}
	off, leaf, err := fe.lay.IndexOffsetWords(aggType, v.Instr.Indices)
	if err != nil {
		return err
	}
	n, err := fe.size(leaf)
	if err != nil {
		return err
	}
	val, err := fe.value(valID)
	if err != nil {
		return err
	}
	dst := fe.regs[v.ID]
	if aggSize == 0 {
		return nil
	}
	if aggSize == 1 {
		if n == 1 {
			fe.emitOp(asm.Instr(asm.MOVE, dst, val))
			return nil
		}
		agg, err := fe.value(aggID)
		if err != nil {
			return err
		}
		fe.emitOp(asm.Instr(asm.MOVE, dst, agg))
		return nil
	}

	aggVal := fe.f.Value(aggID)
	switch {
	case aggVal.IsConst(ir.ConstUndef):
		fe.allocSlot(dst, aggSize)
		fe.clear(dst, aggSize)
	case fe.owned[aggID] && fe.uses[aggID] == 1:
		fe.emitOp(asm.Instr(asm.MOVE, dst, fe.regs[aggID]).WithComment("reuse"))
	default:
		src, err := fe.value(aggID)
		if err != nil {
			return err
		}
		fe.allocSlot(dst, aggSize)
		fe.copyWords(dst, src, aggSize)
	}
	fe.owned[v.ID] = true

	switch {
	case n == 0:
	case n == 1:
		fe.storeWord(dst, val, off)
	default:
		at := fe.seq.Next()
		fe.addOffset(at, dst, off)
		fe.copyWords(at, val, n)
	}
	return nil
}
