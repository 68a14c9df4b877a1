package asmgen

import (
	"swayc/internal/asm"
	"swayc/internal/ir"
)

// emitStorage lowers storage access. Keys are pointers to 32-byte values;
// the status register of every access is discarded.
func (fe *funcEmitter) emitStorage(v *ir.Value) error {
	ops, err := fe.operands(v)
	if err != nil {
		return err
	}
	status := fe.seq.Next()
	switch v.Instr.Op {
	case ir.OpStateLoadWord:
		fe.emitOp(asm.Instr(asm.SRW, fe.regs[v.ID], status, ops[0]))
	case ir.OpStateStoreWord:
		fe.emitOp(asm.Instr(asm.SWW, ops[0], status, ops[1]))
	case ir.OpStateLoadQuad:
		fe.emitOp(asm.Instr(asm.SRWQ, ops[1], status, ops[0], fe.constReg(v.Instr.Slots)))
	case ir.OpStateStoreQuad:
		fe.emitOp(asm.Instr(asm.SWWQ, ops[0], status, ops[1], fe.constReg(v.Instr.Slots)))
	}
	return nil
}
