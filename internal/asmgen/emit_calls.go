package asmgen

import (
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/ir"
)

// emitCall passes arguments in $$arg0..$$arg5 and receives the result in
// $$retv. The callee saves every other register it touches.
func (fe *funcEmitter) emitCall(v *ir.Value) error {
	callee := fe.m.Func(v.Instr.Callee)
	if callee == nil {
		return fmt.Errorf("%s: call to unknown function %d", fe.f.Name, v.Instr.Callee)
	}
	if len(v.Instr.Operands) > asm.MaxArgs {
		return unimplemented(v.Span, "call to %s with %d arguments, at most %d are supported",
			callee.Name, len(v.Instr.Operands), asm.MaxArgs)
	}
	args, err := fe.operands(v)
	if err != nil {
		return err
	}
	for i, r := range args {
		fe.emitOp(asm.Instr(asm.MOVE, asm.ArgRegs[i], r))
	}
	fe.emitOp(asm.Call(FuncLabel(callee.Name)).WithComment("%s", callee.Name))
	n, err := fe.size(v.Type)
	if err != nil {
		return err
	}
	switch {
	case n == 0:
	case n == 1:
		fe.emitOp(asm.Instr(asm.MOVE, fe.regs[v.ID], asm.RetValue))
	default:
		return fmt.Errorf("call to %s returns %s by value, return demotion did not run",
			callee.Name, fe.tin.String(v.Type))
	}
	return nil
}

// emitContractCall issues CALL with the (address, selector, argument) frame
// pointer, the coin amount, the asset id pointer and the gas limit.
func (fe *funcEmitter) emitContractCall(v *ir.Value) error {
	ops, err := fe.operands(v)
	if err != nil {
		return err
	}
	fe.emitOp(asm.Instr(asm.CALL, ops[0], ops[1], ops[2], ops[3]))
	n, err := fe.size(v.Type)
	if err != nil {
		return err
	}
	dst := fe.regs[v.ID]
	switch {
	case n == 0:
	case n == 1:
		fe.emitOp(asm.Instr(asm.MOVE, dst, asm.Ret))
	default:
		fe.allocSlot(dst, n)
		fe.copyWords(dst, asm.Ret, n)
		fe.owned[v.ID] = true
	}
	return nil
}
