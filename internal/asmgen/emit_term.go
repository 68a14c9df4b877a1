package asmgen

import (
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/ir"
	"swayc/internal/types"
)

func (fe *funcEmitter) emitTerminator(b ir.BlockID, v *ir.Value, next ir.BlockID) error {
	in := &v.Instr
	switch in.Op {
	case ir.OpBranch:
		t := in.Targets[0]
		if err := fe.emitEdge(b, t); err != nil {
			return err
		}
		if t != next {
			fe.emitOp(asm.Jump(fe.labels[t]))
		}
		return nil
	case ir.OpCondBranch:
		cond, err := fe.value(in.Operands[0])
		if err != nil {
			return err
		}
		then, els := in.Targets[0], in.Targets[1]
		if !fe.hasPhis(then) && !fe.hasPhis(els) {
			fe.emitOp(asm.JumpNZ(cond, fe.labels[then]))
			if els != next {
				fe.emitOp(asm.Jump(fe.labels[els]))
			}
			return nil
		}
		// Each edge gets its own copy sequence for the target's phis.
		edge := fe.seq.NextLabel("edge")
		fe.emitOp(asm.JumpNZ(cond, edge))
		if err := fe.emitEdge(b, els); err != nil {
			return err
		}
		fe.emitOp(asm.Jump(fe.labels[els]))
		fe.emitOp(asm.LabelOp(edge))
		if err := fe.emitEdge(b, then); err != nil {
			return err
		}
		if then != next {
			fe.emitOp(asm.Jump(fe.labels[then]))
		}
		return nil
	case ir.OpRet:
		return fe.emitReturn(v)
	case ir.OpRevert:
		code, err := fe.value(in.Operands[0])
		if err != nil {
			return err
		}
		fe.emitOp(asm.Instr(asm.RVRT, code))
		return nil
	}
	return fmt.Errorf("%s is not a terminator", in.Op)
}

func (fe *funcEmitter) hasPhis(b ir.BlockID) bool {
	bb := fe.f.Block(b)
	if bb == nil || len(bb.Instrs) == 0 {
		return false
	}
	return fe.f.Value(bb.Instrs[0]).Instr.Op == ir.OpPhi
}

// emitEdge copies the incoming values of to's phis for the edge from -> to.
// Sources are read into temporaries first so phis may feed each other.
func (fe *funcEmitter) emitEdge(from, to ir.BlockID) error {
	type move struct{ dst, tmp asm.Register }
	var moves []move
	for _, id := range fe.f.Block(to).Instrs {
		phi := fe.f.Value(id)
		if phi.Instr.Op != ir.OpPhi {
			break
		}
		dst := fe.regs[id]
		if dst == asm.Zero {
			continue
		}
		src := ir.NoValueID
		for _, inc := range phi.Instr.Incoming {
			if inc.Block == from {
				src = inc.Value
				break
			}
		}
		if src == ir.NoValueID {
			return fmt.Errorf("phi v%d in %s has no value for predecessor %s",
				id, fe.f.Block(to).Label, fe.f.Block(from).Label)
		}
		r, err := fe.value(src)
		if err != nil {
			return err
		}
		tmp := fe.seq.Next()
		fe.emitOp(asm.Instr(asm.MOVE, tmp, r))
		moves = append(moves, move{dst: dst, tmp: tmp})
	}
	for _, m := range moves {
		fe.emitOp(asm.Instr(asm.MOVE, m.dst, m.tmp))
	}
	return nil
}

// emitReturn leaves an entry with RET or RETD, and an internal function by
// restoring the caller's registers and jumping to $$reta.
func (fe *funcEmitter) emitReturn(v *ir.Value) error {
	val, err := fe.value(v.Instr.Operands[0])
	if err != nil {
		return err
	}
	f := fe.f
	if f.IsEntry {
		retType := f.Ret
		if f.DemotedRet != types.NoTypeID {
			retType = f.DemotedRet
		}
		n, err := fe.size(retType)
		if err != nil {
			return err
		}
		switch {
		case n == 0:
			fe.emitOp(asm.Instr(asm.RET, asm.Zero))
		case n == 1 && f.DemotedRet == types.NoTypeID:
			fe.emitOp(asm.Instr(asm.RET, val))
		default:
			fe.emitOp(asm.Instr(asm.RETD, val, fe.constReg(n*8)))
		}
		return nil
	}
	n, err := fe.size(f.Ret)
	if err != nil {
		return err
	}
	switch {
	case n == 0:
	case n == 1:
		fe.emitOp(asm.Instr(asm.MOVE, asm.RetValue, val))
	default:
		return fmt.Errorf("%s returns %s by value, return demotion did not run", f.Name, fe.tin.String(f.Ret))
	}
	fe.emitOp(asm.FrameFree(0))
	fe.emitOp(asm.PopAll(fe.out.Label))
	fe.emitOp(asm.Instr(asm.JMP, asm.RetAddr))
	return nil
}
