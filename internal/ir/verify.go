package ir

import (
	"errors"
	"fmt"
	"slices"

	"fortio.org/safecast"

	"swayc/internal/types"
)

// VerifyOptions selects the checks to run. The structural checks always
// run; Strict adds operand type checking.
type VerifyOptions struct {
	Strict bool
}

// VerifyError is one violated invariant.
type VerifyError struct {
	Func  string
	Block string
	Value ValueID
	Msg   string
}

func (e *VerifyError) Error() string {
	switch {
	case e.Block == "":
		return fmt.Sprintf("function %s: %s", e.Func, e.Msg)
	case e.Value.IsValid():
		return fmt.Sprintf("function %s, %s, v%d: %s", e.Func, e.Block, e.Value, e.Msg)
	}
	return fmt.Sprintf("function %s, %s: %s", e.Func, e.Block, e.Msg)
}

// Verify checks module invariants and returns every violation joined.
func Verify(m *Module, opts VerifyOptions) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		v := verifier{m: m, f: f, strict: opts.Strict}
		v.run()
		errs = append(errs, v.errs...)
	}
	return errors.Join(errs...)
}

type verifier struct {
	m      *Module
	f      *Function
	strict bool
	preds  [][]BlockID
	errs   []error
}

func (v *verifier) fail(b *Block, id ValueID, format string, args ...any) {
	e := &VerifyError{Func: v.f.Name, Value: id, Msg: fmt.Sprintf(format, args...)}
	if b != nil {
		e.Block = b.Label
	}
	v.errs = append(v.errs, e)
}

func (v *verifier) run() {
	f := v.f
	if len(f.Blocks) == 0 {
		v.fail(nil, NoValueID, "function has no blocks")
		return
	}
	if f.Block(f.Entry) == nil {
		v.fail(nil, NoValueID, "entry block %d does not exist", f.Entry)
		return
	}
	v.preds = f.PredecessorMap()
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if bb.ID != safecast.MustConv[BlockID](i) {
			v.fail(bb, NoValueID, "block id %d does not match its position %d", bb.ID, i)
		}
		v.block(bb)
	}
}

func (v *verifier) block(bb *Block) {
	f := v.f
	if len(bb.Instrs) == 0 {
		v.fail(bb, NoValueID, "empty block has no terminator")
		return
	}
	seenNonPhi := false
	for pos, id := range bb.Instrs {
		val := f.Value(id)
		if val == nil || val.Kind != ValueInstr {
			v.fail(bb, id, "block lists a non-instruction value")
			continue
		}
		if val.Block != bb.ID {
			v.fail(bb, id, "instruction claims to live in block %d", val.Block)
		}
		last := pos == len(bb.Instrs)-1
		if val.IsTerminator() && !last {
			v.fail(bb, id, "terminator %s is followed by %d instruction(s)", val.Instr.Op, len(bb.Instrs)-1-pos)
		}
		if last && !val.IsTerminator() {
			v.fail(bb, id, "block does not end in a terminator")
		}
		if val.Instr.Op == OpPhi {
			if seenNonPhi {
				v.fail(bb, id, "phi after a non-phi instruction")
			}
			v.phi(bb, val)
		} else {
			seenNonPhi = true
		}
		v.operandsExist(bb, val)
		v.targets(bb, val)
		if val.Instr.Op == OpRet {
			v.ret(bb, val)
		}
		if v.strict {
			v.types(bb, val)
		}
	}
}

func (v *verifier) operandsExist(bb *Block, val *Value) {
	for _, op := range Operands(val) {
		ov := v.f.Value(op)
		if ov == nil {
			v.fail(bb, val.ID, "operand v%d does not belong to the function", op)
			continue
		}
		if ov.Kind == ValueInstr && !ov.Block.IsValid() {
			v.fail(bb, val.ID, "operand v%d is a detached instruction", op)
		}
	}
}

func (v *verifier) targets(bb *Block, val *Value) {
	for _, t := range val.Instr.Targets {
		if v.f.Block(t) == nil {
			v.fail(bb, val.ID, "branch target %d does not exist", t)
		}
	}
	switch val.Instr.Op {
	case OpBranch:
		if len(val.Instr.Targets) != 1 {
			v.fail(bb, val.ID, "br needs exactly one target")
		}
	case OpCondBranch:
		if len(val.Instr.Targets) != 2 || len(val.Instr.Operands) != 1 {
			v.fail(bb, val.ID, "cbr needs a condition and two targets")
		}
	}
}

func (v *verifier) ret(bb *Block, val *Value) {
	if len(val.Instr.Operands) != 1 {
		v.fail(bb, val.ID, "ret needs exactly one value")
		return
	}
	rv := v.f.Value(val.Instr.Operands[0])
	if rv == nil {
		return
	}
	if rv.Type != v.f.Ret && !v.isRecovery(rv.Type) {
		v.fail(bb, val.ID, "ret of %s in function returning %s", v.typ(rv.Type), v.typ(v.f.Ret))
	}
}

func (v *verifier) phi(bb *Block, val *Value) {
	preds := v.preds[bb.ID]
	seen := make(map[BlockID]bool, len(val.Instr.Incoming))
	for _, in := range val.Instr.Incoming {
		if seen[in.Block] {
			v.fail(bb, val.ID, "phi lists predecessor %s more than once", v.label(in.Block))
		}
		seen[in.Block] = true
		if !slices.Contains(preds, in.Block) {
			v.fail(bb, val.ID, "phi lists %s which is not a predecessor", v.label(in.Block))
		}
		if v.strict {
			if iv := v.f.Value(in.Value); iv != nil && iv.Type != val.Type && !v.isRecovery(iv.Type) {
				v.fail(bb, val.ID, "phi incoming %s from %s, want %s", v.typ(iv.Type), v.label(in.Block), v.typ(val.Type))
			}
		}
	}
}

// types checks operand types. Error-recovery values are accepted anywhere.
func (v *verifier) types(bb *Block, val *Value) {
	in := &val.Instr
	opType := func(i int) types.TypeID {
		if i >= len(in.Operands) {
			return types.NoTypeID
		}
		if ov := v.f.Value(in.Operands[i]); ov != nil {
			return ov.Type
		}
		return types.NoTypeID
	}
	tin := v.m.Types
	switch in.Op {
	case OpBinary:
		a, b := opType(0), opType(1)
		if a != b && !v.isRecovery(a) && !v.isRecovery(b) {
			v.fail(bb, val.ID, "%s on mismatched operands %s and %s", in.BinOp, v.typ(a), v.typ(b))
		}
		if k := tin.KindOf(a); k != types.KindUint && k != types.KindByte && !v.isRecovery(a) {
			v.fail(bb, val.ID, "%s on non-integer %s", in.BinOp, v.typ(a))
		}
	case OpCmp:
		a, b := opType(0), opType(1)
		if a != b && !v.isRecovery(a) && !v.isRecovery(b) {
			v.fail(bb, val.ID, "cmp on mismatched operands %s and %s", v.typ(a), v.typ(b))
		}
	case OpCondBranch:
		if c := opType(0); c != tin.Builtins().Bool && !v.isRecovery(c) {
			v.fail(bb, val.ID, "cbr condition has type %s", v.typ(c))
		}
	case OpLoad:
		if _, ok := tin.PointeeOf(opType(0)); !ok {
			v.fail(bb, val.ID, "load from non-pointer %s", v.typ(opType(0)))
		}
	case OpStore:
		elem, ok := tin.PointeeOf(opType(0))
		if !ok {
			v.fail(bb, val.ID, "store to non-pointer %s", v.typ(opType(0)))
		} else if vt := opType(1); vt != elem && !v.isRecovery(vt) {
			v.fail(bb, val.ID, "store of %s through pointer to %s", v.typ(vt), v.typ(elem))
		}
	case OpInsertValue:
		leaf := v.indexType(opType(0), in.Indices)
		if vt := opType(1); leaf != vt && !v.isRecovery(vt) {
			v.fail(bb, val.ID, "insert_value of %s at %s of type %s", v.typ(vt), indexList(in.Indices), v.typ(leaf))
		}
	case OpCall:
		callee := v.m.Func(in.Callee)
		if callee == nil {
			v.fail(bb, val.ID, "call to unknown function %d", in.Callee)
			return
		}
		if len(callee.Params) != len(in.Operands) {
			v.fail(bb, val.ID, "call to %s with %d arguments, want %d", callee.Name, len(in.Operands), len(callee.Params))
			return
		}
		for i, p := range callee.Params {
			want := callee.Value(p).Type
			if got := opType(i); got != want && !v.isRecovery(got) {
				v.fail(bb, val.ID, "argument %d of %s has type %s, want %s", i, callee.Name, v.typ(got), v.typ(want))
			}
		}
	}
}

func (v *verifier) indexType(ty types.TypeID, idx []uint64) types.TypeID {
	cur := ty
	for _, i := range idx {
		next, ok := v.m.Layout.ElemType(cur, i)
		if !ok {
			return types.NoTypeID
		}
		cur = next
	}
	return cur
}

func (v *verifier) isRecovery(t types.TypeID) bool {
	return v.m.Types.KindOf(t) == types.KindErrorRecovery
}

func (v *verifier) typ(t types.TypeID) string {
	return v.m.Types.String(t)
}

func (v *verifier) label(b BlockID) string {
	if bb := v.f.Block(b); bb != nil {
		return bb.Label
	}
	return fmt.Sprintf("<block %d>", b)
}
