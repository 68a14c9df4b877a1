package asmgen

import (
	"errors"
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/ir"
	"swayc/internal/layout"
	"swayc/internal/source"
	"swayc/internal/types"
)

type funcEmitter struct {
	m   *ir.Module
	f   *ir.Function
	tin *types.Interner
	lay *layout.LayoutEngine
	seq *asm.RegisterSequencer
	ns  *asm.Namespace
	out *asm.Function

	regs     []asm.Register
	localOff []uint64
	frame    uint64
	labels   []asm.Label
	uses     []int
	// owned marks aggregate values whose memory no other value aliases.
	owned []bool
	span  source.Span
}

func newFuncEmitter(m *ir.Module, f *ir.Function) *funcEmitter {
	ns := asm.NewNamespace()
	return &funcEmitter{
		m:   m,
		f:   f,
		tin: m.Types,
		lay: m.Layout,
		seq: asm.NewSequencer(f.Name),
		ns:  ns,
		out: &asm.Function{
			Name:        f.Name,
			Label:       FuncLabel(f.Name),
			IsEntry:     f.IsEntry,
			HasSelector: f.HasSelector,
			Selector:    f.Selector,
			Data:        ns.Data(),
		},
	}
}

func (fe *funcEmitter) emitOp(op asm.Op) {
	if op.Span.IsZero() {
		op.Span = fe.span
	}
	fe.out.Emit(op)
}

func (fe *funcEmitter) emit() error {
	f := fe.f
	if len(f.Blocks) == 0 {
		return fmt.Errorf("function %s has no blocks", f.Name)
	}
	if err := fe.layoutLocals(); err != nil {
		return err
	}
	fe.uses = f.UseCounts()
	fe.owned = make([]bool, len(f.Values))
	fe.regs = make([]asm.Register, len(f.Values))
	for i := range f.Values {
		v := &f.Values[i]
		if v.Kind == ir.ValueConst {
			continue
		}
		if n, err := fe.size(v.Type); err != nil {
			return err
		} else if n == 0 {
			fe.regs[i] = asm.Zero
			continue
		}
		fe.regs[i] = fe.seq.Next()
	}
	fe.labels = make([]asm.Label, len(f.Blocks))
	for i := range f.Blocks {
		fe.labels[i] = fe.seq.NextLabel(f.Blocks[i].Label)
	}

	fe.span = f.Span
	fe.emitOp(asm.LabelOp(fe.out.Label))
	if err := fe.emitPrologue(); err != nil {
		return err
	}
	order := fe.blockOrder()
	for i, b := range order {
		next := ir.NoBlockID
		if i+1 < len(order) {
			next = order[i+1]
		}
		if err := fe.emitBlock(b, next); err != nil {
			return err
		}
	}
	for i := range fe.out.Ops {
		switch fe.out.Ops[i].Kind {
		case asm.KindFrameAlloc, asm.KindFrameFree:
			fe.out.Ops[i].Imm = fe.frame
		}
	}
	fe.out.FrameWords = fe.frame
	fe.out.VirtualRegs = fe.seq.Issued()
	return nil
}

// layoutLocals assigns every local a fixed word offset from $$locbase.
func (fe *funcEmitter) layoutLocals() error {
	fe.localOff = make([]uint64, len(fe.f.Locals))
	for i, l := range fe.f.Locals {
		n, err := fe.size(l.Type)
		if err != nil {
			return err
		}
		fe.localOff[i] = fe.frame
		fe.frame += n
	}
	return nil
}

// blockOrder puts the entry block first and keeps the rest in id order.
func (fe *funcEmitter) blockOrder() []ir.BlockID {
	out := make([]ir.BlockID, 0, len(fe.f.Blocks))
	out = append(out, fe.f.Entry)
	for i := range fe.f.Blocks {
		if id := fe.f.Blocks[i].ID; id != fe.f.Entry {
			out = append(out, id)
		}
	}
	return out
}

func (fe *funcEmitter) emitPrologue() error {
	f := fe.f
	if !f.IsEntry {
		if len(f.Params) > asm.MaxArgs {
			return unimplemented(f.Span, "function %s takes %d arguments, at most %d are supported", f.Name, len(f.Params), asm.MaxArgs)
		}
		fe.emitOp(asm.PushAll(fe.out.Label))
	}
	fe.emitOp(asm.Instr(asm.MOVE, asm.LocalsBase, asm.SP))
	fe.emitOp(asm.FrameAlloc(0))
	if !f.IsEntry {
		for i, p := range f.Params {
			if r := fe.regs[p]; r != asm.Zero {
				fe.emitOp(asm.Instr(asm.MOVE, r, asm.ArgRegs[i]))
			}
		}
		return nil
	}
	return fe.emitEntryParams()
}

// emitEntryParams reads entry arguments. A contract method receives its only
// copy-type argument directly in the call frame, otherwise a pointer to the
// argument tuple.
func (fe *funcEmitter) emitEntryParams() error {
	f := fe.f
	if len(f.Params) == 0 {
		return nil
	}
	if !f.HasSelector {
		return unimplemented(f.Span, "parameters of %s entry %s", fe.m.Kind, f.Name)
	}
	if len(f.Params) == 1 {
		if r := fe.regs[f.Params[0]]; r != asm.Zero {
			fe.emitOp(asm.InstrImm(asm.LW, FrameArgWord, r, asm.FP).WithComment("argument"))
		}
		return nil
	}
	base := fe.seq.Next()
	fe.emitOp(asm.InstrImm(asm.LW, FrameArgWord, base, asm.FP).WithComment("argument tuple"))
	var off uint64
	for _, id := range f.Params {
		p := f.Value(id)
		n, err := fe.size(p.Type)
		if err != nil {
			return err
		}
		switch {
		case n == 0:
		case n == 1:
			fe.loadWord(fe.regs[id], base, off)
		default:
			fe.addOffset(fe.regs[id], base, off)
		}
		off += n
	}
	return nil
}

func (fe *funcEmitter) emitBlock(b, next ir.BlockID) error {
	bb := fe.f.Block(b)
	fe.emitOp(asm.LabelOp(fe.labels[b]))
	for _, id := range bb.Instrs {
		v := fe.f.Value(id)
		fe.span = v.Span
		var err error
		if v.IsTerminator() {
			err = fe.emitTerminator(b, v, next)
		} else {
			err = fe.emitInstr(v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (fe *funcEmitter) size(t types.TypeID) (uint64, error) {
	if fe.tin.KindOf(t) == types.KindErrorRecovery {
		return 0, fmt.Errorf("error-recovery value reached code generation")
	}
	n, err := fe.lay.SizeOf(t)
	if err != nil {
		if errors.Is(err, layout.ErrAggregateTooLarge) {
			return 0, unimplemented(fe.span, "%v", err)
		}
		return 0, err
	}
	return n, nil
}

func (fe *funcEmitter) isCopy(t types.TypeID) bool {
	n, err := fe.lay.SizeOf(t)
	return err == nil && n == 1
}

// allocSlot reserves n frame words for an aggregate value and points dst
// at them.
func (fe *funcEmitter) allocSlot(dst asm.Register, n uint64) {
	fe.addOffset(dst, asm.LocalsBase, fe.frame)
	fe.frame += n
}

// addOffset computes dst = base + words*8.
func (fe *funcEmitter) addOffset(dst, base asm.Register, words uint64) {
	bytes := words * layout.WordBytes
	switch {
	case bytes == 0:
		fe.emitOp(asm.Instr(asm.MOVE, dst, base))
	case fitsImm(bytes, 12):
		fe.emitOp(asm.InstrImm(asm.ADDI, bytes, dst, base))
	default:
		tmp := fe.constReg(bytes)
		fe.emitOp(asm.Instr(asm.ADD, dst, base, tmp))
	}
}

// loadWord loads the word at base + words*8.
func (fe *funcEmitter) loadWord(dst, base asm.Register, words uint64) {
	if fitsImm(words, 12) {
		fe.emitOp(asm.InstrImm(asm.LW, words, dst, base))
		return
	}
	addr := fe.seq.Next()
	fe.addOffset(addr, base, words)
	fe.emitOp(asm.InstrImm(asm.LW, 0, dst, addr))
}

// storeWord stores val at base + words*8.
func (fe *funcEmitter) storeWord(base, val asm.Register, words uint64) {
	if fitsImm(words, 12) {
		fe.emitOp(asm.InstrImm(asm.SW, words, base, val))
		return
	}
	addr := fe.seq.Next()
	fe.addOffset(addr, base, words)
	fe.emitOp(asm.InstrImm(asm.SW, 0, addr, val))
}

// copyWords copies n words from src to dst.
func (fe *funcEmitter) copyWords(dst, src asm.Register, n uint64) {
	switch {
	case n == 0:
	case fitsImm(n, 12):
		fe.emitOp(asm.InstrImm(asm.MCPI, n, dst, src))
	default:
		fe.emitOp(asm.Instr(asm.MCP, dst, src, fe.constReg(n*layout.WordBytes)))
	}
}

// constReg materialises v in a fresh register.
func (fe *funcEmitter) constReg(v uint64) asm.Register {
	r := fe.seq.Next()
	if fitsImm(v, 18) {
		fe.emitOp(asm.InstrImm(asm.MOVI, v, r))
	} else {
		fe.emitOp(asm.LoadData(r, fe.ns.InsertDataValue(asm.WordLiteral(v))))
	}
	return r
}

func fitsImm(v uint64, bits uint) bool {
	return v < 1<<bits
}
