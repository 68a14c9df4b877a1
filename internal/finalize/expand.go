package finalize

import (
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/layout"
)

type funcContext struct {
	fn    *asm.Function
	alloc *allocation
}

func (fc *funcContext) frameBytes() uint64 {
	return (fc.fn.FrameWords + fc.alloc.spills()) * layout.WordBytes
}

// fixup patches the immediate of code[at] once every label is placed.
type fixup struct {
	at    int
	label asm.Label
}

type expander struct {
	data   *asm.DataSection
	code   []Instr
	labels map[asm.Label]uint64
	fixups []fixup
	// dataBase lists the MOVI instructions that load the code size.
	dataBase []int
}

func newExpander(data *asm.DataSection) *expander {
	return &expander{data: data, labels: make(map[asm.Label]uint64)}
}

func (x *expander) emit(op asm.Op, opc asm.Opcode, imm uint64, regs ...asm.Register) {
	x.code = append(x.code, Instr{Opcode: opc, Regs: regs, Imm: imm, Comment: op.Comment, Span: op.Span})
}

func (x *expander) emitRef(op asm.Op, opc asm.Opcode, label asm.Label, regs ...asm.Register) {
	x.fixups = append(x.fixups, fixup{at: len(x.code), label: label})
	x.emit(op, opc, 0, regs...)
}

// expand turns organisational ops into instructions. fc is nil for the
// program prologue.
func (x *expander) expand(ops []asm.Op, fc *funcContext) error {
	for _, op := range ops {
		for _, r := range op.Regs {
			if r.IsVirtual() {
				return fmt.Errorf("%s still holds virtual register %s", op, r)
			}
		}
		switch op.Kind {
		case asm.KindInstr:
			if n := op.Opcode.Info().Format.Regs(); len(op.Regs) != n {
				return fmt.Errorf("%s takes %d registers, got %d", op.Opcode, n, len(op.Regs))
			}
			x.emit(op, op.Opcode, op.Imm, op.Regs...)
		case asm.KindLabel:
			if _, dup := x.labels[op.Label]; dup {
				return fmt.Errorf("label %s defined twice", op.Label)
			}
			x.labels[op.Label] = uint64(len(x.code))
		case asm.KindJump:
			x.emitRef(op, asm.JI, op.Label)
		case asm.KindJumpNZ:
			x.emitRef(op, asm.JNZI, op.Label, op.Regs[0])
		case asm.KindCall:
			ret := uint64(len(x.code) + 2)
			x.emit(op, asm.MOVI, ret, asm.RetAddr)
			x.emitRef(op, asm.JI, op.Label)
		case asm.KindLoadData:
			x.loadData(op)
		case asm.KindAddrData:
			x.addrData(op)
		case asm.KindDataBase:
			x.dataBase = append(x.dataBase, len(x.code))
			x.emit(op, asm.MOVI, 0, asm.DataBase)
			x.emit(op, asm.ADD, 0, asm.DataBase, asm.DataBase, asm.IS)
		case asm.KindPushAll, asm.KindPopAll:
			if fc == nil {
				return fmt.Errorf("%s outside a function", op)
			}
			x.saveRestore(op, fc)
		case asm.KindFrameAlloc, asm.KindFrameFree:
			if fc == nil {
				return fmt.Errorf("%s outside a function", op)
			}
			n := fc.frameBytes()
			if n == 0 {
				continue
			}
			opc := asm.CFEI
			if op.Kind == asm.KindFrameFree {
				opc = asm.CFSI
			}
			x.emit(op, opc, n)
		case asm.KindComment:
		default:
			return fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}
	return nil
}

// loadData reads a data word relative to $$ds. Offsets beyond the LW
// immediate are added to the destination register first.
func (x *expander) loadData(op asm.Op) {
	dst := op.Regs[0]
	off := x.data.OffsetWords(op.Data)
	if fitsImm(off, 12) {
		x.emit(op, asm.LW, off, dst, asm.DataBase)
		return
	}
	x.emit(op, asm.MOVI, off*layout.WordBytes, dst)
	x.emit(op, asm.ADD, 0, dst, dst, asm.DataBase)
	x.emit(op, asm.LW, 0, dst, dst)
}

func (x *expander) addrData(op asm.Op) {
	dst := op.Regs[0]
	off := x.data.OffsetWords(op.Data) * layout.WordBytes
	if fitsImm(off, 12) {
		x.emit(op, asm.ADDI, off, dst, asm.DataBase)
		return
	}
	x.emit(op, asm.MOVI, off, dst)
	x.emit(op, asm.ADD, 0, dst, asm.DataBase, dst)
}

// Registers r16..r39 are pushed by PSHL and r40..r63 by PSHH; bit i of the
// mask selects the i-th register of the range.
const (
	lowSaveBase  = 16
	highSaveBase = 40
)

// saveMasks covers every allocated register plus $$reta and $$locbase,
// which the caller expects back unchanged.
func saveMasks(fc *funcContext) (low, high uint64) {
	regs := append([]asm.Register{asm.RetAddr, asm.LocalsBase}, fc.alloc.used...)
	for _, r := range regs {
		switch {
		case r.Num >= highSaveBase:
			high |= 1 << (r.Num - highSaveBase)
		case r.Num >= lowSaveBase:
			low |= 1 << (r.Num - lowSaveBase)
		}
	}
	return low, high
}

func (x *expander) saveRestore(op asm.Op, fc *funcContext) {
	low, high := saveMasks(fc)
	if op.Kind == asm.KindPushAll {
		if low != 0 {
			x.emit(op, asm.PSHL, low)
		}
		if high != 0 {
			x.emit(op, asm.PSHH, high)
		}
		return
	}
	if high != 0 {
		x.emit(op, asm.POPH, high)
	}
	if low != 0 {
		x.emit(op, asm.POPL, low)
	}
}

// resolve pads the code to a whole word, patches the data section base
// and fills in label immediates.
func (x *expander) resolve() error {
	if len(x.code)%2 != 0 {
		x.code = append(x.code, Instr{Opcode: asm.NOOP})
	}
	codeBytes := uint64(len(x.code)) * InstrBytes
	for _, at := range x.dataBase {
		if !fitsImm(codeBytes, 18) {
			return fmt.Errorf("code size %d bytes exceeds the data section base immediate", codeBytes)
		}
		x.code[at].Imm = codeBytes
	}
	for _, fx := range x.fixups {
		target, ok := x.labels[fx.label]
		if !ok {
			return fmt.Errorf("undefined label %s", fx.label)
		}
		x.code[fx.at].Imm = target
	}
	return nil
}
