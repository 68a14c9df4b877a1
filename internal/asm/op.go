package asm

import (
	"fmt"
	"strings"

	"swayc/internal/source"
)

// OpKind separates concrete instructions from organisational ops the
// finalizer expands.
type OpKind uint8

const (
	// KindInstr is a concrete instruction.
	KindInstr OpKind = iota
	// KindLabel marks a jump target.
	KindLabel
	// KindJump is an unconditional jump to Label.
	KindJump
	// KindJumpNZ jumps to Label when Regs[0] is non-zero.
	KindJumpNZ
	// KindCall saves the return address in $$reta and jumps to Label.
	KindCall
	// KindLoadData loads the word at Data into Regs[0].
	KindLoadData
	// KindAddrData puts the address of Data into Regs[0].
	KindAddrData
	// KindPushAll saves the callee-saved registers the function uses.
	KindPushAll
	// KindPopAll restores what KindPushAll saved.
	KindPopAll
	// KindFrameAlloc extends the stack by Imm words plus spill slots.
	KindFrameAlloc
	// KindFrameFree releases what KindFrameAlloc reserved.
	KindFrameFree
	// KindDataBase sets $$ds to the absolute address of the data section.
	KindDataBase
	// KindComment carries only a comment.
	KindComment
)

// Label names a position in the op stream.
type Label string

// Op is one virtual assembly operation.
type Op struct {
	Kind    OpKind
	Opcode  Opcode
	Regs    []Register
	Imm     uint64
	Label   Label
	Data    DataID
	Comment string
	Span    source.Span
}

// Instr builds a concrete instruction.
func Instr(opc Opcode, regs ...Register) Op {
	return Op{Kind: KindInstr, Opcode: opc, Regs: regs}
}

// InstrImm builds a concrete instruction with an immediate.
func InstrImm(opc Opcode, imm uint64, regs ...Register) Op {
	return Op{Kind: KindInstr, Opcode: opc, Regs: regs, Imm: imm}
}

func LabelOp(l Label) Op               { return Op{Kind: KindLabel, Label: l} }
func Jump(l Label) Op                  { return Op{Kind: KindJump, Label: l} }
func JumpNZ(cond Register, l Label) Op { return Op{Kind: KindJumpNZ, Regs: []Register{cond}, Label: l} }
func Call(l Label) Op                  { return Op{Kind: KindCall, Label: l} }
func LoadData(dst Register, id DataID) Op {
	return Op{Kind: KindLoadData, Regs: []Register{dst}, Data: id}
}
func AddrData(dst Register, id DataID) Op {
	return Op{Kind: KindAddrData, Regs: []Register{dst}, Data: id}
}
func FrameAlloc(words uint64) Op { return Op{Kind: KindFrameAlloc, Imm: words} }
func FrameFree(words uint64) Op  { return Op{Kind: KindFrameFree, Imm: words} }
func Comment(text string) Op     { return Op{Kind: KindComment, Comment: text} }
func PushAll(l Label) Op         { return Op{Kind: KindPushAll, Label: l} }
func PopAll(l Label) Op          { return Op{Kind: KindPopAll, Label: l} }
func SetDataBase() Op            { return Op{Kind: KindDataBase} }

// WithComment returns op with a human-readable comment.
func (op Op) WithComment(format string, args ...any) Op {
	op.Comment = fmt.Sprintf(format, args...)
	return op
}

// At returns op with span attached.
func (op Op) At(span source.Span) Op {
	op.Span = span
	return op
}

// Defs returns the registers op writes.
func (op Op) Defs() []Register {
	switch op.Kind {
	case KindInstr:
		return op.Opcode.Writes(op.Regs)
	case KindLoadData, KindAddrData:
		return op.Regs[:1]
	case KindCall:
		return []Register{RetAddr, RetValue}
	case KindDataBase:
		return []Register{DataBase}
	}
	return nil
}

// Uses returns the registers op reads.
func (op Op) Uses() []Register {
	switch op.Kind {
	case KindInstr:
		return op.Opcode.Reads(op.Regs)
	case KindJumpNZ:
		return op.Regs
	case KindCall:
		return ArgRegs[:]
	}
	return nil
}

// IsTerminal reports whether control never falls through op.
func (op Op) IsTerminal() bool {
	switch op.Kind {
	case KindJump:
		return true
	case KindInstr:
		return op.Opcode.IsTerminal()
	}
	return false
}

func (op Op) String() string {
	var sb strings.Builder
	switch op.Kind {
	case KindInstr:
		sb.WriteString(op.Opcode.String())
		for _, r := range op.Regs {
			sb.WriteByte(' ')
			sb.WriteString(r.String())
		}
		if op.Opcode.Info().Format.ImmBits() > 0 {
			fmt.Fprintf(&sb, " i%d", op.Imm)
		}
	case KindLabel:
		fmt.Fprintf(&sb, "%s:", op.Label)
	case KindJump:
		fmt.Fprintf(&sb, "ji %s", op.Label)
	case KindJumpNZ:
		fmt.Fprintf(&sb, "jnzi %s %s", op.Regs[0], op.Label)
	case KindCall:
		fmt.Fprintf(&sb, "call %s", op.Label)
	case KindLoadData:
		fmt.Fprintf(&sb, "lw %s data_%d", op.Regs[0], op.Data)
	case KindAddrData:
		fmt.Fprintf(&sb, "addr %s data_%d", op.Regs[0], op.Data)
	case KindPushAll:
		fmt.Fprintf(&sb, "pusha %s", op.Label)
	case KindPopAll:
		fmt.Fprintf(&sb, "popa %s", op.Label)
	case KindFrameAlloc:
		fmt.Fprintf(&sb, "cfei frame(%d)", op.Imm)
	case KindFrameFree:
		fmt.Fprintf(&sb, "cfsi frame(%d)", op.Imm)
	case KindDataBase:
		sb.WriteString("movi $$ds data_section")
	case KindComment:
	}
	if op.Comment != "" {
		if sb.Len() > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString("; ")
		sb.WriteString(op.Comment)
	}
	return sb.String()
}
