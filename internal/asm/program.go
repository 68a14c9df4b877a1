package asm

import (
	"fmt"
	"io"
	"strings"

	"swayc/internal/ast"
)

// Function is the op stream of one compiled function.
type Function struct {
	Name        string
	Label       Label
	IsEntry     bool
	HasSelector bool
	Selector    uint32
	// FrameWords is the frame size known before allocation; spills add to it.
	FrameWords uint64
	Ops        []Op
	Data       *DataSection
	// VirtualRegs is the number of registers the sequencer issued.
	VirtualRegs uint32
}

func (f *Function) Emit(ops ...Op) { f.Ops = append(f.Ops, ops...) }

// Program is a whole compiled module before finalisation.
type Program struct {
	Kind     ast.ProgramKind
	Prologue []Op
	Funcs    []*Function
	Data     *DataSection
}

func NewProgram(kind ast.ProgramKind) *Program {
	return &Program{Kind: kind, Data: NewDataSection()}
}

// AddFunc appends f and moves its data literals into the program section.
func (p *Program) AddFunc(f *Function) {
	remap := p.Data.Merge(f.Data)
	for i := range f.Ops {
		switch f.Ops[i].Kind {
		case KindLoadData, KindAddrData:
			f.Ops[i].Data = remap[f.Ops[i].Data]
		}
	}
	f.Data = nil
	p.Funcs = append(p.Funcs, f)
}

// Func returns the function named name.
func (p *Program) Func(name string) (*Function, bool) {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Print writes a readable listing of p.
func Print(w io.Writer, p *Program) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, ".program %s\n", p.Kind)
	for _, op := range p.Prologue {
		writeOp(&sb, op)
	}
	for _, f := range p.Funcs {
		sb.WriteByte('\n')
		fmt.Fprintf(&sb, ".fn %s", f.Name)
		if f.IsEntry {
			sb.WriteString(" entry")
		}
		if f.HasSelector {
			fmt.Fprintf(&sb, " selector=0x%08x", f.Selector)
		}
		sb.WriteByte('\n')
		for _, op := range f.Ops {
			writeOp(&sb, op)
		}
	}
	if p.Data.Len() > 0 {
		sb.WriteString("\n.data\n")
		for i, lit := range p.Data.items {
			fmt.Fprintf(&sb, "data_%d %s\n", i, lit)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeOp(sb *strings.Builder, op Op) {
	if op.Kind != KindLabel {
		sb.WriteString("    ")
	}
	sb.WriteString(op.String())
	sb.WriteByte('\n')
}

// String renders p with Print.
func (p *Program) String() string {
	var sb strings.Builder
	_ = Print(&sb, p)
	return sb.String()
}
