// Package asmgen lowers IR modules, or in the legacy path typed AST
// expressions, to virtual assembly.
package asmgen

import (
	"errors"
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/ast"
	"swayc/internal/diag"
	"swayc/internal/ir"
	"swayc/internal/source"
)

// Word offsets into the caller's call frame seen by a contract entry.
const (
	FrameSelectorWord = 73
	FrameArgWord      = 74
)

// MismatchedSelectorRevertCode is the revert code of a call whose selector
// matches no contract method.
const MismatchedSelectorRevertCode = 123

// FuncLabel is the label of a function's first instruction.
func FuncLabel(name string) asm.Label { return asm.Label("fn." + name) }

// UnimplementedError is a language feature the generator cannot lower.
type UnimplementedError struct {
	Span source.Span
	What string
}

func (e *UnimplementedError) Error() string { return "unimplemented: " + e.What }

func unimplemented(span source.Span, format string, args ...any) error {
	return &UnimplementedError{Span: span, What: fmt.Sprintf(format, args...)}
}

// diagnosticFor maps a lowering error to the diagnostic reported for it.
func diagnosticFor(err error, fallback source.Span) diag.Diagnostic {
	var ue *UnimplementedError
	if errors.As(err, &ue) {
		return diag.NewError(diag.CodegenUnimplemented, ue.Span, err.Error())
	}
	return diag.NewError(diag.InternalInvariant, fallback, err.Error())
}

// Compile lowers every function of m and assembles the program prologue.
func Compile(m *ir.Module) diag.Result[*asm.Program] {
	bag := diag.NewBag(0)
	funcs := make([]*asm.Function, 0, len(m.Funcs))
	for _, f := range m.Funcs {
		af, diags := CompileFunc(m, f)
		for _, d := range diags {
			bag.Add(d)
		}
		if af != nil {
			funcs = append(funcs, af)
		}
	}
	if bag.HasErrors() {
		return diag.FromBag[*asm.Program](nil, false, bag)
	}
	prog, err := Assemble(m.Kind, funcs)
	if err != nil {
		bag.Add(diag.NewError(diag.InternalInvariant, source.Span{}, err.Error()))
		return diag.FromBag[*asm.Program](nil, false, bag)
	}
	return diag.FromBag(prog, true, bag)
}

// CompileFunc lowers one function with its own register sequencer and
// namespace, so calls for different functions may run concurrently.
func CompileFunc(m *ir.Module, f *ir.Function) (*asm.Function, []diag.Diagnostic) {
	fe := newFuncEmitter(m, f)
	if err := fe.emit(); err != nil {
		return nil, []diag.Diagnostic{diagnosticFor(err, f.Span)}
	}
	return fe.out, nil
}

// Assemble builds the program entry sequence and appends funcs in order.
// Contracts dispatch on the selector in the call frame; scripts and
// predicates jump to their single entry.
func Assemble(kind ast.ProgramKind, funcs []*asm.Function) (*asm.Program, error) {
	p := asm.NewProgram(kind)
	p.Prologue = append(p.Prologue, asm.SetDataBase().WithComment("data section base"))
	switch kind {
	case ast.ProgramContract:
		sel, want, match := asm.Scratch[0], asm.Scratch[1], asm.Scratch[2]
		p.Prologue = append(p.Prologue,
			asm.InstrImm(asm.LW, FrameSelectorWord, sel, asm.FP).WithComment("load selector"))
		for _, f := range funcs {
			if !f.IsEntry || !f.HasSelector {
				continue
			}
			p.Prologue = append(p.Prologue,
				asm.LoadData(want, p.Data.Insert(asm.WordLiteral(uint64(f.Selector)))),
				asm.Instr(asm.EQ, match, sel, want),
				asm.JumpNZ(match, f.Label).WithComment("%s", f.Name),
			)
		}
		p.Prologue = append(p.Prologue,
			asm.InstrImm(asm.MOVI, MismatchedSelectorRevertCode, sel),
			asm.Instr(asm.RVRT, sel).WithComment("no method matches the selector"),
		)
	case ast.ProgramScript, ast.ProgramPredicate:
		var entry *asm.Function
		for _, f := range funcs {
			if f.IsEntry {
				if entry != nil {
					return nil, fmt.Errorf("%s has more than one entry: %s and %s", kind, entry.Name, f.Name)
				}
				entry = f
			}
		}
		if entry == nil {
			return nil, fmt.Errorf("%s has no entry function", kind)
		}
		p.Prologue = append(p.Prologue, asm.Jump(entry.Label))
	}
	for _, f := range funcs {
		p.AddFunc(f)
	}
	return p, nil
}
