// Package finalize allocates registers, resolves labels and data
// references, and encodes a program into VM bytecode.
package finalize

import (
	"errors"
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/source"
)

// InstrBytes is the size of one encoded instruction.
const InstrBytes = 4

// Instr is one resolved machine instruction.
type Instr struct {
	Opcode  asm.Opcode
	Regs    []asm.Register
	Imm     uint64
	Comment string
	Span    source.Span
}

func (in Instr) String() string {
	op := asm.Op{Kind: asm.KindInstr, Opcode: in.Opcode, Regs: in.Regs, Imm: in.Imm, Comment: in.Comment}
	return op.String()
}

// SourceMapEntry locates the source of the instruction at byte offset PC.
type SourceMapEntry struct {
	PC    uint64         `msgpack:"pc"`
	Path  string         `msgpack:"path"`
	Start source.LineCol `msgpack:"start"`
	End   source.LineCol `msgpack:"end"`
}

// FuncInfo records where a function starts and what it needed.
type FuncInfo struct {
	Name       string
	Start      uint64 // instruction index
	FrameWords uint64
	Spills     uint64
	Registers  int
}

// Binary is the finalized program.
type Binary struct {
	Instrs    []Instr
	Code      []byte
	Data      []byte
	SourceMap []SourceMapEntry
	Funcs     []FuncInfo
}

// Bytecode returns the code followed by the data section.
func (b *Binary) Bytecode() []byte {
	out := make([]byte, 0, len(b.Code)+len(b.Data))
	out = append(out, b.Code...)
	return append(out, b.Data...)
}

// Finalize lowers p to machine code. files resolves spans for the source
// map and may be nil.
func Finalize(p *asm.Program, files *source.FileSet) (*Binary, error) {
	if p == nil {
		return nil, errors.New("finalize: nil program")
	}
	x := newExpander(p.Data)
	if err := x.expand(p.Prologue, nil); err != nil {
		return nil, fmt.Errorf("program prologue: %w", err)
	}
	bin := &Binary{}
	for _, f := range p.Funcs {
		ops, alloc, err := allocate(f)
		if err != nil {
			return nil, err
		}
		info := FuncInfo{
			Name:       f.Name,
			Start:      uint64(len(x.code)),
			FrameWords: f.FrameWords,
			Spills:     alloc.spills(),
			Registers:  len(alloc.used),
		}
		fc := &funcContext{fn: f, alloc: alloc}
		if err := x.expand(ops, fc); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		bin.Funcs = append(bin.Funcs, info)
	}
	if err := x.resolve(); err != nil {
		return nil, err
	}

	var errs []error
	bin.Instrs = x.code
	bin.Code = make([]byte, 0, len(x.code)*InstrBytes)
	for i, in := range x.code {
		w, err := Encode(in)
		if err != nil {
			errs = append(errs, fmt.Errorf("instruction %d (%s): %w", i, in, err))
			continue
		}
		bin.Code = append(bin.Code, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
		if !in.Span.IsZero() {
			bin.SourceMap = append(bin.SourceMap, sourceMapEntry(files, uint64(i)*InstrBytes, in.Span))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	bin.Data = p.Data.Bytes()
	return bin, nil
}

func sourceMapEntry(files *source.FileSet, pc uint64, sp source.Span) SourceMapEntry {
	e := SourceMapEntry{PC: pc}
	if files == nil {
		return e
	}
	if f := files.Get(sp.File); f != nil {
		e.Path = f.Path
	}
	e.Start, e.End = files.Resolve(sp)
	return e
}
