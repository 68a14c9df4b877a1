package asmgen

import (
	"errors"
	"fmt"

	"swayc/internal/asm"
	"swayc/internal/ast"
	"swayc/internal/calls"
	"swayc/internal/diag"
	"swayc/internal/layout"
	"swayc/internal/source"
	"swayc/internal/types"
)

// Legacy lowers typed AST straight to assembly. Every aggregate lives on
// the stack and is referenced by pointer; function applications are
// inlined at the call site.
type Legacy struct {
	Prog     *ast.Program
	Types    *types.Interner
	Layout   *layout.LayoutEngine
	Reporter diag.Reporter
}

func NewLegacy(prog *ast.Program, lay *layout.LayoutEngine, r diag.Reporter) *Legacy {
	if lay == nil {
		lay = layout.New(prog.Types)
	}
	if r == nil {
		r = diag.NopReporter{}
	}
	return &Legacy{Prog: prog, Types: prog.Types, Layout: lay, Reporter: r}
}

type inlineFrame struct {
	fn  ast.FnID
	ret asm.Register
	end asm.Label
}

type loopFrame struct {
	cont, brk asm.Label
}

// lowering is the state of one LowerExpr or LowerFunction call.
type lowering struct {
	l    *Legacy
	ns   *asm.Namespace
	seq  *asm.RegisterSequencer
	ops  []asm.Op
	span source.Span

	vars    []map[string]types.TypeID
	inlines []inlineFrame
	loops   []loopFrame
	// entry is set while lowering an entry function body.
	entry *ast.FnDecl
}

func (l *Legacy) newLowering(ns *asm.Namespace, seq *asm.RegisterSequencer) *lowering {
	return &lowering{l: l, ns: ns, seq: seq, vars: []map[string]types.TypeID{{}}}
}

// LowerExpr returns the ops that write the value of e into ret.
func (l *Legacy) LowerExpr(e *ast.Expr, ns *asm.Namespace, ret asm.Register, seq *asm.RegisterSequencer) []asm.Op {
	c := l.newLowering(ns, seq)
	c.expr(e, ret)
	return c.ops
}

// LowerFunction compiles an entry function. Other functions are only
// reached through inlining and yield nil.
func (l *Legacy) LowerFunction(id ast.FnID) *asm.Function {
	fn := l.Prog.Decls.Fn(id)
	if fn == nil || !fn.IsEntry {
		return nil
	}
	ns := asm.NewNamespace()
	seq := asm.NewSequencer(fn.Name)
	out := &asm.Function{Name: fn.Name, Label: FuncLabel(fn.Name), IsEntry: true, Data: ns.Data()}
	if l.Prog.Kind == ast.ProgramContract {
		out.HasSelector = true
		out.Selector = calls.ComputeSelector(l.Types, fn.Name, paramTypes(fn.Params)).Uint32()
	}

	c := l.newLowering(ns, seq)
	c.entry = fn
	c.span = fn.Span
	c.emit(asm.LabelOp(out.Label))
	c.emit(asm.Instr(asm.MOVE, asm.LocalsBase, asm.SP))
	c.emit(asm.FrameAlloc(0))
	if !c.entryParams(fn, out.HasSelector) {
		return nil
	}
	ret := seq.Next()
	c.block(fn.Body, ret)
	c.entryReturn(ret, fn.Ret)

	out.Ops = c.ops
	out.VirtualRegs = seq.Issued()
	return out
}

// CompileLegacy lowers every entry of prog and assembles the program.
func (l *Legacy) CompileLegacy() diag.Result[*asm.Program] {
	bag := diag.NewBag(0)
	prev := l.Reporter
	// inlined bodies revisit the same call sites
	l.Reporter = diag.Dedup(diag.BagReporter{Bag: bag})
	defer func() { l.Reporter = prev }()

	var funcs []*asm.Function
	for _, id := range l.Prog.Entries() {
		if f := l.LowerFunction(id); f != nil {
			funcs = append(funcs, f)
		}
	}
	if bag.HasErrors() {
		return diag.FromBag[*asm.Program](nil, false, bag)
	}
	prog, err := Assemble(l.Prog.Kind, funcs)
	if err != nil {
		bag.Add(diag.NewError(diag.InternalInvariant, source.Span{}, err.Error()))
		return diag.FromBag[*asm.Program](nil, false, bag)
	}
	return diag.FromBag(prog, true, bag)
}

func paramTypes(params []ast.Param) []types.TypeID {
	out := make([]types.TypeID, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

func (c *lowering) emit(ops ...asm.Op) {
	for _, op := range ops {
		if op.Span.IsZero() {
			op.Span = c.span
		}
		c.ops = append(c.ops, op)
	}
}

func (c *lowering) unimplemented(span source.Span, format string, args ...any) {
	diag.ReportError(c.l.Reporter, diag.CodegenUnimplemented, span, "unimplemented: "+fmt.Sprintf(format, args...)).Emit()
}

func (c *lowering) internal(code diag.Code, span source.Span, format string, args ...any) {
	diag.ReportError(c.l.Reporter, code, span, fmt.Sprintf(format, args...)).Emit()
}

// layoutOf reports layout failures once and returns ok=false.
func (c *lowering) layoutOf(t types.TypeID, span source.Span) (layout.TypeLayout, bool) {
	lay, err := c.l.Layout.LayoutOf(t)
	switch {
	case err == nil:
		return lay, true
	case errors.Is(err, layout.ErrAggregateTooLarge):
		c.unimplemented(span, "%v", err)
	case errors.Is(err, layout.ErrRecursiveType):
		c.internal(diag.LayoutRecursiveType, span, "%v", err)
	default:
		c.internal(diag.InternalSizeComputationFailed, span, "%v", err)
	}
	return layout.TypeLayout{}, false
}

func (c *lowering) size(t types.TypeID) uint64 {
	n, err := c.l.Layout.SizeOf(t)
	if err != nil {
		return 0
	}
	return n
}

// isWord reports whether values of t are held in a register rather than
// referenced by pointer.
func (c *lowering) isWord(t types.TypeID) bool {
	return !c.l.Types.KindOf(t).IsAggregate() && c.size(t) == 1
}

func (c *lowering) push() {
	c.ns.Push()
	c.vars = append(c.vars, map[string]types.TypeID{})
}

func (c *lowering) pop() {
	c.ns.Pop()
	if len(c.vars) > 1 {
		c.vars = c.vars[:len(c.vars)-1]
	}
}

func (c *lowering) bind(name string, r asm.Register, t types.TypeID) {
	c.ns.Bind(name, r)
	c.vars[len(c.vars)-1][name] = t
}

func (c *lowering) varType(name string) (types.TypeID, bool) {
	for i := len(c.vars) - 1; i >= 0; i-- {
		if t, ok := c.vars[i][name]; ok {
			return t, true
		}
	}
	return types.NoTypeID, false
}

func (c *lowering) entryParams(fn *ast.FnDecl, contract bool) bool {
	if len(fn.Params) == 0 {
		return true
	}
	if !contract {
		c.unimplemented(fn.Span, "parameters of %s entry %s", c.l.Prog.Kind, fn.Name)
		return false
	}
	if len(fn.Params) == 1 {
		r := c.seq.Next()
		c.emit(asm.InstrImm(asm.LW, FrameArgWord, r, asm.FP).WithComment("argument"))
		c.bind(fn.Params[0].Name, r, fn.Params[0].Type)
		return true
	}
	base := c.seq.Next()
	c.emit(asm.InstrImm(asm.LW, FrameArgWord, base, asm.FP).WithComment("argument tuple"))
	var off uint64
	for _, p := range fn.Params {
		r := c.seq.Next()
		c.readAt(r, base, off, p.Type)
		c.bind(p.Name, r, p.Type)
		off += c.size(p.Type)
	}
	return true
}

func (c *lowering) entryReturn(val asm.Register, t types.TypeID) {
	n := c.size(t)
	switch {
	case n == 0:
		c.emit(asm.Instr(asm.RET, asm.Zero))
	case c.isWord(t):
		c.emit(asm.Instr(asm.RET, val))
	default:
		c.emit(asm.Instr(asm.RETD, val, c.constReg(n*layout.WordBytes)))
	}
}

// constReg loads v through the data section.
func (c *lowering) constReg(v uint64) asm.Register {
	r := c.seq.Next()
	c.emit(asm.LoadData(r, c.ns.InsertDataValue(asm.WordLiteral(v))))
	return r
}

// readAt reads a value of type t stored at base + off words: a word load
// for register values, the address otherwise.
func (c *lowering) readAt(dst, base asm.Register, off uint64, t types.TypeID) {
	n := c.size(t)
	switch {
	case n == 0:
	case c.isWord(t):
		if fitsImm(off, 12) {
			c.emit(asm.InstrImm(asm.LW, off, dst, base))
			return
		}
		addr := c.seq.Next()
		c.addOffset(addr, base, off)
		c.emit(asm.InstrImm(asm.LW, 0, dst, addr))
	default:
		c.addOffset(dst, base, off)
	}
}

// writeAt stores val of type t at base + off words.
func (c *lowering) writeAt(base asm.Register, off uint64, val asm.Register, t types.TypeID) {
	n := c.size(t)
	switch {
	case n == 0:
	case c.isWord(t) && fitsImm(off, 12):
		c.emit(asm.InstrImm(asm.SW, off, base, val))
	default:
		at := c.seq.Next()
		c.addOffset(at, base, off)
		if c.isWord(t) {
			c.emit(asm.InstrImm(asm.SW, 0, at, val))
			return
		}
		c.copyWords(at, val, n)
	}
}

func (c *lowering) addOffset(dst, base asm.Register, words uint64) {
	bytes := words * layout.WordBytes
	switch {
	case bytes == 0:
		c.emit(asm.Instr(asm.MOVE, dst, base))
	case fitsImm(bytes, 12):
		c.emit(asm.InstrImm(asm.ADDI, bytes, dst, base))
	default:
		c.emit(asm.Instr(asm.ADD, dst, base, c.constReg(bytes)))
	}
}

func (c *lowering) copyWords(dst, src asm.Register, n uint64) {
	switch {
	case n == 0:
	case fitsImm(n, 12):
		c.emit(asm.InstrImm(asm.MCPI, n, dst, src))
	default:
		c.emit(asm.Instr(asm.MCP, dst, src, c.constReg(n*layout.WordBytes)))
	}
}
