package asmgen

import (
	"slices"
	"strings"
	"testing"

	"fortio.org/safecast"

	"swayc/internal/asm"
	"swayc/internal/ast"
	"swayc/internal/diag"
	"swayc/internal/ir"
	"swayc/internal/testkit"
	"swayc/internal/types"
)

// render prints ops without comments, one per line.
func render(ops []asm.Op) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		op.Comment = ""
		out = append(out, op.String())
	}
	return out
}

func countKind(ops []asm.Op, k asm.OpKind) int {
	n := 0
	for _, op := range ops {
		if op.Kind == k {
			n++
		}
	}
	return n
}

func hasOpcode(ops []asm.Op, opc asm.Opcode) bool {
	for _, op := range ops {
		if op.Kind == asm.KindInstr && op.Opcode == opc {
			return true
		}
	}
	return false
}

func newLegacy(b *testkit.Builder) (*Legacy, *diag.Bag) {
	bag := diag.NewBag(0)
	return NewLegacy(b.Prog, nil, diag.BagReporter{Bag: bag}), bag
}

func lower(t *testing.T, l *Legacy, e *ast.Expr) ([]asm.Op, *asm.Namespace, asm.Register) {
	t.Helper()
	ns := asm.NewNamespace()
	seq := asm.NewSequencer("t")
	ret := seq.Next()
	return l.LowerExpr(e, ns, ret, seq), ns, ret
}

func TestLegacy_EnumInstantiation(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	e := b.Enum("E", testkit.V("A", b.B.U64), testkit.V("B", b.B.Unit))
	l, bag := newLegacy(b)

	ops, ns, _ := lower(t, l, b.EnumLit(e, "A", b.U64(42)))
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	want := []string{
		"lw $v1 data_0",
		"move $v2 $sp",
		"cfei i16",
		"mcli $v2 i2",
		"sw $v2 $v1 i0",
		"lw $v3 data_1",
		"sw $v2 $v3 i1",
		"move $v0 $v2",
	}
	got := render(ops)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("ops mismatch\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if lit, _ := ns.Data().Get(0); lit.Word != 0 {
		t.Fatalf("tag literal = %d, want 0", lit.Word)
	}
	if lit, _ := ns.Data().Get(1); lit.Word != 42 {
		t.Fatalf("payload literal = %d, want 42", lit.Word)
	}
}

func TestLegacy_OversizedAggregate(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	big := b.Struct("Big", testkit.SF("a", b.T.Array(b.B.U64, 1<<18)))
	l, bag := newLegacy(b)

	ops, _, _ := lower(t, l, b.StructLit(big, testkit.F("a", b.Array(b.B.U64, b.U64(1)))))
	if len(ops) != 0 {
		t.Fatalf("expected no ops, got %v", render(ops))
	}
	errs := bag.Errors()
	if len(errs) != 1 || errs[0].Code != diag.CodegenUnimplemented {
		t.Fatalf("expected one unimplemented error, got %v", errs)
	}
}

func TestLegacy_ArgumentMismatchRecovers(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	add := b.Fn("add", []ast.Param{testkit.P("a", b.B.U64), testkit.P("b", b.B.U64)}, b.B.U64,
		testkit.Body(b.Bin(ast.OpAdd, b.Var("a", b.B.U64), b.Var("b", b.B.U64))))
	l, bag := newLegacy(b)

	expr := b.Tuple(
		b.Call(add, b.U64(1), b.U64(2), b.U64(3)),
		b.Call(add, b.U64(4), b.U64(5)),
	)
	ops, _, _ := lower(t, l, expr)

	errs := bag.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if errs[0].Code != diag.CodegenTooManyArguments {
		t.Fatalf("code = %v, want %v", errs[0].Code, diag.CodegenTooManyArguments)
	}
	if !strings.Contains(errs[0].Message, "expected: 2, received: 3") {
		t.Fatalf("message = %q", errs[0].Message)
	}
	if !hasOpcode(ops, asm.ADD) {
		t.Fatalf("second call was not lowered:\n%s", strings.Join(render(ops), "\n"))
	}
	if last := ops[len(ops)-1]; last.Opcode != asm.MOVE {
		t.Fatalf("tuple was not completed, last op %s", last)
	}
}

func TestLegacy_FieldAccess(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	s := b.Struct("S", testkit.SF("a", b.B.U64), testkit.SF("h", b.B.B256))
	cases := []struct {
		field string
		want  string
	}{
		{"a", "lw $v0 $v2 i0"},
		{"h", "addi $v0 $v2 i8"},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			l, bag := newLegacy(b)
			ns := asm.NewNamespace()
			seq := asm.NewSequencer("t")
			ret := seq.Next()
			ns.Bind("s", seq.Next())
			ops := l.LowerExpr(b.Field(b.Var("s", s), tc.field), ns, ret, seq)
			if bag.Len() != 0 {
				t.Fatalf("unexpected diagnostics: %v", bag.Items())
			}
			got := render(ops)
			if len(got) != 2 || got[0] != "move $v2 $v1" || got[1] != tc.want {
				t.Fatalf("ops = %v, want [move $v2 $v1 %s]", got, tc.want)
			}
		})
	}
}

func TestLegacy_StructFieldsInDeclarationOrder(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	u64 := b.B.U64
	s := b.Struct("S", testkit.SF("a", u64), testkit.SF("b", u64), testkit.SF("c", u64))
	lit := b.StructLit(s, testkit.F("c", b.U64(3)), testkit.F("a", b.U64(1)), testkit.F("b", b.U64(2)))

	l, bag := newLegacy(b)
	ops, _, _ := lower(t, l, lit)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	var offsets []uint64
	for _, op := range ops {
		if op.Kind == asm.KindInstr && op.Opcode == asm.SW {
			offsets = append(offsets, op.Imm)
		}
	}
	if want := []uint64{0, 1, 2}; !slices.Equal(offsets, want) {
		t.Fatalf("field stores at %v, want %v:\n%s", offsets, want, strings.Join(render(ops), "\n"))
	}
}

func TestLegacy_EnumMatchUnimplemented(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	e := b.Enum("E", testkit.V("A", b.B.U64), testkit.V("B", b.B.Unit))
	l, bag := newLegacy(b)

	m := b.Match(b.EnumLit(e, "B", nil), b.B.U64,
		testkit.Arm(testkit.PEnum(e, "A", testkit.PVar("x", b.B.U64)), b.U64(1)),
		testkit.Arm(testkit.PWild(e), b.U64(2)),
	)
	ops, _, _ := lower(t, l, m)
	if len(ops) != 0 {
		t.Fatalf("expected no ops, got %v", render(ops))
	}
	if errs := bag.Errors(); len(errs) != 1 || errs[0].Code != diag.CodegenUnimplemented {
		t.Fatalf("expected one unimplemented error, got %v", errs)
	}
}

func TestLegacy_LiteralMatch(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	l, bag := newLegacy(b)

	m := b.Match(b.U64(3), b.B.U64,
		testkit.Arm(b.PU64(1), b.U64(10)),
		testkit.Arm(testkit.PWild(b.B.U64), b.U64(20)),
	)
	ops, _, _ := lower(t, l, m)
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if !hasOpcode(ops, asm.EQ) || countKind(ops, asm.KindJumpNZ) == 0 {
		t.Fatalf("missing requirement check:\n%s", strings.Join(render(ops), "\n"))
	}
}

func TestLegacy_ContractEntry(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramContract)
	b.Entry("get", nil, b.B.U64, testkit.Body(b.U64(7)))
	l, _ := newLegacy(b)

	res := l.CompileLegacy()
	if !res.Succeeded() {
		t.Fatalf("compile failed: %v", res.Errors)
	}
	fn, ok := res.Value.Func("get")
	if !ok || !fn.HasSelector {
		t.Fatalf("entry missing or without selector: %+v", fn)
	}
	if !hasOpcode(fn.Ops, asm.RET) {
		t.Fatalf("entry does not return:\n%s", strings.Join(render(fn.Ops), "\n"))
	}
}

// irFixture is a module under construction plus its u64 type.
type irFixture struct {
	m   *ir.Module
	u64 types.TypeID
}

func newIRFixture(kind ast.ProgramKind) irFixture {
	in := types.NewInterner()
	return irFixture{m: ir.NewModule("t", kind, in), u64: in.Builtins().U64}
}

func (fx irFixture) entry(name string, params []ast.Param, ret types.TypeID) (*ir.Function, *ir.Builder) {
	f := ir.NewFunction(name, params, ret)
	f.IsEntry = true
	fx.m.AddFunc(f)
	return f, ir.NewBuilder(fx.m, f)
}

func TestCompileFunc_FramePrologue(t *testing.T) {
	fx := newIRFixture(ast.ProgramScript)
	pair := fx.m.Types.Tuple([]types.TypeID{fx.u64, fx.u64})
	f, b := fx.entry("main", nil, fx.u64)
	l := f.AddLocal(ir.Local{Name: "p", Type: pair, Mutable: true})
	ptr := b.GetLocal(l)
	second := b.GetElemPtr(ptr, 1)
	b.Store(second, b.ConstUint(fx.u64, 5))
	b.Ret(b.Load(second))

	out, diags := CompileFunc(fx.m, f)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if out.FrameWords != 2 {
		t.Fatalf("frame = %d words, want 2", out.FrameWords)
	}
	got := render(out.Ops)
	if got[0] != "fn.main:" || got[1] != "move $$locbase $sp" || got[2] != "cfei frame(2)" {
		t.Fatalf("unexpected prologue: %v", got[:3])
	}
	if !strings.Contains(strings.Join(got, "\n"), "i8") {
		t.Fatalf("get_elem_ptr offset missing:\n%s", strings.Join(got, "\n"))
	}
	if last := out.Ops[len(out.Ops)-1]; last.Opcode != asm.RET {
		t.Fatalf("last op %s, want ret", last)
	}
}

func TestCompileFunc_InsertValueReuse(t *testing.T) {
	cases := []struct {
		name      string
		extraUse  bool
		wantReuse bool
	}{
		{"single use reuses", false, true},
		{"shared value copies", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newIRFixture(ast.ProgramScript)
			pair := fx.m.Types.Tuple([]types.TypeID{fx.u64, fx.u64})
			f, b := fx.entry("main", nil, pair)
			first := b.InsertValue(b.Undef(pair), b.ConstUint(fx.u64, 1), 0)
			second := b.InsertValue(first, b.ConstUint(fx.u64, 2), 1)
			if tc.extraUse {
				b.Log(b.ExtractValue(first, 0))
			}
			b.Ret(second)

			out, diags := CompileFunc(fx.m, f)
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %v", diags)
			}
			reused := false
			for _, op := range out.Ops {
				if op.Comment == "reuse" {
					reused = true
				}
			}
			if reused != tc.wantReuse {
				t.Fatalf("reuse = %v, want %v", reused, tc.wantReuse)
			}
			if copied := hasOpcode(out.Ops, asm.MCPI); copied == tc.wantReuse {
				t.Fatalf("copy emitted = %v, want %v", copied, !tc.wantReuse)
			}
			if !hasOpcode(out.Ops, asm.RETD) {
				t.Fatal("aggregate entry must return through retd")
			}
		})
	}
}

func TestCompileFunc_CallConvention(t *testing.T) {
	fx := newIRFixture(ast.ProgramScript)
	add := ir.NewFunction("add", []ast.Param{{Name: "a", Type: fx.u64}, {Name: "b", Type: fx.u64}}, fx.u64)
	addID := fx.m.AddFunc(add)
	ab := ir.NewBuilder(fx.m, add)
	ab.Ret(ab.Binary(ir.BinAdd, add.Params[0], add.Params[1]))

	main, mb := fx.entry("main", nil, fx.u64)
	mb.Ret(mb.Call(addID, fx.u64, []ir.ValueID{mb.ConstUint(fx.u64, 2), mb.ConstUint(fx.u64, 3)}))

	res := Compile(fx.m)
	if !res.Succeeded() {
		t.Fatalf("compile failed: %v", res.Errors)
	}
	callee, ok := res.Value.Func("add")
	if !ok {
		t.Fatal("add was not assembled")
	}
	if callee.Ops[1].Kind != asm.KindPushAll {
		t.Fatalf("callee does not save registers: %s", callee.Ops[1])
	}
	n := len(callee.Ops)
	if callee.Ops[n-3].Kind != asm.KindFrameFree || callee.Ops[n-2].Kind != asm.KindPopAll {
		t.Fatalf("unexpected epilogue: %v", render(callee.Ops[n-3:]))
	}
	if last := callee.Ops[n-1]; last.Opcode != asm.JMP || last.Regs[0] != asm.RetAddr {
		t.Fatalf("callee returns with %s", last)
	}

	caller, _ := res.Value.Func(main.Name)
	got := strings.Join(render(caller.Ops), "\n")
	for _, want := range []string{"move $$arg0", "move $$arg1", "call fn.add", "$$retv"} {
		if !strings.Contains(got, want) {
			t.Fatalf("caller misses %q:\n%s", want, got)
		}
	}
}

func TestCompileFunc_TooManyArguments(t *testing.T) {
	fx := newIRFixture(ast.ProgramScript)
	params := make([]ast.Param, asm.MaxArgs+1)
	for i := range params {
		params[i] = ast.Param{Name: string(rune('a' + i)), Type: fx.u64}
	}
	g := ir.NewFunction("g", params, fx.u64)
	fx.m.AddFunc(g)
	gb := ir.NewBuilder(fx.m, g)
	gb.Ret(g.Params[0])

	_, diags := CompileFunc(fx.m, g)
	if len(diags) != 1 || diags[0].Code != diag.CodegenUnimplemented {
		t.Fatalf("expected one unimplemented diagnostic, got %v", diags)
	}
}

func TestCompileFunc_PhiEdges(t *testing.T) {
	fx := newIRFixture(ast.ProgramScript)
	f, b := fx.entry("main", nil, fx.u64)
	x, y := b.ConstUint(fx.u64, 4), b.ConstUint(fx.u64, 9)
	then, els, join := b.NewBlock("then"), b.NewBlock("else"), b.NewBlock("join")
	b.CondBranch(b.Cmp(ir.PredGt, x, y), then, els)
	b.SetBlock(then)
	b.Branch(join)
	b.SetBlock(els)
	b.Branch(join)
	b.SetBlock(join)
	phi := b.Phi(fx.u64, []ir.PhiIncoming{{Block: then, Value: x}, {Block: els, Value: y}})
	b.Ret(phi)

	out, diags := CompileFunc(fx.m, f)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	phiReg := ""
	for _, op := range out.Ops {
		if op.Opcode == asm.RET && op.Kind == asm.KindInstr {
			phiReg = op.Regs[0].String()
		}
	}
	moves := 0
	for _, op := range out.Ops {
		if op.Kind == asm.KindInstr && op.Opcode == asm.MOVE && op.Regs[0].String() == phiReg {
			moves++
		}
	}
	if moves != 2 {
		t.Fatalf("phi register %s written %d times, want 2:\n%s", phiReg, moves, strings.Join(render(out.Ops), "\n"))
	}
}

func TestAssemble_ContractDispatch(t *testing.T) {
	funcs := []*asm.Function{
		{Name: "a", Label: FuncLabel("a"), IsEntry: true, HasSelector: true, Selector: 0x11111111},
		{Name: "b", Label: FuncLabel("b"), IsEntry: true, HasSelector: true, Selector: 0x22222222},
	}
	p, err := Assemble(ast.ProgramContract, funcs)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if p.Prologue[0].Kind != asm.KindDataBase {
		t.Fatalf("prologue starts with %s", p.Prologue[0])
	}
	sel := p.Prologue[1]
	if sel.Opcode != asm.LW || sel.Imm != FrameSelectorWord || sel.Regs[1] != asm.FP {
		t.Fatalf("selector load = %s", sel)
	}
	var targets []asm.Label
	for _, op := range p.Prologue {
		if op.Kind == asm.KindJumpNZ {
			targets = append(targets, op.Label)
		}
	}
	if len(targets) != 2 || targets[0] != "fn.a" || targets[1] != "fn.b" {
		t.Fatalf("dispatch targets = %v", targets)
	}
	n := len(p.Prologue)
	if p.Prologue[n-2].Imm != MismatchedSelectorRevertCode || p.Prologue[n-1].Opcode != asm.RVRT {
		t.Fatalf("missing selector fallthrough: %v", render(p.Prologue[n-2:]))
	}
	words := map[uint64]bool{}
	for i := 0; i < p.Data.Len(); i++ {
		lit, _ := p.Data.Get(safecast.MustConv[asm.DataID](i))
		words[lit.Word] = true
	}
	if !words[0x11111111] || !words[0x22222222] {
		t.Fatalf("selectors missing from data section: %v", words)
	}
}

func TestAssemble_ScriptEntries(t *testing.T) {
	entry := func(name string) *asm.Function {
		return &asm.Function{Name: name, Label: FuncLabel(name), IsEntry: true}
	}
	if _, err := Assemble(ast.ProgramScript, nil); err == nil {
		t.Fatal("expected an error without entry")
	}
	if _, err := Assemble(ast.ProgramScript, []*asm.Function{entry("a"), entry("b")}); err == nil {
		t.Fatal("expected an error with two entries")
	}
	p, err := Assemble(ast.ProgramScript, []*asm.Function{entry("main")})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if j := p.Prologue[len(p.Prologue)-1]; j.Kind != asm.KindJump || j.Label != "fn.main" {
		t.Fatalf("prologue ends with %s", j)
	}
}
