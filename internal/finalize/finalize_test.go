package finalize

import (
	"bytes"
	"strings"
	"testing"

	"swayc/internal/asm"
	"swayc/internal/asmgen"
	"swayc/internal/ast"
	"swayc/internal/source"
)

func v(n uint32) asm.Register { return asm.Virtual(n) }

// script wraps fn as the single entry of a script.
func script(t *testing.T, fns ...*asm.Function) *asm.Program {
	t.Helper()
	p, err := asmgen.Assemble(ast.ProgramScript, fns)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return p
}

func entry(name string, frame uint64, nregs uint32, body ...asm.Op) *asm.Function {
	label := asmgen.FuncLabel(name)
	ops := []asm.Op{
		asm.LabelOp(label),
		asm.Instr(asm.MOVE, asm.LocalsBase, asm.SP),
		asm.FrameAlloc(frame),
	}
	return &asm.Function{
		Name: name, Label: label, IsEntry: true, FrameWords: frame,
		Ops: append(ops, body...), Data: asm.NewDataSection(), VirtualRegs: nregs,
	}
}

func noVirtual(t *testing.T, b *Binary) {
	t.Helper()
	for i, in := range b.Instrs {
		for _, r := range in.Regs {
			if r.IsVirtual() {
				t.Fatalf("instruction %d (%s) keeps a virtual register", i, in)
			}
		}
	}
}

func TestEncode(t *testing.T) {
	cases := []struct {
		name string
		in   Instr
		want uint32
	}{
		{"rr", Instr{Opcode: asm.MOVE, Regs: []asm.Register{asm.Real(29), asm.Real(30)}}, 0x1a<<24 | 29<<18 | 30<<12},
		{"ri18", Instr{Opcode: asm.MOVI, Regs: []asm.Register{asm.Real(40)}, Imm: 1000}, 0x72<<24 | 40<<18 | 1000},
		{"i24", Instr{Opcode: asm.JI, Imm: 0xabcdef}, 0x90<<24 | 0xabcdef},
		{"none", Instr{Opcode: asm.NOOP}, 0x47 << 24},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if got != tc.want {
				t.Fatalf("encode = %#08x, want %#08x", got, tc.want)
			}
			back, err := Decode(got)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if back.String() != tc.in.String() {
				t.Fatalf("decode = %s, want %s", back, tc.in)
			}
		})
	}
}

func TestEncode_Rejects(t *testing.T) {
	cases := []struct {
		name string
		in   Instr
		want string
	}{
		{"virtual", Instr{Opcode: asm.RET, Regs: []asm.Register{v(0)}}, "not a machine register"},
		{"wide imm", Instr{Opcode: asm.ADDI, Regs: []asm.Register{asm.Real(29), asm.Real(29)}, Imm: 1 << 12}, "does not fit"},
		{"arity", Instr{Opcode: asm.ADD, Regs: []asm.Register{asm.Real(29)}}, "takes 3 registers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.in)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestFinalize_Script(t *testing.T) {
	fn := entry("main", 1, 3,
		asm.InstrImm(asm.MOVI, 5, v(0)),
		asm.LoadData(v(1), 0),
		asm.Instr(asm.ADD, v(2), v(0), v(1)),
		asm.Instr(asm.RET, v(2)),
	)
	fn.Data.Insert(asm.WordLiteral(1 << 40))
	p := script(t, fn)

	b, err := Finalize(p, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	noVirtual(t, b)
	if len(b.Instrs)%2 != 0 {
		t.Fatalf("code is not word aligned: %d instructions", len(b.Instrs))
	}
	if len(b.Code) != len(b.Instrs)*InstrBytes {
		t.Fatalf("code = %d bytes for %d instructions", len(b.Code), len(b.Instrs))
	}
	if base := b.Instrs[0]; base.Opcode != asm.MOVI || base.Imm != uint64(len(b.Code)) {
		t.Fatalf("data base = %s, want movi of %d", base, len(b.Code))
	}
	if j := b.Instrs[2]; j.Opcode != asm.JI || j.Imm != b.Funcs[0].Start {
		t.Fatalf("entry jump = %s, main starts at %d", j, b.Funcs[0].Start)
	}
	var cfei *Instr
	for i := range b.Instrs {
		if b.Instrs[i].Opcode == asm.CFEI {
			cfei = &b.Instrs[i]
		}
	}
	if cfei == nil || cfei.Imm != 8 {
		t.Fatalf("frame allocation = %v, want 8 bytes", cfei)
	}
	if !bytes.Equal(b.Data, p.Data.Bytes()) {
		t.Fatal("data section differs from the program's")
	}
	if got := b.Bytecode(); len(got) != len(b.Code)+len(b.Data) {
		t.Fatalf("bytecode = %d bytes", len(got))
	}
}

func TestFinalize_CoalescesMoves(t *testing.T) {
	fn := entry("main", 0, 2,
		asm.InstrImm(asm.MOVI, 1, v(0)),
		asm.Instr(asm.MOVE, v(1), v(0)),
		asm.Instr(asm.RET, v(1)),
	)
	b, err := Finalize(script(t, fn), nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if n := b.Funcs[0].Registers; n != 1 {
		t.Fatalf("used %d registers, want 1", n)
	}
}

func TestFinalize_Spills(t *testing.T) {
	const live = 40
	var body []asm.Op
	for i := range uint32(live) {
		body = append(body, asm.InstrImm(asm.MOVI, uint64(i), v(i)))
	}
	sum := v(live)
	body = append(body, asm.Instr(asm.ADD, sum, v(0), v(1)))
	for i := uint32(2); i < live; i++ {
		body = append(body, asm.Instr(asm.ADD, sum, sum, v(i)))
	}
	body = append(body, asm.Instr(asm.RET, sum))
	fn := entry("main", 3, live+1, body...)

	b, err := Finalize(script(t, fn), nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	noVirtual(t, b)
	info := b.Funcs[0]
	if info.Spills == 0 {
		t.Fatal("expected spills with more live values than registers")
	}
	var frame uint64
	for _, in := range b.Instrs {
		switch in.Opcode {
		case asm.CFEI:
			frame = in.Imm
		case asm.LW, asm.SW:
			if in.Regs[0] != asm.LocalsBase && in.Regs[1] != asm.LocalsBase {
				t.Fatalf("spill access %s is not frame relative", in)
			}
			if in.Imm < 3 {
				t.Fatalf("spill slot %s overlaps the frame", in)
			}
		}
	}
	if frame != (3+info.Spills)*8 {
		t.Fatalf("frame = %d bytes, want %d", frame, (3+info.Spills)*8)
	}
}

func TestFinalize_CallAndSave(t *testing.T) {
	calleeLabel := asmgen.FuncLabel("id")
	callee := &asm.Function{
		Name: "id", Label: calleeLabel, VirtualRegs: 1, Data: asm.NewDataSection(),
		Ops: []asm.Op{
			asm.LabelOp(calleeLabel),
			asm.PushAll(calleeLabel),
			asm.Instr(asm.MOVE, asm.LocalsBase, asm.SP),
			asm.FrameAlloc(0),
			asm.Instr(asm.MOVE, v(0), asm.ArgRegs[0]),
			asm.Instr(asm.MOVE, asm.RetValue, v(0)),
			asm.FrameFree(0),
			asm.PopAll(calleeLabel),
			asm.Instr(asm.JMP, asm.RetAddr),
		},
	}
	main := entry("main", 0, 1,
		asm.InstrImm(asm.MOVI, 7, v(0)),
		asm.Instr(asm.MOVE, asm.ArgRegs[0], v(0)),
		asm.Call(calleeLabel),
		asm.Instr(asm.RET, asm.RetValue),
	)
	b, err := Finalize(script(t, main, callee), nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	var calleeStart uint64
	for _, f := range b.Funcs {
		if f.Name == "id" {
			calleeStart = f.Start
		}
	}
	for i, in := range b.Instrs {
		if in.Opcode == asm.MOVI && len(in.Regs) == 1 && in.Regs[0] == asm.RetAddr {
			if in.Imm != uint64(i+2) {
				t.Fatalf("return address = %d, want %d", in.Imm, i+2)
			}
			if j := b.Instrs[i+1]; j.Opcode != asm.JI || j.Imm != calleeStart {
				t.Fatalf("call jumps with %s, callee starts at %d", j, calleeStart)
			}
		}
	}

	push := b.Instrs[calleeStart]
	if push.Opcode != asm.PSHL {
		t.Fatalf("callee starts with %s", push)
	}
	want := uint64(1<<(22-16) | 1<<(24-16) | 1<<(asm.FirstAllocatable-16))
	if push.Imm != want {
		t.Fatalf("save mask = %#x, want %#x", push.Imm, want)
	}
	var pop Instr
	for _, in := range b.Instrs[calleeStart:] {
		if in.Opcode == asm.POPL {
			pop = in
		}
	}
	if pop.Imm != want {
		t.Fatalf("restore mask = %#x, want %#x", pop.Imm, want)
	}
}

func TestFinalize_UndefinedLabel(t *testing.T) {
	fn := entry("main", 0, 0, asm.Jump("nowhere"))
	_, err := Finalize(script(t, fn), nil)
	if err == nil || !strings.Contains(err.Error(), "nowhere") {
		t.Fatalf("error = %v, want unknown label", err)
	}
}

func TestRewrite_TooManySpilledOperands(t *testing.T) {
	a := &allocation{color: []int{-1, -1, -1, -1}, spill: map[uint32]uint64{0: 0, 1: 1, 2: 2, 3: 3}}
	ops := []asm.Op{asm.Instr(asm.MEQ, v(0), v(1), v(2), v(3))}
	_, err := a.rewrite(ops, 0)
	if err == nil || !strings.Contains(err.Error(), "spilled operands") {
		t.Fatalf("error = %v", err)
	}
}

func TestRewrite_ReloadsAndStores(t *testing.T) {
	tests := []struct {
		name  string
		frame uint64
		want  []string
	}{
		{
			name:  "slot within the immediate",
			frame: 2,
			want: []string{
				"lw $$tmp0 $$locbase i2",
				"add $$tmp0 $$tmp0 $r29",
				"sw $$locbase $$tmp0 i2",
			},
		},
		{
			name:  "slot past the immediate",
			frame: 5000,
			want: []string{
				"movi $$tmp0 i40000",
				"add $$tmp0 $$tmp0 $$locbase",
				"lw $$tmp0 $$tmp0 i0",
				"add $$tmp0 $$tmp0 $r29",
				"movi $$tmp1 i40000",
				"add $$tmp1 $$tmp1 $$locbase",
				"sw $$tmp1 $$tmp0 i0",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &allocation{color: []int{-1, 0}, spill: map[uint32]uint64{0: 0}}
			ops := []asm.Op{asm.Instr(asm.ADD, v(0), v(0), v(1))}
			out, err := a.rewrite(ops, tt.frame)
			if err != nil {
				t.Fatalf("rewrite: %v", err)
			}
			var got []string
			for _, op := range out {
				op.Comment = ""
				got = append(got, op.String())
			}
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Fatalf("rewrite =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestFinalize_SpillsInLargeFrame(t *testing.T) {
	const live, frameWords = 40, 5000
	var body []asm.Op
	for i := range uint32(live) {
		body = append(body, asm.InstrImm(asm.MOVI, uint64(i), v(i)))
	}
	sum := v(live)
	body = append(body, asm.Instr(asm.ADD, sum, v(0), v(1)))
	for i := uint32(2); i < live; i++ {
		body = append(body, asm.Instr(asm.ADD, sum, sum, v(i)))
	}
	body = append(body, asm.Instr(asm.RET, sum))
	fn := entry("main", frameWords, live+1, body...)

	b, err := Finalize(script(t, fn), nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	noVirtual(t, b)
	info := b.Funcs[0]
	if info.Spills == 0 {
		t.Fatal("expected spills with more live values than registers")
	}
	far := 0
	for i, in := range b.Instrs {
		switch in.Opcode {
		case asm.CFEI:
			if want := (frameWords + info.Spills) * 8; in.Imm != want {
				t.Fatalf("frame = %d bytes, want %d", in.Imm, want)
			}
		case asm.LW, asm.SW:
			base := in.Regs[1]
			if in.Opcode == asm.SW {
				base = in.Regs[0]
			}
			if base == asm.LocalsBase {
				t.Fatalf("%s addresses a spill slot past the locals directly", in)
			}
			if i < 2 {
				t.Fatalf("%s has no address computation before it", in)
			}
			add, movi := b.Instrs[i-1], b.Instrs[i-2]
			if add.Opcode != asm.ADD || add.Regs[0] != base || add.Regs[2] != asm.LocalsBase {
				t.Fatalf("%s follows %s, want an add of $$locbase", in, add)
			}
			if movi.Opcode != asm.MOVI || movi.Regs[0] != base || movi.Imm < frameWords*8 {
				t.Fatalf("%s follows %s, want a movi past the locals", in, movi)
			}
			far++
		}
	}
	if far == 0 {
		t.Fatal("no spill slot was accessed")
	}
}

func TestFinalize_SourceMap(t *testing.T) {
	files := source.NewFileSet()
	id := files.AddVirtual("main.sw", []byte("fn main() {\n  ret 5\n}\n"))
	sp := source.Span{File: id, Start: 14, End: 19}
	fn := entry("main", 0, 1,
		asm.InstrImm(asm.MOVI, 5, v(0)).At(sp),
		asm.Instr(asm.RET, v(0)).At(sp),
	)
	b, err := Finalize(script(t, fn), files)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(b.SourceMap) != 2 {
		t.Fatalf("source map = %+v, want two entries", b.SourceMap)
	}
	e := b.SourceMap[0]
	if e.Path != "main.sw" || e.Start.Line != 2 {
		t.Fatalf("entry = %+v", e)
	}
	if e.PC%InstrBytes != 0 || e.PC >= uint64(len(b.Code)) {
		t.Fatalf("pc %d outside the code", e.PC)
	}

	var sb strings.Builder
	if err := Print(&sb, b); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(sb.String(), "; main frame=0") {
		t.Fatalf("listing misses the function header:\n%s", sb.String())
	}
}
