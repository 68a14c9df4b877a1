package asm

import (
	"bytes"
	"strings"
	"testing"

	"swayc/internal/ast"
)

func TestSequencerNeverReuses(t *testing.T) {
	seq := NewSequencer("f")
	seen := map[Register]bool{}
	for range 1000 {
		r := seq.Next()
		if !r.IsVirtual() {
			t.Fatalf("sequencer issued non-virtual register %v", r)
		}
		if seen[r] {
			t.Fatalf("register %v issued twice", r)
		}
		seen[r] = true
	}
	if seq.Issued() != 1000 {
		t.Fatalf("Issued = %d, want 1000", seq.Issued())
	}
	a, b := seq.NextLabel("then"), seq.NextLabel("then")
	if a == b || !strings.HasPrefix(string(a), "f.then") {
		t.Fatalf("labels %q %q", a, b)
	}
}

func TestDataSectionDeduplicates(t *testing.T) {
	d := NewDataSection()
	w := d.Insert(WordLiteral(42))
	s := d.Insert(StrLiteral("hello"))
	if again := d.Insert(WordLiteral(42)); again != w {
		t.Fatalf("duplicate word got label %d, want %d", again, w)
	}
	if again := d.Insert(StrLiteral("hello")); again != s {
		t.Fatalf("duplicate string got label %d, want %d", again, s)
	}
	other := d.Insert(WordLiteral(7))
	if d.Len() != 3 {
		t.Fatalf("Len = %d, want 3", d.Len())
	}
	if d.OffsetWords(s) != 1 || d.OffsetWords(other) != 2 {
		t.Fatalf("offsets %d %d", d.OffsetWords(s), d.OffsetWords(other))
	}
	got := d.Bytes()
	want := []byte{
		0, 0, 0, 0, 0, 0, 0, 42,
		'h', 'e', 'l', 'l', 'o', 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 7,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Bytes = %v, want %v", got, want)
	}
}

func TestNamespaceScopes(t *testing.T) {
	ns := NewNamespace()
	seq := NewSequencer("f")
	outer, inner := seq.Next(), seq.Next()
	ns.Bind("x", outer)
	ns.Push()
	ns.Bind("x", inner)
	if r, _ := ns.Lookup("x"); r != inner {
		t.Fatalf("inner lookup = %v", r)
	}
	ns.Pop()
	if r, _ := ns.Lookup("x"); r != outer {
		t.Fatalf("outer lookup = %v", r)
	}
	ns.Pop()
	if _, ok := ns.Lookup("x"); !ok {
		t.Fatal("outermost scope was dropped")
	}
	if _, ok := ns.Lookup("y"); ok {
		t.Fatal("unbound name resolved")
	}
}

func TestAddFuncRelabelsData(t *testing.T) {
	p := NewProgram(ast.ProgramScript)
	p.Data.Insert(WordLiteral(1))

	f := &Function{Name: "f", Data: NewDataSection()}
	id := f.Data.Insert(WordLiteral(99))
	one := f.Data.Insert(WordLiteral(1))
	f.Emit(LoadData(Real(30), id), LoadData(Real(31), one))
	p.AddFunc(f)

	if p.Data.Len() != 2 {
		t.Fatalf("program data has %d entries, want 2", p.Data.Len())
	}
	lit, _ := p.Data.Get(f.Ops[0].Data)
	if lit.Word != 99 {
		t.Fatalf("relabelled literal = %d, want 99", lit.Word)
	}
	if f.Ops[1].Data != 0 {
		t.Fatalf("shared literal label = %d, want 0", f.Ops[1].Data)
	}
}

func TestOpDefsAndUses(t *testing.T) {
	dst, status, key, val := Virtual(0), Virtual(1), Virtual(2), Virtual(3)
	cases := []struct {
		name string
		op   Op
		defs []Register
		uses []Register
	}{
		{"add", Instr(ADD, dst, key, val), []Register{dst}, []Register{key, val}},
		{"sw", InstrImm(SW, 1, key, val), nil, []Register{key, val}},
		{"srw", Instr(SRW, dst, status, key), []Register{dst, status}, []Register{key}},
		{"sww", Instr(SWW, key, status, val), []Register{status}, []Register{key, val}},
		{"swwq", Instr(SWWQ, key, status, val, dst), []Register{status}, []Register{key, val, dst}},
		{"jnz", JumpNZ(dst, "l"), nil, []Register{dst}},
		{"load data", LoadData(dst, 0), []Register{dst}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.op.Defs(); !sameRegs(got, tc.defs) {
				t.Fatalf("Defs = %v, want %v", got, tc.defs)
			}
			if got := tc.op.Uses(); !sameRegs(got, tc.uses) {
				t.Fatalf("Uses = %v, want %v", got, tc.uses)
			}
		})
	}
}

func sameRegs(a, b []Register) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOpcodeTableIsComplete(t *testing.T) {
	seen := map[byte]Opcode{}
	for op := ADD; op <= NOOP; op++ {
		info := op.Info()
		if info.Name == "" {
			t.Fatalf("opcode %d has no table entry", op)
		}
		if prev, dup := seen[info.Byte]; dup {
			t.Fatalf("%s and %s share encoding 0x%02x", prev, op, info.Byte)
		}
		seen[info.Byte] = op
	}
}

func TestRegisterNames(t *testing.T) {
	cases := map[Register]string{
		Zero:       "$zero",
		SP:         "$sp",
		LocalsBase: "$$locbase",
		Real(40):   "$r40",
		Virtual(3): "$v3",
	}
	for r, want := range cases {
		if r.String() != want {
			t.Errorf("%v prints %q, want %q", r, r.String(), want)
		}
	}
	if !Real(29).IsAllocatable() || Real(28).IsAllocatable() {
		t.Fatal("allocatable range is wrong")
	}
}

func TestPrint(t *testing.T) {
	p := NewProgram(ast.ProgramContract)
	f := &Function{Name: "get", IsEntry: true, HasSelector: true, Selector: 0xdeadbeef, Data: NewDataSection()}
	r := Virtual(0)
	f.Emit(
		LabelOp("get.entry"),
		LoadData(r, f.Data.Insert(WordLiteral(5))).WithComment("five"),
		Instr(RET, r),
	)
	p.AddFunc(f)
	out := p.String()
	for _, want := range []string{
		".program contract",
		".fn get entry selector=0xdeadbeef",
		"get.entry:",
		"    lw $v0 data_0  ; five",
		"    ret $v0",
		"data_0 .word 5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing misses %q:\n%s", want, out)
		}
	}
}
