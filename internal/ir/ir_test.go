package ir

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"swayc/internal/ast"
	"swayc/internal/source"
	"swayc/internal/storagekey"
	"swayc/internal/types"
)

func newTestModule() *Module {
	return NewModule("test", ast.ProgramScript, types.NewInterner())
}

// buildMax builds fn max(a: u64, b: u64) -> u64 with a diamond and a phi.
func buildMax(m *Module) *Function {
	u64 := m.Types.Builtins().U64
	f := NewFunction("max", []ast.Param{{Name: "a", Type: u64}, {Name: "b", Type: u64}}, u64)
	m.AddFunc(f)
	b := NewBuilder(m, f)
	a, bv := f.Params[0], f.Params[1]
	then, els, join := b.NewBlock("then"), b.NewBlock("else"), b.NewBlock("join")
	b.CondBranch(b.Cmp(PredGt, a, bv), then, els)
	b.SetBlock(then)
	b.Branch(join)
	b.SetBlock(els)
	b.Branch(join)
	b.SetBlock(join)
	phi := b.Phi(u64, []PhiIncoming{{Block: then, Value: a}, {Block: els, Value: bv}})
	b.Ret(phi)
	return f
}

func TestVerify_AcceptsWellFormed(t *testing.T) {
	m := newTestModule()
	buildMax(m)
	if err := Verify(m, VerifyOptions{Strict: true}); err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
}

func TestVerify_Structural(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(m *Module, f *Function)
		want   string
	}{
		{
			name: "instruction after terminator",
			mutate: func(m *Module, f *Function) {
				b := NewBuilder(m, f)
				b.SetBlock(3)
				b.Ret(f.Params[0])
			},
			want: "followed by",
		},
		{
			name: "missing terminator",
			mutate: func(m *Module, f *Function) {
				f.RemoveAt(3, len(f.Blocks[3].Instrs)-1)
			},
			want: "does not end in a terminator",
		},
		{
			name: "return type mismatch",
			mutate: func(m *Module, f *Function) {
				term := f.Terminator(3)
				term.Instr.Operands[0] = f.NewConst(m.Types.Builtins().Bool, Const{Kind: ConstBool})
			},
			want: "ret of bool",
		},
		{
			name: "duplicate phi predecessor",
			mutate: func(m *Module, f *Function) {
				phi := f.Value(f.Blocks[3].Instrs[0])
				phi.Instr.Incoming[1].Block = phi.Instr.Incoming[0].Block
			},
			want: "more than once",
		},
		{
			name: "phi from non-predecessor",
			mutate: func(m *Module, f *Function) {
				phi := f.Value(f.Blocks[3].Instrs[0])
				phi.Instr.Incoming[1].Block = 0
			},
			want: "not a predecessor",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestModule()
			f := buildMax(m)
			tc.mutate(m, f)
			err := Verify(m, VerifyOptions{})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error containing %q, got %v", tc.want, err)
			}
			var ve *VerifyError
			if !errors.As(err, &ve) {
				t.Fatalf("error is not a *VerifyError: %T", err)
			}
		})
	}
}

func TestVerify_StrictOnlyTypeChecks(t *testing.T) {
	m := newTestModule()
	bt := m.Types.Builtins()
	f := NewFunction("f", nil, bt.Unit)
	m.AddFunc(f)
	b := NewBuilder(m, f)
	l := f.AddLocal(Local{Name: "x", Type: bt.U64})
	b.Store(b.GetLocal(l), b.ConstBool(true))
	b.Ret(b.ConstUnit())

	if err := Verify(m, VerifyOptions{}); err != nil {
		t.Fatalf("non-strict verify should accept: %v", err)
	}
	if err := Verify(m, VerifyOptions{Strict: true}); err == nil {
		t.Fatal("strict verify should reject a bool stored through ptr u64")
	}
}

func TestInterpreter_Phi(t *testing.T) {
	m := newTestModule()
	buildMax(m)
	it := NewInterpreter(m)
	for _, tc := range [][3]uint64{{1, 2, 2}, {9, 3, 9}, {4, 4, 4}} {
		got, err := it.Run("max", []uint64{tc[0]}, []uint64{tc[1]})
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != tc[2] {
			t.Fatalf("max(%d, %d) = %d", tc[0], tc[1], got[0])
		}
	}
}

func TestInterpreter_AggregatesAndMemory(t *testing.T) {
	m := newTestModule()
	bt := m.Types.Builtins()
	pair := m.Types.RegisterStruct("Pair", source.Span{}, []types.StructField{
		{Name: "a", Type: bt.U64},
		{Name: "b", Type: bt.B256},
	})
	f := NewFunction("pair", []ast.Param{{Name: "x", Type: bt.U64}}, bt.U64)
	m.AddFunc(f)
	b := NewBuilder(m, f)
	agg := b.InsertValue(b.Undef(pair), f.Params[0], 0)
	agg = b.InsertValue(agg, b.ConstB256([32]byte{31: 5}), 1)
	l := f.AddLocal(Local{Name: "p", Type: pair})
	ptr := b.GetLocal(l)
	b.Store(ptr, agg)
	field := b.Load(b.GetElemPtr(ptr, 1))
	low := b.ExtractValue(b.Load(ptr), 0)
	sum := b.Binary(BinAdd, low, b.ConstUint(bt.U64, 1))
	b.Log(field)
	b.Ret(sum)

	if err := Verify(m, VerifyOptions{Strict: true}); err != nil {
		t.Fatal(err)
	}
	it := NewInterpreter(m)
	got, err := it.Run("pair", []uint64{41})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 42 {
		t.Fatalf("got %v", got)
	}
	if len(it.Logs) != 1 || len(it.Logs[0]) != 4 || it.Logs[0][3] != 5 {
		t.Fatalf("logs %v", it.Logs)
	}
}

func TestInterpreter_StorageAndRevert(t *testing.T) {
	m := newTestModule()
	bt := m.Types.Builtins()
	key := storagekey.Derive([]string{"counter"}, nil)
	m.StorageSlots = storagekey.Slots(key, []uint64{10})

	f := NewFunction("bump", nil, bt.U64)
	m.AddFunc(f)
	b := NewBuilder(m, f)
	k := b.ConstB256(key)
	n := b.Binary(BinAdd, b.StateLoadWord(k), b.ConstUint(bt.U64, 1))
	b.StateStoreWord(k, n)
	ok, bad := b.NewBlock("ok"), b.NewBlock("bad")
	b.CondBranch(b.Cmp(PredLt, n, b.ConstUint(bt.U64, 12)), ok, bad)
	b.SetBlock(ok)
	b.Ret(n)
	b.SetBlock(bad)
	b.Revert(b.ConstUint(bt.U64, 7))

	it := NewInterpreter(m)
	if got, err := it.Run("bump"); err != nil || got[0] != 11 {
		t.Fatalf("first bump = %v, %v", got, err)
	}
	_, err := it.Run("bump")
	var rev *RevertError
	if !errors.As(err, &rev) || rev.Code != 7 {
		t.Fatalf("second bump should revert with 7, got %v", err)
	}
}

func TestInterpreter_DivisionByZero(t *testing.T) {
	m := newTestModule()
	u64 := m.Types.Builtins().U64
	f := NewFunction("div", []ast.Param{{Name: "a", Type: u64}, {Name: "b", Type: u64}}, u64)
	m.AddFunc(f)
	b := NewBuilder(m, f)
	b.Ret(b.Binary(BinDiv, f.Params[0], f.Params[1]))
	_, err := NewInterpreter(m).Run("div", []uint64{1}, []uint64{0})
	if !errors.Is(err, ErrArithmetic) {
		t.Fatalf("err = %v", err)
	}
}

func TestPrint(t *testing.T) {
	m := newTestModule()
	buildMax(m)
	var buf bytes.Buffer
	if err := Print(&buf, m); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"fn max(v0 a: u64, v1 b: u64) -> u64:", "cmp gt v0, v1 : bool", "phi (then1: v0, else2: v1)", "ret v"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := newTestModule()
	f := buildMax(m)
	c := m.Clone()
	c.Funcs[0].Blocks[0].Instrs = nil
	c.Funcs[0].Values[2].Instr.Operands[0] = 1
	if len(f.Blocks[0].Instrs) == 0 || f.Values[2].Instr.Operands[0] != 0 {
		t.Fatal("clone shares storage with the original")
	}
}

func TestPredecessorsAndUsers(t *testing.T) {
	m := newTestModule()
	f := buildMax(m)
	preds := f.Predecessors(3)
	if len(preds) != 2 || preds[0] != 1 || preds[1] != 2 {
		t.Fatalf("preds %v", preds)
	}
	users := f.Users(f.Params[0])
	if len(users) != 2 {
		t.Fatalf("a has users %v", users)
	}
}
