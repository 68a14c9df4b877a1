package analysis

import (
	"math/rand/v2"
	"slices"
	"testing"

	"swayc/internal/ast"
	"swayc/internal/ir"
	"swayc/internal/types"
)

// randomCFG builds a function with n blocks; block 0 is the entry and each
// block branches to one or two random blocks, or returns.
func randomCFG(r *rand.Rand, n int) *ir.Function {
	m := ir.NewModule("t", ast.ProgramScript, types.NewInterner())
	bt := m.Types.Builtins()
	f := ir.NewFunction("f", []ast.Param{{Name: "c", Type: bt.Bool}}, bt.Unit)
	m.AddFunc(f)
	b := ir.NewBuilder(m, f)
	for i := 1; i < n; i++ {
		b.NewBlock("b")
	}
	for i := range n {
		b.SetBlock(ir.BlockID(i))
		switch r.IntN(3) {
		case 0:
			b.Ret(b.ConstUnit())
		case 1:
			b.Branch(ir.BlockID(r.IntN(n)))
		default:
			b.CondBranch(f.Params[0], ir.BlockID(r.IntN(n)), ir.BlockID(r.IntN(n)))
		}
	}
	return f
}

// naiveDominates decides dominance by checking whether b is still reachable
// from entry once a is removed.
func naiveDominates(f *ir.Function, a, b ir.BlockID) bool {
	if a == b {
		return true
	}
	seen := map[ir.BlockID]bool{a: true}
	stack := []ir.BlockID{f.Entry}
	if f.Entry == a {
		return true
	}
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[x] {
			continue
		}
		seen[x] = true
		if x == b {
			return false
		}
		stack = append(stack, f.Successors(x)...)
	}
	return true
}

func TestDominators_MatchNaiveDefinition(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for iter := range 200 {
		n := 1 + r.IntN(10)
		f := randomCFG(r, n)
		dt := Dominators(f)
		preds := f.PredecessorMap()
		for bi := range n {
			b := ir.BlockID(bi)
			if !dt.Reachable(b) {
				continue
			}
			if !dt.Dominates(f.Entry, b) {
				t.Fatalf("iter %d: entry does not dominate reachable b%d", iter, b)
			}
			idom, ok := dt.IDom(b)
			if b == f.Entry {
				if ok {
					t.Fatalf("iter %d: entry has a dominator", iter)
				}
				continue
			}
			for _, p := range preds[b] {
				if dt.Reachable(p) && !dt.Dominates(idom, p) {
					t.Fatalf("iter %d: idom(b%d)=b%d does not dominate predecessor b%d", iter, b, idom, p)
				}
			}
			for ai := range n {
				a := ir.BlockID(ai)
				if !dt.Reachable(a) {
					continue
				}
				if got, want := dt.Dominates(a, b), naiveDominates(f, a, b); got != want {
					t.Fatalf("iter %d: Dominates(b%d, b%d) = %v, want %v", iter, a, b, got, want)
				}
			}
		}
	}
}

func TestDominanceFrontier_Diamond(t *testing.T) {
	m := ir.NewModule("t", ast.ProgramScript, types.NewInterner())
	bt := m.Types.Builtins()
	f := ir.NewFunction("f", []ast.Param{{Name: "c", Type: bt.Bool}}, bt.Unit)
	m.AddFunc(f)
	b := ir.NewBuilder(m, f)
	then, els, join := b.NewBlock("then"), b.NewBlock("else"), b.NewBlock("join")
	b.CondBranch(f.Params[0], then, els)
	b.SetBlock(then)
	b.Branch(join)
	b.SetBlock(els)
	b.Branch(join)
	b.SetBlock(join)
	b.Ret(b.ConstUnit())

	dt := Dominators(f)
	if idom, _ := dt.IDom(join); idom != f.Entry {
		t.Fatalf("idom(join) = %d", idom)
	}
	for _, x := range []ir.BlockID{then, els} {
		if !slices.Equal(dt.Frontier(x), []ir.BlockID{join}) {
			t.Fatalf("DF(%d) = %v", x, dt.Frontier(x))
		}
	}
	if len(dt.Frontier(f.Entry)) != 0 {
		t.Fatalf("DF(entry) = %v", dt.Frontier(f.Entry))
	}
	if len(dt.PostOrder()) != 4 || dt.ReversePostOrder()[0] != f.Entry {
		t.Fatalf("post-order %v", dt.PostOrder())
	}
}

func TestEscapedSymbols(t *testing.T) {
	m := ir.NewModule("t", ast.ProgramScript, types.NewInterner())
	bt := m.Types.Builtins()
	pair := m.Types.Tuple([]types.TypeID{bt.U64, bt.U64})
	callee := ir.NewFunction("sink", []ast.Param{{Name: "p", Type: m.Types.Pointer(bt.U64)}}, bt.Unit)
	m.AddFunc(callee)
	cb := ir.NewBuilder(m, callee)
	cb.Ret(cb.ConstUnit())

	f := ir.NewFunction("f", nil, bt.Unit)
	m.AddFunc(f)
	b := ir.NewBuilder(m, f)
	kept := f.AddLocal(ir.Local{Name: "kept", Type: pair})
	passed := f.AddLocal(ir.Local{Name: "passed", Type: pair})
	logged := f.AddLocal(ir.Local{Name: "logged", Type: bt.U64})

	p := b.GetLocal(kept)
	b.Store(b.GetElemPtr(p, 0), b.ConstUint(bt.U64, 1))
	b.Load(b.GetElemPtr(p, 1))
	b.Call(callee.ID, bt.Unit, []ir.ValueID{b.GetElemPtr(b.GetLocal(passed), 1)})
	b.Log(b.PtrToInt(b.GetLocal(logged)))
	b.Ret(b.ConstUnit())

	info := EscapedSymbols(f)
	if info.Escaped(kept) {
		t.Error("kept is only loaded and stored")
	}
	if !info.Escaped(passed) {
		t.Error("passed flows into a call")
	}
	if !info.Escaped(logged) {
		t.Error("logged flows into ptr_to_int")
	}
	if !info.AnyEscaped() {
		t.Error("AnyEscaped should be true")
	}
}
