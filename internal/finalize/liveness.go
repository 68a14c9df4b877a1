package finalize

import (
	"fmt"

	"swayc/internal/asm"
)

// regSet is a set of virtual register numbers.
type regSet []uint64

func newRegSet(n uint32) regSet { return make(regSet, (n+63)/64) }

func (s regSet) has(r uint32) bool { return s[r/64]&(1<<(r%64)) != 0 }
func (s regSet) add(r uint32)      { s[r/64] |= 1 << (r % 64) }
func (s regSet) remove(r uint32)   { s[r/64] &^= 1 << (r % 64) }

// union adds every member of other and reports whether s grew.
func (s regSet) union(other regSet) bool {
	changed := false
	for i, w := range other {
		if s[i]|w != s[i] {
			s[i] |= w
			changed = true
		}
	}
	return changed
}

func (s regSet) clone() regSet {
	out := make(regSet, len(s))
	copy(out, s)
	return out
}

func (s regSet) each(fn func(r uint32)) {
	var base uint32
	for _, w := range s {
		for r := base; w != 0; r, w = r+1, w>>1 {
			if w&1 != 0 {
				fn(r)
			}
		}
		base += 64
	}
}

// flowGraph is the op-level control flow of one function.
type flowGraph struct {
	ops   []asm.Op
	succs [][]int
}

func buildFlowGraph(ops []asm.Op) (*flowGraph, error) {
	labels := make(map[asm.Label]int)
	for i, op := range ops {
		if op.Kind == asm.KindLabel {
			if _, dup := labels[op.Label]; dup {
				return nil, fmt.Errorf("label %s defined twice", op.Label)
			}
			labels[op.Label] = i
		}
	}
	g := &flowGraph{ops: ops, succs: make([][]int, len(ops))}
	for i, op := range ops {
		var out []int
		if !op.IsTerminal() && i+1 < len(ops) {
			out = append(out, i+1)
		}
		switch op.Kind {
		case asm.KindJump, asm.KindJumpNZ:
			t, ok := labels[op.Label]
			if !ok {
				return nil, fmt.Errorf("jump to unknown label %s", op.Label)
			}
			out = append(out, t)
		}
		g.succs[i] = out
	}
	return g, nil
}

// liveness holds the virtual registers live on entry to every op.
type liveness struct {
	in []regSet
}

func virtualNums(regs []asm.Register) []uint32 {
	var out []uint32
	for _, r := range regs {
		if r.IsVirtual() {
			out = append(out, r.Num)
		}
	}
	return out
}

// computeLiveness iterates in = uses ∪ (out − defs) to a fixed point,
// walking ops backwards.
func computeLiveness(g *flowGraph, nregs uint32) *liveness {
	lv := &liveness{in: make([]regSet, len(g.ops))}
	for i := range lv.in {
		lv.in[i] = newRegSet(nregs)
	}
	changed := true
	for changed {
		changed = false
		for i := len(g.ops) - 1; i >= 0; i-- {
			in := lv.liveOut(g, i, nregs)
			for _, d := range virtualNums(g.ops[i].Defs()) {
				in.remove(d)
			}
			for _, u := range virtualNums(g.ops[i].Uses()) {
				in.add(u)
			}
			if lv.in[i].union(in) {
				changed = true
			}
		}
	}
	return lv
}

func (lv *liveness) liveOut(g *flowGraph, i int, nregs uint32) regSet {
	out := newRegSet(nregs)
	for _, s := range g.succs[i] {
		out.union(lv.in[s])
	}
	return out
}
