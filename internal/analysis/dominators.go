// Package analysis computes facts about IR functions that optimisation
// passes share: dominance and escaping locals.
package analysis

import (
	"slices"

	"fortio.org/safecast"

	"swayc/internal/ir"
)

// DomTree is the dominator tree of one function. Unreachable blocks have no
// dominator and dominate nothing.
type DomTree struct {
	entry     ir.BlockID
	idom      []ir.BlockID
	postOrder []ir.BlockID
	poNum     []int
	frontier  [][]ir.BlockID
	children  [][]ir.BlockID
}

// Dominators computes the dominator tree with the Cooper-Harvey-Kennedy
// iterative algorithm, then the dominance frontiers.
func Dominators(f *ir.Function) *DomTree {
	n := len(f.Blocks)
	t := &DomTree{
		entry:    f.Entry,
		idom:     make([]ir.BlockID, n),
		poNum:    make([]int, n),
		frontier: make([][]ir.BlockID, n),
		children: make([][]ir.BlockID, n),
	}
	for i := range t.idom {
		t.idom[i] = ir.NoBlockID
		t.poNum[i] = -1
	}
	if n == 0 {
		return t
	}
	t.postOrder = postOrder(f)
	for i, b := range t.postOrder {
		t.poNum[b] = i
	}
	preds := f.PredecessorMap()

	t.idom[f.Entry] = f.Entry
	for changed := true; changed; {
		changed = false
		for i := len(t.postOrder) - 1; i >= 0; i-- {
			b := t.postOrder[i]
			if b == f.Entry {
				continue
			}
			newIdom := ir.NoBlockID
			for _, p := range preds[b] {
				if t.idom[p] == ir.NoBlockID {
					continue
				}
				if newIdom == ir.NoBlockID {
					newIdom = p
				} else {
					newIdom = t.intersect(p, newIdom)
				}
			}
			if newIdom != ir.NoBlockID && t.idom[b] != newIdom {
				t.idom[b] = newIdom
				changed = true
			}
		}
	}

	for b := range t.idom {
		bid := safecast.MustConv[ir.BlockID](b)
		if bid != f.Entry && t.idom[b] != ir.NoBlockID {
			t.children[t.idom[b]] = append(t.children[t.idom[b]], bid)
		}
	}

	for b := range n {
		bid := safecast.MustConv[ir.BlockID](b)
		if len(preds[b]) < 2 || t.idom[b] == ir.NoBlockID {
			continue
		}
		for _, p := range preds[b] {
			if t.idom[p] == ir.NoBlockID {
				continue
			}
			for runner := p; runner != t.idom[b]; runner = t.idom[runner] {
				if !slices.Contains(t.frontier[runner], bid) {
					t.frontier[runner] = append(t.frontier[runner], bid)
				}
				if runner == f.Entry {
					break
				}
			}
		}
	}
	return t
}

// intersect walks both fingers up the tree until they meet, always moving
// the one with the smaller post-order number.
func (t *DomTree) intersect(a, b ir.BlockID) ir.BlockID {
	for a != b {
		for t.poNum[a] < t.poNum[b] {
			a = t.idom[a]
		}
		for t.poNum[b] < t.poNum[a] {
			b = t.idom[b]
		}
	}
	return a
}

// postOrder numbers the blocks reachable from entry. The on-stack guard
// keeps cycles from recursing forever.
func postOrder(f *ir.Function) []ir.BlockID {
	visited := make([]bool, len(f.Blocks))
	out := make([]ir.BlockID, 0, len(f.Blocks))
	type item struct {
		b    ir.BlockID
		next int
	}
	stack := []item{{b: f.Entry}}
	visited[f.Entry] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := f.Successors(top.b)
		if top.next < len(succs) {
			s := succs[top.next]
			top.next++
			if s.IsValid() && int(s) < len(visited) && !visited[s] {
				visited[s] = true
				stack = append(stack, item{b: s})
			}
			continue
		}
		out = append(out, top.b)
		stack = stack[:len(stack)-1]
	}
	return out
}

// IDom returns the immediate dominator of b. The entry block and
// unreachable blocks have none.
func (t *DomTree) IDom(b ir.BlockID) (ir.BlockID, bool) {
	if b == t.entry || !t.Reachable(b) {
		return ir.NoBlockID, false
	}
	return t.idom[b], true
}

// Reachable reports whether b is reachable from entry.
func (t *DomTree) Reachable(b ir.BlockID) bool {
	return b.IsValid() && int(b) < len(t.idom) && t.idom[b] != ir.NoBlockID
}

// Dominates reports whether a dominates b. Every block dominates itself.
func (t *DomTree) Dominates(a, b ir.BlockID) bool {
	if !t.Reachable(a) || !t.Reachable(b) {
		return false
	}
	for {
		if a == b {
			return true
		}
		if b == t.entry {
			return false
		}
		b = t.idom[b]
	}
}

// Frontier returns the dominance frontier of b.
func (t *DomTree) Frontier(b ir.BlockID) []ir.BlockID {
	if !b.IsValid() || int(b) >= len(t.frontier) {
		return nil
	}
	return t.frontier[b]
}

// Children returns the blocks immediately dominated by b.
func (t *DomTree) Children(b ir.BlockID) []ir.BlockID {
	if !b.IsValid() || int(b) >= len(t.children) {
		return nil
	}
	return t.children[b]
}

// PostOrder returns the reachable blocks in post-order.
func (t *DomTree) PostOrder() []ir.BlockID {
	return t.postOrder
}

// ReversePostOrder returns the reachable blocks in reverse post-order.
func (t *DomTree) ReversePostOrder() []ir.BlockID {
	out := slices.Clone(t.postOrder)
	slices.Reverse(out)
	return out
}
