package opt

import (
	"slices"

	"fortio.org/safecast"

	"swayc/internal/ir"
)

func SimplifyCFGPass() Pass {
	return Pass{
		Name:  "simplify-cfg",
		Descr: "fold constant branches, skip empty blocks, merge straight-line blocks, drop unreachable blocks",
		RunFunc: func(_ *Context, f *ir.Function) (bool, error) {
			return SimplifyCFG(f), nil
		},
	}
}

// SimplifyCFG performs control flow graph simplification on a function.
// Transformations:
// 1. Fold conditional branches on constants or to a single target
// 2. Redirect branches through empty forwarding blocks
// 3. Merge a block into its only predecessor
// 4. Remove unreachable blocks and renumber deterministically
func SimplifyCFG(f *ir.Function) bool {
	if f == nil || len(f.Blocks) == 0 {
		return false
	}
	changed := foldBranches(f)
	if redirectForwarders(f) {
		changed = true
	}
	if mergeBlocks(f) {
		changed = true
	}
	reachable := computeReachability(f)
	if compactBlocks(f, reachable) {
		changed = true
	}
	return changed
}

// foldBranches turns cbr on a constant, or cbr with equal targets, into br.
func foldBranches(f *ir.Function) bool {
	changed := false
	for i := range f.Blocks {
		term := f.Terminator(f.Blocks[i].ID)
		if term == nil || term.Instr.Op != ir.OpCondBranch {
			continue
		}
		then, els := term.Instr.Targets[0], term.Instr.Targets[1]
		keep, drop := ir.NoBlockID, ir.NoBlockID
		cond := f.Value(term.Instr.Operands[0])
		switch {
		case then == els:
			keep = then
		case cond.IsConst(ir.ConstBool) && cond.Const.Bool:
			keep, drop = then, els
		case cond.IsConst(ir.ConstBool):
			keep, drop = els, then
		default:
			continue
		}
		term.Instr = ir.Instr{Op: ir.OpBranch, Targets: []ir.BlockID{keep}}
		if drop.IsValid() {
			removeIncoming(f, drop, f.Blocks[i].ID)
		}
		changed = true
	}
	return changed
}

// isForwarder reports whether b holds nothing but an unconditional branch.
func isForwarder(f *ir.Function, b ir.BlockID) (ir.BlockID, bool) {
	bb := f.Block(b)
	if bb == nil || len(bb.Instrs) != 1 || b == f.Entry {
		return ir.NoBlockID, false
	}
	term := f.Value(bb.Instrs[0])
	if term.Instr.Op != ir.OpBranch || term.Instr.Targets[0] == b {
		return ir.NoBlockID, false
	}
	return term.Instr.Targets[0], true
}

// redirectForwarders points branches past empty forwarding blocks. A
// forwarder is skipped only when its target has no phis, since the phis
// would otherwise need an entry for the new predecessor.
func redirectForwarders(f *ir.Function) bool {
	changed := false
	for i := range f.Blocks {
		term := f.Terminator(f.Blocks[i].ID)
		if term == nil {
			continue
		}
		for j, t := range term.Instr.Targets {
			target := t
			visited := map[ir.BlockID]bool{}
			for !visited[target] {
				visited[target] = true
				next, ok := isForwarder(f, target)
				if !ok || hasPhis(f, next) {
					break
				}
				target = next
			}
			if target != t {
				term.Instr.Targets[j] = target
				changed = true
			}
		}
		if term.Instr.Op == ir.OpCondBranch && term.Instr.Targets[0] == term.Instr.Targets[1] {
			term.Instr = ir.Instr{Op: ir.OpBranch, Targets: []ir.BlockID{term.Instr.Targets[0]}}
		}
	}
	return changed
}

// mergeBlocks appends a block to its predecessor when the predecessor
// branches only there and the block has no other predecessor.
func mergeBlocks(f *ir.Function) bool {
	changed := false
	for {
		merged := false
		preds := f.PredecessorMap()
		for i := range f.Blocks {
			b := f.Blocks[i].ID
			if b == f.Entry || len(preds[b]) != 1 || hasPhis(f, b) {
				continue
			}
			p := preds[b][0]
			if p == b {
				continue
			}
			pterm := f.Terminator(p)
			if pterm == nil || pterm.Instr.Op != ir.OpBranch {
				continue
			}
			// Drop the branch and move b's instructions into p.
			f.RemoveAt(p, len(f.Blocks[p].Instrs)-1)
			for _, id := range f.Blocks[b].Instrs {
				f.Blocks[p].Instrs = append(f.Blocks[p].Instrs, id)
				f.Values[id].Block = p
			}
			f.Blocks[b].Instrs = nil
			for _, s := range f.Successors(p) {
				renameIncoming(f, s, b, p)
			}
			merged = true
			changed = true
			break
		}
		if !merged {
			return changed
		}
	}
}

func hasPhis(f *ir.Function, b ir.BlockID) bool {
	bb := f.Block(b)
	return bb != nil && len(bb.Instrs) > 0 && f.Value(bb.Instrs[0]).Instr.Op == ir.OpPhi
}

func removeIncoming(f *ir.Function, b, pred ir.BlockID) {
	for _, id := range f.Blocks[b].Instrs {
		v := f.Value(id)
		if v.Instr.Op != ir.OpPhi {
			return
		}
		v.Instr.Incoming = slices.DeleteFunc(v.Instr.Incoming, func(in ir.PhiIncoming) bool { return in.Block == pred })
	}
}

func renameIncoming(f *ir.Function, b, from, to ir.BlockID) {
	for _, id := range f.Blocks[b].Instrs {
		v := f.Value(id)
		if v.Instr.Op != ir.OpPhi {
			return
		}
		for i := range v.Instr.Incoming {
			if v.Instr.Incoming[i].Block == from {
				v.Instr.Incoming[i].Block = to
			}
		}
	}
}

// computeReachability performs a DFS from the entry block to find
// all reachable blocks.
func computeReachability(f *ir.Function) []bool {
	reachable := make([]bool, len(f.Blocks))

	var visit func(id ir.BlockID)
	visit = func(id ir.BlockID) {
		if id < 0 || int(id) >= len(f.Blocks) || reachable[id] {
			return
		}
		reachable[id] = true
		for _, s := range f.Successors(id) {
			visit(s)
		}
	}

	visit(f.Entry)
	return reachable
}

// compactBlocks removes unreachable blocks and renumbers the remaining ones.
// Empty blocks left behind by merging are unreachable by construction.
func compactBlocks(f *ir.Function, reachable []bool) bool {
	count := 0
	for _, r := range reachable {
		if r {
			count++
		}
	}
	if count == len(f.Blocks) {
		return false
	}

	oldToNew := make(map[ir.BlockID]ir.BlockID, count)
	newBlocks := make([]ir.Block, 0, count)
	for i, keep := range reachable {
		if keep {
			oldToNew[safecast.MustConv[ir.BlockID](i)] = safecast.MustConv[ir.BlockID](len(newBlocks))
			newBlocks = append(newBlocks, f.Blocks[i])
			continue
		}
		for _, id := range f.Blocks[i].Instrs {
			f.Values[id].Block = ir.NoBlockID
		}
	}

	remap := func(id ir.BlockID) ir.BlockID {
		if newID, ok := oldToNew[id]; ok {
			return newID
		}
		return ir.NoBlockID
	}

	for i := range newBlocks {
		newBlocks[i].ID = safecast.MustConv[ir.BlockID](i)
		for _, id := range newBlocks[i].Instrs {
			v := f.Value(id)
			v.Block = newBlocks[i].ID
			for j := range v.Instr.Targets {
				v.Instr.Targets[j] = remap(v.Instr.Targets[j])
			}
			if v.Instr.Op == ir.OpPhi {
				v.Instr.Incoming = slices.DeleteFunc(v.Instr.Incoming, func(in ir.PhiIncoming) bool {
					return remap(in.Block) == ir.NoBlockID
				})
				for j := range v.Instr.Incoming {
					v.Instr.Incoming[j].Block = remap(v.Instr.Incoming[j].Block)
				}
			}
		}
	}

	f.Blocks = newBlocks
	f.Entry = remap(f.Entry)
	return true
}
