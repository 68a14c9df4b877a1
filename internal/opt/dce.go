package opt

import (
	"fortio.org/safecast"

	"swayc/internal/ir"
)

func DCEPass() Pass {
	return Pass{
		Name:  "dce",
		Descr: "remove unused side-effect-free instructions and unreferenced locals",
		RunFunc: func(_ *Context, f *ir.Function) (bool, error) {
			return DeadCodeElim(f), nil
		},
	}
}

// DeadCodeElim removes instructions without side effects whose results are
// never used, until nothing changes, then drops locals no get_local names.
func DeadCodeElim(f *ir.Function) bool {
	changed := false
	for {
		uses := f.UseCounts()
		removed := false
		for i := range f.Blocks {
			b := f.Blocks[i].ID
			for pos := len(f.Blocks[i].Instrs) - 1; pos >= 0; pos-- {
				id := f.Blocks[i].Instrs[pos]
				v := f.Value(id)
				if v.Instr.Op.HasSideEffects() || uses[id] > 0 {
					continue
				}
				f.RemoveAt(b, pos)
				removed = true
			}
		}
		if !removed {
			break
		}
		changed = true
	}
	if removeUnusedLocals(f) {
		changed = true
	}
	return changed
}

func removeUnusedLocals(f *ir.Function) bool {
	used := make([]bool, len(f.Locals))
	for _, bb := range f.Blocks {
		for _, id := range bb.Instrs {
			if v := f.Value(id); v.Instr.Op == ir.OpGetLocal {
				used[v.Instr.Local] = true
			}
		}
	}
	return dropLocals(f, used)
}

// dropLocals removes every local whose keep entry is false and renumbers
// the get_local instructions naming the rest.
func dropLocals(f *ir.Function, keep []bool) bool {
	remap := make([]ir.LocalID, len(f.Locals))
	kept := f.Locals[:0]
	for i, l := range f.Locals {
		if !keep[i] {
			remap[i] = ir.NoLocalID
			continue
		}
		remap[i] = safecast.MustConv[ir.LocalID](len(kept))
		kept = append(kept, l)
	}
	if len(kept) == len(keep) {
		return false
	}
	f.Locals = kept
	for i := range f.Values {
		v := &f.Values[i]
		if v.Kind == ir.ValueInstr && v.Instr.Op == ir.OpGetLocal && v.Block.IsValid() {
			v.Instr.Local = remap[v.Instr.Local]
		}
	}
	return true
}
