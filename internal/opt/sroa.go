package opt

import (
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"

	"swayc/internal/ir"
	"swayc/internal/layout"
	"swayc/internal/types"
)

func SROAPass() Pass {
	return Pass{
		Name:  "sroa",
		Descr: "split non-escaping aggregate locals into one local per scalar leaf",
		Deps:  []AnalysisID{AnalysisEscape},
		RunFunc: func(ctx *Context, f *ir.Function) (bool, error) {
			return SROA(ctx.Module, f, ctx.Analyses.Escape(f))
		},
	}
}

// SROA replaces aggregate locals that never escape and are only accessed
// through constant paths to single-word leaves or as a whole. Whole loads
// and stores are rewritten leaf by leaf; the split locals are dropped.
func SROA(m *ir.Module, f *ir.Function, esc interface{ Escaped(ir.LocalID) bool }) (bool, error) {
	cands := sroaCandidates(m, f, esc)
	if len(cands) == 0 {
		return false, nil
	}
	ids := make([]ir.LocalID, 0, len(cands))
	for l := range cands {
		ids = append(ids, l)
	}
	slices.Sort(ids)
	keep := make([]bool, len(f.Locals))
	for i := range keep {
		keep[i] = true
	}
	for _, l := range ids {
		if err := splitLocal(m, f, l, cands[l]); err != nil {
			return true, err
		}
		keep[l] = false
	}
	for len(keep) < len(f.Locals) {
		keep = append(keep, true)
	}
	dropLocals(f, keep)
	return true, nil
}

// maxSplitLeaves bounds the scalar locals one aggregate may be split into.
const maxSplitLeaves = 64

type sroaAccess struct {
	getLocal []ir.ValueID
	geps     []ir.ValueID
	loads    []ir.ValueID
	stores   []ir.ValueID
}

func sroaCandidates(m *ir.Module, f *ir.Function, esc interface{ Escaped(ir.LocalID) bool }) map[ir.LocalID]*sroaAccess {
	out := make(map[ir.LocalID]*sroaAccess)
	bad := make([]bool, len(f.Locals))
	leafPaths := make(map[ir.LocalID]map[string]bool)

	for i, l := range f.Locals {
		switch m.Types.KindOf(l.Type) {
		case types.KindStruct, types.KindTuple, types.KindArray:
		default:
			bad[i] = true
			continue
		}
		if esc.Escaped(safecast.MustConv[ir.LocalID](i)) {
			bad[i] = true
			continue
		}
		leaves, err := m.Layout.Leaves(l.Type)
		if err != nil || len(leaves) > maxSplitLeaves {
			bad[i] = true
			continue
		}
		paths := make(map[string]bool, len(leaves))
		for _, lf := range leaves {
			if !m.Layout.IsCopyType(lf.Type) {
				bad[i] = true
				break
			}
			paths[pathKey(lf.Path)] = true
		}
		leafPaths[safecast.MustConv[ir.LocalID](i)] = paths
	}

	uses := usersByValue(f)
	for _, bb := range f.Blocks {
		for _, id := range bb.Instrs {
			v := f.Value(id)
			if v.Instr.Op != ir.OpGetLocal || bad[v.Instr.Local] {
				continue
			}
			l := v.Instr.Local
			acc := out[l]
			if acc == nil {
				acc = &sroaAccess{}
				out[l] = acc
			}
			acc.getLocal = append(acc.getLocal, id)
			for _, u := range uses[id] {
				uv := f.Value(u)
				switch {
				case uv.Instr.Op == ir.OpLoad:
					acc.loads = append(acc.loads, u)
				case uv.Instr.Op == ir.OpStore && uv.Instr.Operands[0] == id && uv.Instr.Operands[1] != id:
					acc.stores = append(acc.stores, u)
				case uv.Instr.Op == ir.OpGetElemPtr && uv.Instr.Operands[0] == id &&
					leafPaths[l][pathKey(uv.Instr.Indices)] && onlyScalarAccess(f, uses[u], u):
					acc.geps = append(acc.geps, u)
				default:
					bad[l] = true
				}
				if bad[l] {
					break
				}
			}
		}
	}
	for l := range out {
		if bad[l] {
			delete(out, l)
		}
	}
	return out
}

// onlyScalarAccess reports whether ptr is only loaded from or stored
// through, never stored itself.
func onlyScalarAccess(f *ir.Function, users []ir.ValueID, ptr ir.ValueID) bool {
	for _, u := range users {
		uv := f.Value(u)
		switch uv.Instr.Op {
		case ir.OpLoad:
		case ir.OpStore:
			if uv.Instr.Operands[0] != ptr || uv.Instr.Operands[1] == ptr {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func usersByValue(f *ir.Function) map[ir.ValueID][]ir.ValueID {
	out := make(map[ir.ValueID][]ir.ValueID)
	for _, bb := range f.Blocks {
		for _, id := range bb.Instrs {
			for _, op := range ir.Operands(f.Value(id)) {
				out[op] = append(out[op], id)
			}
		}
	}
	return out
}

func pathKey(path []uint64) string {
	var sb strings.Builder
	for i, p := range path {
		if i > 0 {
			sb.WriteByte('.')
		}
		fmt.Fprintf(&sb, "%d", p)
	}
	return sb.String()
}

// splitLocal creates one scalar local per leaf, turns each get_elem_ptr
// into a get_local of that scalar and rewrites whole loads and stores into
// one access per leaf.
func splitLocal(m *ir.Module, f *ir.Function, l ir.LocalID, acc *sroaAccess) error {
	orig := f.Locals[l]
	leaves, err := m.Layout.Leaves(orig.Type)
	if err != nil {
		return err
	}
	byPath := make(map[string]layout.Leaf, len(leaves))
	for _, lf := range leaves {
		byPath[pathKey(lf.Path)] = lf
	}
	scalar := make(map[string]ir.LocalID)
	leafLocal := func(lf layout.Leaf) ir.LocalID {
		key := pathKey(lf.Path)
		sl, ok := scalar[key]
		if !ok {
			sl = f.AddLocal(ir.Local{
				Name:    fmt.Sprintf("%s.%s", orig.Name, key),
				Type:    lf.Type,
				Span:    orig.Span,
				Mutable: orig.Mutable,
			})
			scalar[key] = sl
		}
		return sl
	}
	for _, g := range acc.geps {
		sl := leafLocal(byPath[pathKey(f.Value(g).Instr.Indices)])
		f.Value(g).Instr = ir.Instr{Op: ir.OpGetLocal, Local: sl}
	}
	for _, st := range acc.stores {
		splitStore(m, f, st, leaves, leafLocal)
	}
	for _, ld := range acc.loads {
		splitLoad(m, f, ld, leaves, leafLocal)
	}
	for _, g := range acc.getLocal {
		if pos := f.Position(g); pos >= 0 {
			f.RemoveAt(f.Value(g).Block, pos)
		}
	}
	return nil
}

// splitStore replaces a whole-aggregate store with an extract_value and a
// store per leaf.
func splitStore(m *ir.Module, f *ir.Function, st ir.ValueID, leaves []layout.Leaf, local func(layout.Leaf) ir.LocalID) {
	pos := f.Position(st)
	if pos < 0 {
		return
	}
	v := f.Value(st)
	b, span, val := v.Block, v.Span, v.Instr.Operands[1]
	f.RemoveAt(b, pos)
	unit := m.Types.Builtins().Unit
	for _, lf := range leaves {
		elem := f.NewDetached(lf.Type, span, ir.Instr{Op: ir.OpExtractValue, Operands: []ir.ValueID{val}, Indices: slices.Clone(lf.Path)})
		ptr := f.NewDetached(m.Types.Pointer(lf.Type), span, ir.Instr{Op: ir.OpGetLocal, Local: local(lf)})
		store := f.NewDetached(unit, span, ir.Instr{Op: ir.OpStore, Operands: []ir.ValueID{ptr, elem}})
		for _, id := range []ir.ValueID{elem, ptr, store} {
			f.InsertAt(b, pos, id)
			pos++
		}
	}
}

// splitLoad rebuilds a whole-aggregate load from one load per leaf.
func splitLoad(m *ir.Module, f *ir.Function, ld ir.ValueID, leaves []layout.Leaf, local func(layout.Leaf) ir.LocalID) {
	pos := f.Position(ld)
	if pos < 0 {
		return
	}
	v := f.Value(ld)
	b, span, ty := v.Block, v.Span, v.Type
	agg := f.NewConst(ty, ir.Const{Kind: ir.ConstUndef})
	for _, lf := range leaves {
		ptr := f.NewDetached(m.Types.Pointer(lf.Type), span, ir.Instr{Op: ir.OpGetLocal, Local: local(lf)})
		elem := f.NewDetached(lf.Type, span, ir.Instr{Op: ir.OpLoad, Operands: []ir.ValueID{ptr}})
		ins := f.NewDetached(ty, span, ir.Instr{Op: ir.OpInsertValue, Operands: []ir.ValueID{agg, elem}, Indices: slices.Clone(lf.Path)})
		for _, id := range []ir.ValueID{ptr, elem, ins} {
			f.InsertAt(b, pos, id)
			pos++
		}
		agg = ins
	}
	f.ReplaceAllUses(ld, agg)
	f.RemoveAt(b, pos)
}
