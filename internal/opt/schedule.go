package opt

import (
	"slices"

	"swayc/internal/analysis"
	"swayc/internal/ir"
)

func RegPressurePass() Pass {
	return Pass{
		Name:  "reg-pressure",
		Descr: "reorder instructions inside blocks to shorten live ranges",
		Deps:  []AnalysisID{AnalysisEscape},
		RunFunc: func(ctx *Context, f *ir.Function) (bool, error) {
			return ScheduleForPressure(f, ctx.Analyses.Escape(f)), nil
		},
	}
}

// ScheduleForPressure reorders the body of every block, keeping phis first
// and the terminator last. A block touching an escaped local is left
// untouched.
func ScheduleForPressure(f *ir.Function, esc *analysis.EscapeInfo) bool {
	changed := false
	for i := range f.Blocks {
		if scheduleBlock(f, f.Blocks[i].ID, esc) {
			changed = true
		}
	}
	return changed
}

// memClass is the memory a scheduled instruction touches: one local, or
// everything (calls, storage, pointers of unknown origin).
type memClass struct {
	local ir.LocalID
	all   bool
	write bool
}

func classify(f *ir.Function, esc *analysis.EscapeInfo, v *ir.Value) (memClass, bool) {
	op := v.Instr.Op
	switch op {
	case ir.OpLoad, ir.OpStore:
		if l, ok := esc.Root(v.Instr.Operands[0]); ok {
			return memClass{local: l, write: op == ir.OpStore}, true
		}
		return memClass{local: ir.NoLocalID, all: true, write: op == ir.OpStore}, true
	}
	if op.ReadsMemory() || op.WritesMemory() || op.HasSideEffects() {
		return memClass{local: ir.NoLocalID, all: true, write: true}, true
	}
	return memClass{}, false
}

func conflicts(a, b memClass) bool {
	if !a.write && !b.write {
		return false
	}
	return a.all || b.all || a.local == b.local
}

func scheduleBlock(f *ir.Function, b ir.BlockID, esc *analysis.EscapeInfo) bool {
	bb := &f.Blocks[b]
	start := f.FirstNonPhi(b)
	end := len(bb.Instrs)
	if end > start && f.Value(bb.Instrs[end-1]).IsTerminator() {
		end--
	}
	body := slices.Clone(bb.Instrs[start:end])
	n := len(body)
	if n < 2 {
		return false
	}

	pos := make(map[ir.ValueID]int, n)
	for i, id := range body {
		pos[id] = i
	}
	mem := make([]memClass, n)
	isMem := make([]bool, n)
	for i, id := range body {
		v := f.Value(id)
		for _, op := range ir.Operands(v) {
			if l, ok := esc.Root(op); ok && esc.Escaped(l) {
				return false
			}
		}
		if v.Instr.Op == ir.OpGetLocal && esc.Escaped(v.Instr.Local) {
			return false
		}
		mem[i], isMem[i] = classify(f, esc, v)
	}

	// succs[i] lists instructions that must stay after i.
	succs := make([][]int, n)
	npred := make([]int, n)
	addEdge := func(from, to int) {
		if !slices.Contains(succs[from], to) {
			succs[from] = append(succs[from], to)
			npred[to]++
		}
	}
	for i, id := range body {
		for _, op := range ir.Operands(f.Value(id)) {
			if j, ok := pos[op]; ok {
				addEdge(j, i)
			}
		}
		if !isMem[i] {
			continue
		}
		for j := range i {
			if isMem[j] && conflicts(mem[j], mem[i]) {
				addEdge(j, i)
			}
		}
	}

	// Schedule backwards: an instruction is ready once everything that must
	// follow it is placed. Among ready ones pick the instruction whose
	// nearest placed user was placed most recently, so definitions land
	// right before their uses. Ties go to the later original position.
	remaining := make([]int, n)
	for i := range n {
		remaining[i] = len(succs[i])
	}
	preds := make([][]int, n)
	for i, ss := range succs {
		for _, s := range ss {
			preds[s] = append(preds[s], i)
		}
	}
	placedAt := make([]int, n)
	for i := range placedAt {
		placedAt[i] = -1
	}
	order := make([]int, 0, n)
	step := 0
	for len(order) < n {
		best, bestKey := -1, -1
		for i := range n {
			if placedAt[i] >= 0 || remaining[i] > 0 {
				continue
			}
			key := step
			if len(succs[i]) > 0 {
				key = 0
				for _, s := range succs[i] {
					key = max(key, placedAt[s])
				}
			}
			if key > bestKey || (key == bestKey && i > best) {
				best, bestKey = i, key
			}
		}
		placedAt[best] = step
		step++
		order = append(order, best)
		for _, p := range preds[best] {
			remaining[p]--
		}
	}
	slices.Reverse(order)

	newBody := make([]ir.ValueID, n)
	same := true
	for i, idx := range order {
		newBody[i] = body[idx]
		if idx != i {
			same = false
		}
	}
	if same {
		return false
	}
	copy(bb.Instrs[start:end], newBody)
	return true
}
