package finalize

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"swayc/internal/asm"
	"swayc/internal/layout"
)

const numColors = asm.LastAllocatable - asm.FirstAllocatable + 1

// allocation maps every virtual register of a function to a machine
// register or a spill slot.
type allocation struct {
	color []int // -1 when unassigned
	spill map[uint32]uint64
	// used holds the machine registers handed out.
	used []asm.Register
}

func (a *allocation) spills() uint64 { return uint64(len(a.spill)) }

type interference struct {
	adj     []map[uint32]struct{}
	present []bool
}

func newInterference(n uint32) *interference {
	return &interference{adj: make([]map[uint32]struct{}, n), present: make([]bool, n)}
}

func (g *interference) node(r uint32) {
	g.present[r] = true
	if g.adj[r] == nil {
		g.adj[r] = make(map[uint32]struct{})
	}
}

func (g *interference) edge(a, b uint32) {
	if a == b {
		return
	}
	g.node(a)
	g.node(b)
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

// buildInterference connects every register an op defines with everything
// live after it. The source of a move does not interfere with its target.
func buildInterference(g *flowGraph, lv *liveness, nregs uint32) *interference {
	ig := newInterference(nregs)
	for i, op := range g.ops {
		for _, r := range virtualNums(op.Regs) {
			ig.node(r)
		}
		defs := virtualNums(op.Defs())
		if len(defs) == 0 {
			continue
		}
		out := lv.liveOut(g, i, nregs)
		var moveSrc = ^uint32(0)
		if op.Kind == asm.KindInstr && op.Opcode == asm.MOVE && op.Regs[1].IsVirtual() {
			moveSrc = op.Regs[1].Num
		}
		for _, d := range defs {
			out.each(func(v uint32) {
				if v != moveSrc {
					ig.edge(d, v)
				}
			})
			for _, other := range defs {
				ig.edge(d, other)
			}
		}
	}
	return ig
}

// colorGraph removes low-degree nodes first and, when none is left, the
// node with the most neighbours. Nodes that find no free color on the way
// back are spilled.
func colorGraph(ig *interference) *allocation {
	n := len(ig.present)
	a := &allocation{color: make([]int, n), spill: make(map[uint32]uint64)}
	for i := range a.color {
		a.color[i] = -1
	}
	degree := make([]int, n)
	removed := make([]bool, n)
	nodes := make([]uint32, 0, n)
	for r := range ig.adj {
		if ig.present[r] {
			degree[r] = len(ig.adj[r])
		} else {
			removed[r] = true
		}
	}
	for r, ok := range ig.present {
		if ok {
			nodes = append(nodes, safecast.MustConv[uint32](r))
		}
	}

	stack := make([]uint32, 0, len(nodes))
	for range nodes {
		pick, found := uint32(0), false
		for _, r := range nodes {
			if !removed[r] && degree[r] < numColors {
				pick, found = r, true
				break
			}
		}
		if !found {
			for _, r := range nodes {
				if !removed[r] && (!found || degree[r] > degree[pick]) {
					pick, found = r, true
				}
			}
		}
		removed[pick] = true
		stack = append(stack, pick)
		for nb := range ig.adj[pick] {
			if !removed[nb] {
				degree[nb]--
			}
		}
	}

	usedColors := make(map[int]bool)
	for i := len(stack) - 1; i >= 0; i-- {
		r := stack[i]
		taken := make([]bool, numColors)
		for nb := range ig.adj[r] {
			if c := a.color[nb]; c >= 0 {
				taken[c] = true
			}
		}
		c := slices.Index(taken, false)
		if c < 0 {
			a.spill[r] = uint64(len(a.spill))
			continue
		}
		a.color[r] = c
		usedColors[c] = true
	}
	for c := range numColors {
		if usedColors[c] {
			a.used = append(a.used, machineReg(c))
		}
	}
	return a
}

// allocatable lists the machine registers in color order.
var allocatable = func() []asm.Register {
	var out []asm.Register
	for n := uint32(asm.FirstAllocatable); n <= asm.LastAllocatable; n++ {
		out = append(out, asm.Real(n))
	}
	return out
}()

func machineReg(color int) asm.Register { return allocatable[color] }

// rewrite replaces virtual registers with machine registers. Spilled
// registers are reloaded into scratch registers before the op and stored
// back after it; ops keep their order.
func (a *allocation) rewrite(ops []asm.Op, frameWords uint64) ([]asm.Op, error) {
	out := make([]asm.Op, 0, len(ops))
	for _, op := range ops {
		op.Regs = slices.Clone(op.Regs)
		scratch := make(map[uint32]asm.Register)
		for _, r := range op.Regs {
			if !r.IsVirtual() {
				continue
			}
			if _, ok := a.spill[r.Num]; !ok {
				continue
			}
			if _, ok := scratch[r.Num]; ok {
				continue
			}
			if len(scratch) == len(asm.Scratch) {
				return nil, fmt.Errorf("%s needs more than %d spilled operands", op, len(asm.Scratch))
			}
			scratch[r.Num] = asm.Scratch[len(scratch)]
		}

		var reloads, stores []asm.Op
		for _, u := range op.Uses() {
			if s, ok := scratch[u.Num]; ok && u.IsVirtual() {
				ld, err := reloadOps(frameWords+a.spill[u.Num], s)
				if err != nil {
					return nil, err
				}
				ld[0] = ld[0].WithComment("reload %s", u)
				reloads = append(reloads, ld...)
			}
		}
		for _, d := range op.Defs() {
			if s, ok := scratch[d.Num]; ok && d.IsVirtual() {
				st, err := spillOps(frameWords+a.spill[d.Num], s, freeScratch(op.Defs(), scratch))
				if err != nil {
					return nil, fmt.Errorf("%s: %w", op, err)
				}
				st[0] = st[0].WithComment("spill %s", d)
				stores = append(stores, st...)
			}
		}
		for i, r := range op.Regs {
			if !r.IsVirtual() {
				continue
			}
			if s, ok := scratch[r.Num]; ok {
				op.Regs[i] = s
				continue
			}
			c := a.color[r.Num]
			if c < 0 {
				return nil, fmt.Errorf("register %s was never allocated", r)
			}
			op.Regs[i] = machineReg(c)
		}
		for i := range reloads {
			reloads[i].Span = op.Span
		}
		for i := range stores {
			stores[i].Span = op.Span
		}
		out = append(out, reloads...)
		out = append(out, op)
		out = append(out, stores...)
	}
	return out, nil
}

// Spill slots sit after the locals. Slots past the LW/SW immediate are
// reached through an address built with MOVI and ADD.
func reloadOps(off uint64, dst asm.Register) ([]asm.Op, error) {
	if fitsImm(off, 12) {
		return []asm.Op{asm.InstrImm(asm.LW, off, dst, asm.LocalsBase)}, nil
	}
	addr, err := spillAddr(off, dst)
	if err != nil {
		return nil, err
	}
	return append(addr, asm.InstrImm(asm.LW, 0, dst, dst)), nil
}

func spillOps(off uint64, src, tmp asm.Register) ([]asm.Op, error) {
	if fitsImm(off, 12) {
		return []asm.Op{asm.InstrImm(asm.SW, off, asm.LocalsBase, src)}, nil
	}
	if !tmp.IsValid() {
		return nil, fmt.Errorf("no scratch register left to address spill slot %d", off)
	}
	addr, err := spillAddr(off, tmp)
	if err != nil {
		return nil, err
	}
	return append(addr, asm.InstrImm(asm.SW, 0, tmp, src)), nil
}

func spillAddr(off uint64, dst asm.Register) ([]asm.Op, error) {
	if !fitsImm(off, 18-3) {
		return nil, fmt.Errorf("spill slot %d is out of range", off)
	}
	return []asm.Op{
		asm.InstrImm(asm.MOVI, off*layout.WordBytes, dst),
		asm.Instr(asm.ADD, dst, dst, asm.LocalsBase),
	}, nil
}

// freeScratch returns a scratch register that holds no spilled def of the
// op, or the zero register when every one does.
func freeScratch(defs []asm.Register, scratch map[uint32]asm.Register) asm.Register {
	busy := make(map[asm.Register]bool)
	for _, d := range defs {
		if s, ok := scratch[d.Num]; ok && d.IsVirtual() {
			busy[s] = true
		}
	}
	for _, s := range asm.Scratch {
		if !busy[s] {
			return s
		}
	}
	return asm.Register{}
}

// allocate runs liveness, coloring and rewriting for one function.
func allocate(f *asm.Function) ([]asm.Op, *allocation, error) {
	nregs := f.VirtualRegs
	for _, op := range f.Ops {
		for _, r := range op.Regs {
			if r.IsVirtual() && r.Num >= nregs {
				nregs = r.Num + 1
			}
		}
	}
	g, err := buildFlowGraph(f.Ops)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	lv := computeLiveness(g, nregs)
	a := colorGraph(buildInterference(g, lv, nregs))
	ops, err := a.rewrite(f.Ops, f.FrameWords)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return ops, a, nil
}
