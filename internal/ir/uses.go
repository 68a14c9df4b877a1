package ir

import "slices"

// Operands returns every value v reads, phi incoming values included.
func Operands(v *Value) []ValueID {
	if v == nil || v.Kind != ValueInstr {
		return nil
	}
	if v.Instr.Op != OpPhi {
		return v.Instr.Operands
	}
	out := make([]ValueID, 0, len(v.Instr.Incoming))
	for _, in := range v.Instr.Incoming {
		out = append(out, in.Value)
	}
	return out
}

// ReplaceAllUses rewrites every use of old into repl.
func (f *Function) ReplaceAllUses(old, repl ValueID) {
	for i := range f.Values {
		v := &f.Values[i]
		if v.Kind != ValueInstr {
			continue
		}
		for j, op := range v.Instr.Operands {
			if op == old {
				v.Instr.Operands[j] = repl
			}
		}
		for j := range v.Instr.Incoming {
			if v.Instr.Incoming[j].Value == old {
				v.Instr.Incoming[j].Value = repl
			}
		}
	}
}

// Users returns the placed instructions reading id, in block order.
func (f *Function) Users(id ValueID) []ValueID {
	var out []ValueID
	for _, bb := range f.Blocks {
		for _, iid := range bb.Instrs {
			if slices.Contains(Operands(&f.Values[iid]), id) {
				out = append(out, iid)
			}
		}
	}
	return out
}

// UseCounts counts placed uses of every value.
func (f *Function) UseCounts() []int {
	counts := make([]int, len(f.Values))
	for _, bb := range f.Blocks {
		for _, iid := range bb.Instrs {
			for _, op := range Operands(&f.Values[iid]) {
				if op.IsValid() && int(op) < len(counts) {
					counts[op]++
				}
			}
		}
	}
	return counts
}

// Successors returns the branch targets of b.
func (f *Function) Successors(b BlockID) []BlockID {
	term := f.Terminator(b)
	if term == nil {
		return nil
	}
	return term.Instr.Targets
}

// Predecessors returns the blocks branching to b, each once, in block order.
func (f *Function) Predecessors(b BlockID) []BlockID {
	var out []BlockID
	for i := range f.Blocks {
		id := f.Blocks[i].ID
		if slices.Contains(f.Successors(id), b) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// PredecessorMap computes predecessors of every block at once.
func (f *Function) PredecessorMap() [][]BlockID {
	preds := make([][]BlockID, len(f.Blocks))
	for i := range f.Blocks {
		id := f.Blocks[i].ID
		for _, s := range f.Successors(id) {
			if s.IsValid() && int(s) < len(preds) && !slices.Contains(preds[s], id) {
				preds[s] = append(preds[s], id)
			}
		}
	}
	return preds
}

// Clone returns a deep copy of f.
func (f *Function) Clone() *Function {
	out := *f
	out.Params = slices.Clone(f.Params)
	out.Locals = slices.Clone(f.Locals)
	out.Blocks = make([]Block, len(f.Blocks))
	for i, bb := range f.Blocks {
		bb.Instrs = slices.Clone(bb.Instrs)
		out.Blocks[i] = bb
	}
	out.Values = make([]Value, len(f.Values))
	for i, v := range f.Values {
		v.Instr.Operands = slices.Clone(v.Instr.Operands)
		v.Instr.Indices = slices.Clone(v.Instr.Indices)
		v.Instr.Targets = slices.Clone(v.Instr.Targets)
		v.Instr.Incoming = slices.Clone(v.Instr.Incoming)
		out.Values[i] = v
	}
	return &out
}

// Clone returns a deep copy of m sharing the type table and layout engine.
func (m *Module) Clone() *Module {
	out := *m
	out.Funcs = make([]*Function, len(m.Funcs))
	for i, f := range m.Funcs {
		out.Funcs[i] = f.Clone()
	}
	out.StorageSlots = slices.Clone(m.StorageSlots)
	return &out
}

// CallSites returns every (caller, call instruction) pair targeting callee.
func (m *Module) CallSites(callee FuncID) []CallSite {
	var out []CallSite
	for _, f := range m.Funcs {
		for _, bb := range f.Blocks {
			for _, id := range bb.Instrs {
				v := &f.Values[id]
				if v.Instr.Op == OpCall && v.Instr.Callee == callee {
					out = append(out, CallSite{Caller: f.ID, Call: id})
				}
			}
		}
	}
	return out
}

type CallSite struct {
	Caller FuncID
	Call   ValueID
}
