package analysis

import "swayc/internal/ir"

// EscapeInfo records which locals have their address observed outside
// plain loads and stores.
type EscapeInfo struct {
	escaped []bool
	// bulk marks locals written or read as raw memory by storage quad ops.
	bulk  []bool
	roots map[ir.ValueID]ir.LocalID
}

// EscapedSymbols walks every instruction and tracks pointers derived from
// get_local through get_elem_ptr and cast_ptr. A local escapes when such a
// pointer reaches a call, a contract call, a return, a phi, ptr_to_int, a
// log, or is itself stored or inserted as a value.
func EscapedSymbols(f *ir.Function) *EscapeInfo {
	info := &EscapeInfo{
		escaped: make([]bool, len(f.Locals)),
		bulk:    make([]bool, len(f.Locals)),
		roots:   make(map[ir.ValueID]ir.LocalID),
	}
	// Derived pointers are defined before their uses in every block order
	// the builder produces, but passes may reorder blocks, so iterate to a
	// fixed point.
	for changed := true; changed; {
		changed = false
		for _, bb := range f.Blocks {
			for _, id := range bb.Instrs {
				v := f.Value(id)
				if _, seen := info.roots[id]; seen {
					continue
				}
				switch v.Instr.Op {
				case ir.OpGetLocal:
					info.roots[id] = v.Instr.Local
					changed = true
				case ir.OpGetElemPtr, ir.OpCastPtr:
					if l, ok := info.roots[v.Instr.Operands[0]]; ok {
						info.roots[id] = l
						changed = true
					}
				}
			}
		}
	}
	for _, bb := range f.Blocks {
		for _, id := range bb.Instrs {
			info.visit(f.Value(id))
		}
	}
	return info
}

func (e *EscapeInfo) visit(v *ir.Value) {
	ops := ir.Operands(v)
	for i, op := range ops {
		l, ok := e.roots[op]
		if !ok {
			continue
		}
		switch v.Instr.Op {
		case ir.OpLoad, ir.OpGetElemPtr, ir.OpCastPtr:
			continue
		case ir.OpStore:
			if i == 0 {
				continue
			}
		case ir.OpStateLoadQuad, ir.OpStateStoreQuad:
			if i == 1 {
				e.bulk[l] = true
				continue
			}
		}
		e.escaped[l] = true
	}
}

// Escaped reports whether the address of l is observable outside plain
// memory accesses.
func (e *EscapeInfo) Escaped(l ir.LocalID) bool {
	return l.IsValid() && int(l) < len(e.escaped) && e.escaped[l]
}

// BulkAccessed reports whether l is read or written as raw storage memory.
func (e *EscapeInfo) BulkAccessed(l ir.LocalID) bool {
	return l.IsValid() && int(l) < len(e.bulk) && e.bulk[l]
}

// Root returns the local a pointer value is derived from.
func (e *EscapeInfo) Root(v ir.ValueID) (ir.LocalID, bool) {
	l, ok := e.roots[v]
	return l, ok
}

// AnyEscaped reports whether some local of the function escapes.
func (e *EscapeInfo) AnyEscaped() bool {
	for _, x := range e.escaped {
		if x {
			return true
		}
	}
	return false
}
