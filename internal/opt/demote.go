package opt

import (
	"swayc/internal/ir"
	"swayc/internal/types"
)

func RetDemotionPass() Pass {
	return Pass{
		Name:  "ret-demotion",
		Descr: "return values wider than a register through memory",
		RunModule: func(ctx *Context, m *ir.Module) (bool, error) {
			return DemoteReturns(m), nil
		},
	}
}

// DemoteReturns rewrites every function whose return type is wider than a
// word to return a pointer. Entry functions keep their signature and write
// into a fresh local; other functions take a trailing out pointer and every
// call site passes the address of a fresh local and loads the result.
func DemoteReturns(m *ir.Module) bool {
	changed := false
	for _, f := range m.Funcs {
		if f.DemotedRet != types.NoTypeID {
			continue
		}
		size, err := m.Layout.SizeOf(f.Ret)
		if err != nil || size <= 1 {
			continue
		}
		orig := f.Ret
		if f.IsEntry {
			demoteEntry(m, f, orig)
		} else {
			demoteInternal(m, f, orig)
		}
		changed = true
	}
	return changed
}

func demoteEntry(m *ir.Module, f *ir.Function, orig types.TypeID) {
	ptrTy := m.Types.Pointer(orig)
	l := f.AddLocal(ir.Local{Name: "__ret_value", Type: orig, Mutable: true})
	ptr := f.NewDetached(ptrTy, f.Span, ir.Instr{Op: ir.OpGetLocal, Local: l})
	f.InsertAt(f.Entry, f.FirstNonPhi(f.Entry), ptr)
	rewriteReturns(f, ptr, m.Types.Builtins().Unit)
	f.Ret = ptrTy
	f.DemotedRet = orig
}

func demoteInternal(m *ir.Module, f *ir.Function, orig types.TypeID) {
	ptrTy := m.Types.Pointer(orig)
	out := f.AddParam("__ret_ptr", ptrTy, len(f.Params))
	rewriteReturns(f, out, m.Types.Builtins().Unit)
	f.Ret = ptrTy
	f.DemotedRet = orig

	for _, site := range m.CallSites(f.ID) {
		caller := m.Func(site.Caller)
		call := caller.Value(site.Call)
		b := call.Block
		span := call.Span
		l := caller.AddLocal(ir.Local{Name: "__ret_slot", Type: orig, Mutable: true})
		slot := caller.NewDetached(ptrTy, span, ir.Instr{Op: ir.OpGetLocal, Local: l})
		caller.InsertAt(b, caller.Position(site.Call), slot)

		load := caller.NewDetached(orig, span, ir.Instr{Op: ir.OpLoad, Operands: []ir.ValueID{slot}})
		caller.ReplaceAllUses(site.Call, load)
		call = caller.Value(site.Call)
		call.Instr.Operands = append(call.Instr.Operands, slot)
		call.Type = ptrTy
		caller.InsertAt(b, caller.Position(site.Call)+1, load)
	}
}

// rewriteReturns turns every ret v into store ptr, v; ret ptr.
func rewriteReturns(f *ir.Function, ptr ir.ValueID, unit types.TypeID) {
	for i := range f.Blocks {
		b := f.Blocks[i].ID
		term := f.Terminator(b)
		if term == nil || term.Instr.Op != ir.OpRet {
			continue
		}
		val := term.Instr.Operands[0]
		store := f.NewDetached(unit, term.Span, ir.Instr{Op: ir.OpStore, Operands: []ir.ValueID{ptr, val}})
		f.InsertAt(b, len(f.Blocks[i].Instrs)-1, store)
		term = f.Terminator(b)
		term.Instr.Operands[0] = ptr
	}
}
