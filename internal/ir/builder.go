package ir

import (
	"fmt"

	"swayc/internal/source"
	"swayc/internal/types"
)

// Builder appends instructions to the current block of a function.
type Builder struct {
	mod   *Module
	f     *Function
	block BlockID
	span  source.Span
}

// NewBuilder creates a builder for f positioned at its entry block,
// creating the entry block when f has none.
func NewBuilder(m *Module, f *Function) *Builder {
	b := &Builder{mod: m, f: f, block: NoBlockID}
	if len(f.Blocks) == 0 {
		f.AddBlock("entry")
	}
	b.block = f.Entry
	return b
}

func (b *Builder) Func() *Function     { return b.f }
func (b *Builder) Module() *Module     { return b.mod }
func (b *Builder) Block() BlockID      { return b.block }
func (b *Builder) SetBlock(id BlockID) { b.block = id }

// SetSpan sets the span attached to the following instructions.
func (b *Builder) SetSpan(sp source.Span) { b.span = sp }

func (b *Builder) Span() source.Span { return b.span }

func (b *Builder) NewBlock(label string) BlockID {
	return b.f.AddBlock(fmt.Sprintf("%s%d", label, len(b.f.Blocks)))
}

// Terminated reports whether the current block already ends in a terminator.
func (b *Builder) Terminated() bool {
	return b.f.Terminator(b.block) != nil
}

func (b *Builder) types() *types.Interner { return b.mod.Types }

func (b *Builder) emit(ty types.TypeID, in Instr) ValueID {
	id := b.f.NewDetached(ty, b.span, in)
	bb := &b.f.Blocks[b.block]
	bb.Instrs = append(bb.Instrs, id)
	b.f.Values[id].Block = b.block
	return id
}

func (b *Builder) unit() types.TypeID { return b.types().Builtins().Unit }

func (b *Builder) typeOf(id ValueID) types.TypeID { return b.f.Values[id].Type }

func (b *Builder) ConstUnit() ValueID {
	return b.f.NewConst(b.unit(), Const{Kind: ConstUnit})
}

func (b *Builder) ConstBool(v bool) ValueID {
	return b.f.NewConst(b.types().Builtins().Bool, Const{Kind: ConstBool, Bool: v})
}

func (b *Builder) ConstUint(ty types.TypeID, v uint64) ValueID {
	return b.f.NewConst(ty, Const{Kind: ConstUint, Uint: v})
}

func (b *Builder) ConstB256(v [32]byte) ValueID {
	return b.f.NewConst(b.types().Builtins().B256, Const{Kind: ConstB256, B256: v})
}

func (b *Builder) ConstStr(ty types.TypeID, s string) ValueID {
	return b.f.NewConst(ty, Const{Kind: ConstStr, Str: s})
}

// Undef creates an aggregate of type ty with unspecified contents.
func (b *Builder) Undef(ty types.TypeID) ValueID {
	return b.f.NewConst(ty, Const{Kind: ConstUndef})
}

func (b *Builder) Binary(op BinOp, x, y ValueID) ValueID {
	return b.emit(b.typeOf(x), Instr{Op: OpBinary, BinOp: op, Operands: []ValueID{x, y}})
}

func (b *Builder) Cmp(p Pred, x, y ValueID) ValueID {
	return b.emit(b.types().Builtins().Bool, Instr{Op: OpCmp, Pred: p, Operands: []ValueID{x, y}})
}

func (b *Builder) Not(x ValueID) ValueID {
	return b.emit(b.typeOf(x), Instr{Op: OpNot, Operands: []ValueID{x}})
}

func (b *Builder) Branch(target BlockID) ValueID {
	return b.emit(b.unit(), Instr{Op: OpBranch, Targets: []BlockID{target}})
}

func (b *Builder) CondBranch(cond ValueID, then, els BlockID) ValueID {
	return b.emit(b.unit(), Instr{Op: OpCondBranch, Operands: []ValueID{cond}, Targets: []BlockID{then, els}})
}

func (b *Builder) Ret(v ValueID) ValueID {
	return b.emit(b.unit(), Instr{Op: OpRet, Operands: []ValueID{v}})
}

func (b *Builder) Revert(code ValueID) ValueID {
	return b.emit(b.unit(), Instr{Op: OpRevert, Operands: []ValueID{code}})
}

func (b *Builder) Call(callee FuncID, ret types.TypeID, args []ValueID) ValueID {
	return b.emit(ret, Instr{Op: OpCall, Callee: callee, Operands: append([]ValueID(nil), args...)})
}

// ContractCall calls another contract. params points at the
// (address, selector, argument) call frame.
func (b *Builder) ContractCall(ret types.TypeID, params, coins, asset, gas ValueID) ValueID {
	return b.emit(ret, Instr{Op: OpContractCall, Operands: []ValueID{params, coins, asset, gas}})
}

func (b *Builder) GetLocal(l LocalID) ValueID {
	return b.emit(b.types().Pointer(b.f.Locals[l].Type), Instr{Op: OpGetLocal, Local: l})
}

func (b *Builder) Load(ptr ValueID) ValueID {
	elem, ok := b.types().PointeeOf(b.typeOf(ptr))
	if !ok {
		elem = b.types().Builtins().ErrorRecovery
	}
	return b.emit(elem, Instr{Op: OpLoad, Operands: []ValueID{ptr}})
}

func (b *Builder) Store(ptr, val ValueID) ValueID {
	return b.emit(b.unit(), Instr{Op: OpStore, Operands: []ValueID{ptr, val}})
}

// GetElemPtr offsets ptr by a constant index path.
func (b *Builder) GetElemPtr(ptr ValueID, indices ...uint64) ValueID {
	elem, _ := b.types().PointeeOf(b.typeOf(ptr))
	leaf := b.indexType(elem, indices)
	return b.emit(b.types().Pointer(leaf), Instr{Op: OpGetElemPtr, Operands: []ValueID{ptr}, Indices: indices})
}

func (b *Builder) InsertValue(agg, val ValueID, indices ...uint64) ValueID {
	return b.emit(b.typeOf(agg), Instr{Op: OpInsertValue, Operands: []ValueID{agg, val}, Indices: indices})
}

func (b *Builder) ExtractValue(agg ValueID, indices ...uint64) ValueID {
	leaf := b.indexType(b.typeOf(agg), indices)
	return b.emit(leaf, Instr{Op: OpExtractValue, Operands: []ValueID{agg}, Indices: indices})
}

func (b *Builder) indexType(ty types.TypeID, indices []uint64) types.TypeID {
	cur := ty
	for _, idx := range indices {
		next, ok := b.mod.Layout.ElemType(cur, idx)
		if !ok {
			return b.types().Builtins().ErrorRecovery
		}
		cur = next
	}
	return cur
}

// Phi inserts a phi at the head of the current block.
func (b *Builder) Phi(ty types.TypeID, incoming []PhiIncoming) ValueID {
	id := b.f.NewDetached(ty, b.span, Instr{Op: OpPhi, Incoming: append([]PhiIncoming(nil), incoming...)})
	b.f.InsertAt(b.block, b.f.FirstNonPhi(b.block), id)
	return id
}

func (b *Builder) StateLoadWord(key ValueID) ValueID {
	return b.emit(b.types().Builtins().U64, Instr{Op: OpStateLoadWord, Operands: []ValueID{key}})
}

func (b *Builder) StateStoreWord(key, val ValueID) ValueID {
	return b.emit(b.unit(), Instr{Op: OpStateStoreWord, Operands: []ValueID{key, val}})
}

// StateLoadQuad reads slots consecutive 32-byte slots starting at key into dst.
func (b *Builder) StateLoadQuad(key, dst ValueID, slots uint64) ValueID {
	return b.emit(b.unit(), Instr{Op: OpStateLoadQuad, Operands: []ValueID{key, dst}, Slots: slots})
}

func (b *Builder) StateStoreQuad(key, src ValueID, slots uint64) ValueID {
	return b.emit(b.unit(), Instr{Op: OpStateStoreQuad, Operands: []ValueID{key, src}, Slots: slots})
}

func (b *Builder) Log(v ValueID) ValueID {
	return b.emit(b.unit(), Instr{Op: OpLog, Operands: []ValueID{v}})
}

func (b *Builder) PtrToInt(ptr ValueID) ValueID {
	return b.emit(b.types().Builtins().U64, Instr{Op: OpPtrToInt, Operands: []ValueID{ptr}})
}

// CastPtr reinterprets ptr as a pointer to elem.
func (b *Builder) CastPtr(ptr ValueID, elem types.TypeID) ValueID {
	return b.emit(b.types().Pointer(elem), Instr{Op: OpCastPtr, Operands: []ValueID{ptr}})
}
