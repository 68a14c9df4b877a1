package ir

import (
	"fortio.org/safecast"

	"swayc/internal/ast"
	"swayc/internal/layout"
	"swayc/internal/source"
	"swayc/internal/storagekey"
	"swayc/internal/types"
)

// Local is a stack slot. It is only reached through get_local.
type Local struct {
	Name    string
	Type    types.TypeID
	Span    source.Span
	Mutable bool
}

type Block struct {
	ID     BlockID
	Label  string
	Instrs []ValueID
}

type Function struct {
	ID     FuncID
	Name   string
	Span   source.Span
	Params []ValueID
	Ret    types.TypeID

	IsEntry     bool
	HasSelector bool
	Selector    uint32

	// DemotedRet is the original return type once the return value was
	// demoted to memory, NoTypeID otherwise.
	DemotedRet types.TypeID

	Locals []Local
	Blocks []Block
	Values []Value
	Entry  BlockID
}

// Module is the IR of one compilation unit.
type Module struct {
	Name   string
	Kind   ast.ProgramKind
	Types  *types.Interner
	Layout *layout.LayoutEngine
	Funcs  []*Function

	StorageSlots []storagekey.Slot
}

// NewModule creates an empty module over the shared type table.
func NewModule(name string, kind ast.ProgramKind, in *types.Interner) *Module {
	return &Module{Name: name, Kind: kind, Types: in, Layout: layout.New(in)}
}

// AddFunc appends f and assigns its id.
func (m *Module) AddFunc(f *Function) FuncID {
	f.ID = safecast.MustConv[FuncID](len(m.Funcs))
	m.Funcs = append(m.Funcs, f)
	return f.ID
}

func (m *Module) Func(id FuncID) *Function {
	if id < 0 || int(id) >= len(m.Funcs) {
		return nil
	}
	return m.Funcs[id]
}

func (m *Module) FuncByName(name string) *Function {
	for _, f := range m.Funcs {
		if f != nil && f.Name == name {
			return f
		}
	}
	return nil
}

// NewFunction creates a function with one argument value per parameter.
func NewFunction(name string, params []ast.Param, ret types.TypeID) *Function {
	f := &Function{Name: name, Ret: ret, Entry: 0, DemotedRet: types.NoTypeID, ID: NoFuncID}
	for i, p := range params {
		f.AddParam(p.Name, p.Type, i)
	}
	return f
}

// AddParam appends a trailing argument value.
func (f *Function) AddParam(name string, ty types.TypeID, idx int) ValueID {
	id := f.newValue(Value{Kind: ValueArg, Type: ty, Name: name, Arg: idx, Block: NoBlockID})
	f.Params = append(f.Params, id)
	return id
}

func (f *Function) Value(id ValueID) *Value {
	if id < 0 || int(id) >= len(f.Values) {
		return nil
	}
	return &f.Values[id]
}

func (f *Function) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

func (f *Function) AddLocal(l Local) LocalID {
	f.Locals = append(f.Locals, l)
	return safecast.MustConv[LocalID](len(f.Locals) - 1)
}

func (f *Function) AddBlock(label string) BlockID {
	id := safecast.MustConv[BlockID](len(f.Blocks))
	f.Blocks = append(f.Blocks, Block{ID: id, Label: label})
	return id
}

func (f *Function) newValue(v Value) ValueID {
	v.ID = safecast.MustConv[ValueID](len(f.Values))
	f.Values = append(f.Values, v)
	return v.ID
}

// NewDetached creates an instruction value not yet placed in a block.
func (f *Function) NewDetached(ty types.TypeID, span source.Span, in Instr) ValueID {
	return f.newValue(Value{Kind: ValueInstr, Type: ty, Span: span, Instr: in, Block: NoBlockID})
}

// NewConst creates a constant value. Constants live outside blocks.
func (f *Function) NewConst(ty types.TypeID, c Const) ValueID {
	return f.newValue(Value{Kind: ValueConst, Type: ty, Const: c, Block: NoBlockID})
}

// Terminator returns the last instruction of b when it is a terminator.
func (f *Function) Terminator(b BlockID) *Value {
	bb := f.Block(b)
	if bb == nil || len(bb.Instrs) == 0 {
		return nil
	}
	v := f.Value(bb.Instrs[len(bb.Instrs)-1])
	if !v.IsTerminator() {
		return nil
	}
	return v
}

// InsertAt places a detached instruction at position pos of block b.
func (f *Function) InsertAt(b BlockID, pos int, id ValueID) {
	bb := &f.Blocks[b]
	bb.Instrs = append(bb.Instrs, NoValueID)
	copy(bb.Instrs[pos+1:], bb.Instrs[pos:])
	bb.Instrs[pos] = id
	f.Values[id].Block = b
}

// RemoveAt detaches the instruction at position pos of block b.
func (f *Function) RemoveAt(b BlockID, pos int) ValueID {
	bb := &f.Blocks[b]
	id := bb.Instrs[pos]
	bb.Instrs = append(bb.Instrs[:pos], bb.Instrs[pos+1:]...)
	f.Values[id].Block = NoBlockID
	return id
}

// Position returns the index of id inside its block, or -1.
func (f *Function) Position(id ValueID) int {
	v := f.Value(id)
	if v == nil || !v.Block.IsValid() {
		return -1
	}
	for i, x := range f.Blocks[v.Block].Instrs {
		if x == id {
			return i
		}
	}
	return -1
}

// FirstNonPhi returns the index of the first instruction in b that is not a phi.
func (f *Function) FirstNonPhi(b BlockID) int {
	for i, id := range f.Blocks[b].Instrs {
		if f.Values[id].Instr.Op != OpPhi {
			return i
		}
	}
	return len(f.Blocks[b].Instrs)
}
