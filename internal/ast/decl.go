package ast

import (
	"swayc/internal/source"
	"swayc/internal/types"
)

// Param is a function or ABI method parameter.
type Param struct {
	Name string
	Type types.TypeID
}

// FnDecl is a fully elaborated function. Entry functions are a script or
// predicate main, or a contract's ABI method implementations.
type FnDecl struct {
	Name    string
	Span    source.Span
	Params  []Param
	Ret     types.TypeID
	Body    *Block
	IsEntry bool
	// Abi names the implemented ABI for contract entries.
	Abi string
}

// AbiMethod is one method of an ABI declaration.
type AbiMethod struct {
	Name   string
	Params []Param
	Ret    types.TypeID
}

// AbiDecl declares a contract interface.
type AbiDecl struct {
	Name    string
	Span    source.Span
	Methods []AbiMethod
}

// Method returns the named method.
func (a *AbiDecl) Method(name string) (AbiMethod, bool) {
	for _, m := range a.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return AbiMethod{}, false
}

// ConstDecl is a module-level constant.
type ConstDecl struct {
	Name  string
	Span  source.Span
	Type  types.TypeID
	Value *Expr
}

// StorageField is one field of the storage declaration.
type StorageField struct {
	// Namespace is the optional storage namespace path.
	Namespace []string
	Name      string
	Span      source.Span
	Type      types.TypeID
	Init      *Expr
	// Key is the optional explicit key expression; it must be a b256 constant.
	Key *Expr
}

// StorageDecl is the contract's storage declaration.
type StorageDecl struct {
	Span   source.Span
	Fields []StorageField
}

// DeclTable is the append-only declaration table shared by every stage.
type DeclTable struct {
	Fns     *Arena[FnDecl]
	Abis    *Arena[AbiDecl]
	Consts  *Arena[ConstDecl]
	Storage *StorageDecl
}

// NewDeclTable creates an empty table.
func NewDeclTable() *DeclTable {
	return &DeclTable{
		Fns:    NewArena[FnDecl](16),
		Abis:   NewArena[AbiDecl](2),
		Consts: NewArena[ConstDecl](8),
	}
}

func (t *DeclTable) AddFn(fn FnDecl) FnID         { return FnID(t.Fns.Allocate(fn)) }
func (t *DeclTable) AddAbi(a AbiDecl) AbiID       { return AbiID(t.Abis.Allocate(a)) }
func (t *DeclTable) AddConst(c ConstDecl) ConstID { return ConstID(t.Consts.Allocate(c)) }
func (t *DeclTable) Fn(id FnID) *FnDecl           { return t.Fns.Get(uint32(id)) }
func (t *DeclTable) Abi(id AbiID) *AbiDecl        { return t.Abis.Get(uint32(id)) }
func (t *DeclTable) Const(id ConstID) *ConstDecl  { return t.Consts.Get(uint32(id)) }

// FnIDs returns every function id in declaration order.
func (t *DeclTable) FnIDs() []FnID {
	n := t.Fns.Len()
	out := make([]FnID, 0, n)
	for i := uint32(1); i <= n; i++ {
		out = append(out, FnID(i))
	}
	return out
}

// AbiByName looks an ABI up by name.
func (t *DeclTable) AbiByName(name string) (*AbiDecl, bool) {
	for i := uint32(1); i <= t.Abis.Len(); i++ {
		if a := t.Abis.Get(i); a != nil && a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// FnByName looks a function up by name.
func (t *DeclTable) FnByName(name string) (FnID, bool) {
	for i := uint32(1); i <= t.Fns.Len(); i++ {
		if f := t.Fns.Get(i); f != nil && f.Name == name {
			return FnID(i), true
		}
	}
	return NoFnID, false
}
