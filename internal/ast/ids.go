package ast

type (
	// FnID identifies a function declaration.
	FnID uint32
	// AbiID identifies an ABI declaration.
	AbiID uint32
	// ConstID identifies a constant declaration.
	ConstID uint32
)

const (
	NoFnID    FnID    = 0
	NoAbiID   AbiID   = 0
	NoConstID ConstID = 0
)

func (id FnID) IsValid() bool    { return id != NoFnID }
func (id AbiID) IsValid() bool   { return id != NoAbiID }
func (id ConstID) IsValid() bool { return id != NoConstID }
