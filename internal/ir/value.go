package ir

import (
	"swayc/internal/source"
	"swayc/internal/types"
)

// ValueKind says where a value comes from.
type ValueKind uint8

const (
	ValueArg ValueKind = iota + 1
	ValueConst
	ValueInstr
)

func (k ValueKind) String() string {
	switch k {
	case ValueArg:
		return "arg"
	case ValueConst:
		return "const"
	case ValueInstr:
		return "instr"
	}
	return "invalid"
}

type ConstKind uint8

const (
	ConstUnit ConstKind = iota + 1
	ConstBool
	ConstUint
	ConstB256
	ConstStr
	// ConstUndef is an aggregate with unspecified contents; insert_value
	// chains start from it.
	ConstUndef
)

// Const is the payload of a constant value.
type Const struct {
	Kind ConstKind
	Bool bool
	Uint uint64
	B256 [32]byte
	Str  string
}

// Value is an SSA value: a function argument, a constant, or the result of
// exactly one instruction. Values are never reassigned.
type Value struct {
	ID   ValueID
	Kind ValueKind
	Type types.TypeID
	Span source.Span

	// Name is the parameter name for arguments.
	Name  string
	Arg   int
	Const Const
	Instr Instr

	// Block is the block holding the instruction, NoBlockID for arguments,
	// constants and detached instructions.
	Block BlockID
}

// IsTerminator reports whether v is a terminator instruction.
func (v *Value) IsTerminator() bool {
	return v != nil && v.Kind == ValueInstr && v.Instr.Op.IsTerminator()
}

// IsConst reports whether v is a constant of the given kind.
func (v *Value) IsConst(kind ConstKind) bool {
	return v != nil && v.Kind == ValueConst && v.Const.Kind == kind
}
