package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all resolved kinds of types. There is deliberately no
// "custom" or "unknown" kind: anything that reaches this package is resolved.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindErrorRecovery is the placeholder substituted after a failed sub-expression.
	KindErrorRecovery
	KindUnit
	KindBool
	KindUint
	KindByte
	KindB256
	KindStr
	KindArray
	KindStruct
	KindEnum
	KindTuple
	// KindContract is the pseudo-type of the contract itself.
	KindContract
	// KindContractCaller is the result of abi(Name, address).
	KindContractCaller
	// KindPointer and KindUnion only appear in IR.
	KindPointer
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindErrorRecovery:
		return "error"
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindUint:
		return "uint"
	case KindByte:
		return "byte"
	case KindB256:
		return "b256"
	case KindStr:
		return "str"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindTuple:
		return "tuple"
	case KindContract:
		return "contract"
	case KindContractCaller:
		return "contract_caller"
	case KindPointer:
		return "pointer"
	case KindUnion:
		return "union"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// IsAggregate reports whether values of the kind are composed of fields.
func (k Kind) IsAggregate() bool {
	switch k {
	case KindArray, KindStruct, KindEnum, KindTuple, KindUnion:
		return true
	}
	return false
}

// Width captures the precision of unsigned integers.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Elem    TypeID // arrays and pointers
	Count   uint32 // array length, string length in bytes
	Width   Width  // unsigned integers
	Payload uint32 // slot into the per-kind info tables
}

// Descriptor helpers ---------------------------------------------------------

// MakeUint describes an unsigned integer type.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeStr describes a fixed-length string of n bytes.
func MakeStr(n uint32) Type {
	return Type{Kind: KindStr, Count: n}
}

// MakeArray describes a fixed-size array.
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakePointer describes an IR pointer to elem.
func MakePointer(elem TypeID) Type {
	return Type{Kind: KindPointer, Elem: elem}
}
