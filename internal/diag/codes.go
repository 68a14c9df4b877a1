package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Layout (user-facing)
	LayoutInfo              Code = 4000
	LayoutAggregateTooLarge Code = 4001
	LayoutRecursiveType     Code = 4002

	// Code generation (user-facing)
	CodegenInfo                  Code = 5000
	CodegenTooManyArguments      Code = 5001
	CodegenTooFewArguments       Code = 5002
	CodegenUnimplemented         Code = 5003
	CodegenUnreachableCode       Code = 5004
	CodegenNonConstantStorageKey Code = 5005

	// Storage
	StorageInfo            Code = 5100
	StorageDuplicatedKey   Code = 5101
	StorageNonConstantInit Code = 5102
	StorageUnknownField    Code = 5103

	// Internal: a broken contract between stages, never a user mistake.
	InternalInfo                  Code = 9000
	InternalUnresolvedType        Code = 9001
	InternalFieldNotFound         Code = 9002
	InternalSizeComputationFailed Code = 9003
	InternalInvariant             Code = 9004
	InternalIRVerify              Code = 9005
	InternalPassFailed            Code = 9006
	InternalRegisterAllocation    Code = 9007
	InternalEncoding              Code = 9008
)

var codeDescription = map[Code]string{
	UnknownCode:                   "Unknown error",
	LayoutInfo:                    "Layout information",
	LayoutAggregateTooLarge:       "Aggregate too large",
	LayoutRecursiveType:           "Recursive value type has infinite size",
	CodegenInfo:                   "Code generation information",
	CodegenTooManyArguments:       "Too many arguments for function",
	CodegenTooFewArguments:        "Too few arguments for function",
	CodegenUnimplemented:          "Unimplemented",
	CodegenUnreachableCode:        "Unreachable code",
	CodegenNonConstantStorageKey:  "Storage key is not a compile-time constant",
	StorageInfo:                   "Storage information",
	StorageDuplicatedKey:          "Duplicated storage key",
	StorageNonConstantInit:        "Storage initializer is not a compile-time constant",
	StorageUnknownField:           "Unknown storage field",
	InternalInfo:                  "Internal compiler information",
	InternalUnresolvedType:        "Unresolved type reached code generation",
	InternalFieldNotFound:         "Field not found",
	InternalSizeComputationFailed: "Size computation failed",
	InternalInvariant:             "Internal invariant violated",
	InternalIRVerify:              "IR verification failed",
	InternalPassFailed:            "Optimization pass failed",
	InternalRegisterAllocation:    "Register allocation failed",
	InternalEncoding:              "Bytecode encoding failed",
}

// IsInternal reports whether the code belongs to the internal-error class.
func (c Code) IsInternal() bool {
	return c >= InternalInfo
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 5000 && ic < 5100:
		return fmt.Sprintf("GEN%04d", ic)
	case ic >= 5100 && ic < 5200:
		return fmt.Sprintf("STO%04d", ic)
	case ic >= 9000:
		return fmt.Sprintf("ICE%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
