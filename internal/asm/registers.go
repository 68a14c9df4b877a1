// Package asm models VM assembly: registers, opcodes, the data section,
// and the op stream produced by code generation.
package asm

import "fmt"

// RegKind distinguishes register classes.
type RegKind uint8

const (
	// RegVirtual is an unbounded compile-time register.
	RegVirtual RegKind = iota + 1
	// RegReal is a machine register, reserved or allocated.
	RegReal
)

// Register is a virtual or machine register.
type Register struct {
	Kind RegKind
	Num  uint32
}

// NumRegisters is the size of the machine register file.
const NumRegisters = 64

// Reserved VM registers.
var (
	Zero     = Real(0)
	One      = Real(1)
	Overflow = Real(2)
	PC       = Real(3)
	SSP      = Real(4)
	SP       = Real(5)
	FP       = Real(6)
	HP       = Real(7)
	ErrReg   = Real(8)
	GGas     = Real(9)
	CGas     = Real(10)
	Bal      = Real(11)
	IS       = Real(12)
	Ret      = Real(13)
	RetLen   = Real(14)
	Flag     = Real(15)
)

// Registers reserved by the compiler's calling convention.
var (
	ArgRegs    = [...]Register{Real(16), Real(17), Real(18), Real(19), Real(20), Real(21)}
	RetAddr    = Real(22)
	RetValue   = Real(23)
	LocalsBase = Real(24)
	DataBase   = Real(25)
	Scratch    = [...]Register{Real(26), Real(27), Real(28)}
)

// Allocatable machine registers.
const (
	FirstAllocatable = 29
	LastAllocatable  = NumRegisters - 1
)

// MaxArgs is the number of register-passed arguments.
const MaxArgs = len(ArgRegs)

func Real(n uint32) Register    { return Register{Kind: RegReal, Num: n} }
func Virtual(n uint32) Register { return Register{Kind: RegVirtual, Num: n} }

func (r Register) IsVirtual() bool { return r.Kind == RegVirtual }
func (r Register) IsValid() bool   { return r.Kind != 0 }

// IsAllocatable reports whether r is a machine register the allocator hands out.
func (r Register) IsAllocatable() bool {
	return r.Kind == RegReal && r.Num >= FirstAllocatable && r.Num <= LastAllocatable
}

var reservedNames = map[uint32]string{
	0: "$zero", 1: "$one", 2: "$of", 3: "$pc", 4: "$ssp", 5: "$sp", 6: "$fp", 7: "$hp",
	8: "$err", 9: "$ggas", 10: "$cgas", 11: "$bal", 12: "$is", 13: "$ret", 14: "$retl", 15: "$flag",
	16: "$$arg0", 17: "$$arg1", 18: "$$arg2", 19: "$$arg3", 20: "$$arg4", 21: "$$arg5",
	22: "$$reta", 23: "$$retv", 24: "$$locbase", 25: "$$ds",
	26: "$$tmp0", 27: "$$tmp1", 28: "$$tmp2",
}

func (r Register) String() string {
	switch r.Kind {
	case RegVirtual:
		return fmt.Sprintf("$v%d", r.Num)
	case RegReal:
		if name, ok := reservedNames[r.Num]; ok {
			return name
		}
		return fmt.Sprintf("$r%d", r.Num)
	}
	return "$?"
}
