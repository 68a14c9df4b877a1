package ir

// Opcode enumerates IR instructions.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpBinary
	OpCmp
	OpNot
	OpBranch
	OpCondBranch
	OpRet
	OpRevert
	OpCall
	OpContractCall
	OpGetLocal
	OpLoad
	OpStore
	OpGetElemPtr
	OpInsertValue
	OpExtractValue
	OpPhi
	OpStateLoadWord
	OpStateStoreWord
	OpStateLoadQuad
	OpStateStoreQuad
	OpLog
	OpPtrToInt
	OpCastPtr
)

var opcodeNames = [...]string{
	OpNop:            "nop",
	OpBinary:         "binop",
	OpCmp:            "cmp",
	OpNot:            "not",
	OpBranch:         "br",
	OpCondBranch:     "cbr",
	OpRet:            "ret",
	OpRevert:         "revert",
	OpCall:           "call",
	OpContractCall:   "contract_call",
	OpGetLocal:       "get_local",
	OpLoad:           "load",
	OpStore:          "store",
	OpGetElemPtr:     "get_elem_ptr",
	OpInsertValue:    "insert_value",
	OpExtractValue:   "extract_value",
	OpPhi:            "phi",
	OpStateLoadWord:  "state_load_word",
	OpStateStoreWord: "state_store_word",
	OpStateLoadQuad:  "state_load_quad",
	OpStateStoreQuad: "state_store_quad",
	OpLog:            "log",
	OpPtrToInt:       "ptr_to_int",
	OpCastPtr:        "cast_ptr",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "unknown"
}

// IsTerminator reports whether op ends a block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpBranch, OpCondBranch, OpRet, OpRevert:
		return true
	}
	return false
}

// HasSideEffects reports whether an instruction must be kept even when its
// result is unused.
func (op Opcode) HasSideEffects() bool {
	switch op {
	case OpBranch, OpCondBranch, OpRet, OpRevert, OpCall, OpContractCall, OpStore,
		OpStateStoreWord, OpStateStoreQuad, OpStateLoadQuad, OpLog:
		return true
	}
	return false
}

// ReadsMemory reports whether op observes local memory or storage.
func (op Opcode) ReadsMemory() bool {
	switch op {
	case OpLoad, OpCall, OpContractCall, OpStateLoadWord, OpStateStoreQuad, OpLog:
		return true
	}
	return false
}

// WritesMemory reports whether op changes local memory or storage.
func (op Opcode) WritesMemory() bool {
	switch op {
	case OpStore, OpCall, OpContractCall, OpStateStoreWord, OpStateLoadQuad, OpStateStoreQuad:
		return true
	}
	return false
}

type BinOp uint8

const (
	BinAdd BinOp = iota + 1
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
)

var binOpNames = [...]string{
	BinAdd: "add", BinSub: "sub", BinMul: "mul", BinDiv: "div", BinMod: "mod",
	BinAnd: "and", BinOr: "or", BinXor: "xor", BinShl: "shl", BinShr: "shr",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) && binOpNames[op] != "" {
		return binOpNames[op]
	}
	return "?"
}

type Pred uint8

const (
	PredEq Pred = iota + 1
	PredNe
	PredLt
	PredLe
	PredGt
	PredGe
)

var predNames = [...]string{
	PredEq: "eq", PredNe: "ne", PredLt: "lt", PredLe: "le", PredGt: "gt", PredGe: "ge",
}

func (p Pred) String() string {
	if int(p) < len(predNames) && predNames[p] != "" {
		return predNames[p]
	}
	return "?"
}

// PhiIncoming is one (predecessor, value) pair of a phi.
type PhiIncoming struct {
	Block BlockID
	Value ValueID
}

// Instr is the payload of an instruction value. Only the fields used by Op
// are set.
//
// Operand order by opcode:
//
//	binop, cmp          lhs, rhs
//	not                 x
//	cbr                 cond            Targets: then, else
//	ret                 value
//	revert              code
//	call                args...         Callee
//	contract_call       params, coins, asset, gas
//	load                ptr
//	store               ptr, value
//	get_elem_ptr        ptr             Indices
//	insert_value        agg, value      Indices
//	extract_value       agg             Indices
//	state_load_word     key
//	state_store_word    key, value
//	state_load_quad     key, dst ptr    Slots
//	state_store_quad    key, src ptr    Slots
//	log, ptr_to_int, cast_ptr           x
type Instr struct {
	Op       Opcode
	Operands []ValueID

	BinOp    BinOp
	Pred     Pred
	Local    LocalID
	Indices  []uint64
	Targets  []BlockID
	Incoming []PhiIncoming
	Callee   FuncID
	Slots    uint64
}
