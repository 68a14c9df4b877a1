package ast

import (
	"fmt"

	"swayc/internal/source"
	"swayc/internal/types"
)

type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprLit
	ExprVar
	ExprConst
	ExprBinary
	ExprUnary
	ExprStruct
	ExprTuple
	ExprArray
	ExprEnum
	ExprField
	ExprTupleIndex
	ExprArrayIndex
	ExprBlock
	ExprIf
	ExprMatch
	ExprCall
	ExprContractCall
	ExprStorageRead
	ExprAbiCast
	ExprRevert
	ExprLog
	// ExprErrorRecovery stands in for an expression the front end could not check.
	ExprErrorRecovery
)

var exprKindNames = [...]string{
	ExprInvalid:       "invalid",
	ExprLit:           "literal",
	ExprVar:           "var",
	ExprConst:         "const",
	ExprBinary:        "binary",
	ExprUnary:         "unary",
	ExprStruct:        "struct",
	ExprTuple:         "tuple",
	ExprArray:         "array",
	ExprEnum:          "enum",
	ExprField:         "field",
	ExprTupleIndex:    "tuple_index",
	ExprArrayIndex:    "array_index",
	ExprBlock:         "block",
	ExprIf:            "if",
	ExprMatch:         "match",
	ExprCall:          "call",
	ExprContractCall:  "contract_call",
	ExprStorageRead:   "storage_read",
	ExprAbiCast:       "abi",
	ExprRevert:        "revert",
	ExprLog:           "log",
	ExprErrorRecovery: "error",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return "unknown"
}

// Expr is a type-checked expression. Type is always resolved.
type Expr struct {
	Kind ExprKind
	Type types.TypeID
	Span source.Span

	Lit          Lit
	Name         string // ExprVar, ExprField, ExprEnum variant
	Const        ConstID
	Op           Op
	X, Y         *Expr // operands; X is also the target of accesses
	Index        uint64
	Elems        []*Expr // tuple/array elements, call arguments
	Fields       []FieldInit
	Block        *Block
	Then, Else   *Expr
	Arms         []MatchArm
	Fn           FnID
	ContractCall *ContractCallExpr
	Path         []string // storage field path
	Abi          string
}

// LitKind enumerates literal kinds.
type LitKind uint8

const (
	LitUnit LitKind = iota
	LitBool
	LitUint
	LitB256
	LitStr
)

// Lit is a literal value.
type Lit struct {
	Kind LitKind
	Bool bool
	Uint uint64
	B256 [32]byte
	Str  string
}

// FieldInit initialises one struct field.
type FieldInit struct {
	Name  string
	Value *Expr
}

// DeclaredFields returns the initialisers of struct literal e indexed by
// declaration order, so that fields are evaluated in the order the struct
// lists them. Fields without an initialiser have a nil Value.
func DeclaredFields(tin *types.Interner, e *Expr) ([]FieldInit, error) {
	info, ok := tin.StructInfo(e.Type)
	if !ok {
		return nil, fmt.Errorf("%s is not a struct", tin.String(e.Type))
	}
	out := make([]FieldInit, len(info.Fields))
	for i, f := range info.Fields {
		out[i].Name = f.Name
	}
	for _, fi := range e.Fields {
		i, found := tin.FieldIndex(e.Type, fi.Name)
		if !found {
			return nil, fmt.Errorf("%s has no field %q", info.Name, fi.Name)
		}
		if out[i].Value != nil {
			return nil, fmt.Errorf("field %q of %s is initialised twice", fi.Name, info.Name)
		}
		out[i].Value = fi.Value
	}
	return out, nil
}

// Block is a sequence of statements with an optional tail expression.
type Block struct {
	Stmts []*Stmt
	Tail  *Expr
}

// MatchArm is one arm of a match expression.
type MatchArm struct {
	Pattern *Pattern
	Body    *Expr
}

// CallParams carries the optional coins/asset/gas of a contract call.
type CallParams struct {
	Coins   *Expr
	AssetID *Expr
	Gas     *Expr
}

// ContractCallExpr is caller.method(args). Args[0] is the contract caller.
type ContractCallExpr struct {
	Abi    string
	Method string
	Params CallParams
}

// Op enumerates unary and binary operators.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpLogicalAnd
	OpLogicalOr
	OpNot
)

var opNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^", OpShl: "<<", OpShr: ">>",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpLogicalAnd: "&&", OpLogicalOr: "||", OpNot: "!",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "?"
}

// IsComparison reports whether o produces a bool from two operands.
func (o Op) IsComparison() bool {
	return o >= OpEq && o <= OpGe
}
