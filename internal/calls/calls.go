// Package calls holds the checks and encodings shared by the IR builder
// and the legacy code generator for function and contract calls.
package calls

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"swayc/internal/ast"
	"swayc/internal/diag"
	"swayc/internal/source"
	"swayc/internal/types"
)

// CheckArity reports argument-count mismatches. It returns false when the
// call cannot be lowered; the caller substitutes an error-recovery value and
// keeps going.
func CheckArity(fnName string, expected, received int, span source.Span, r diag.Reporter) bool {
	switch {
	case received > expected:
		diag.ReportError(r, diag.CodegenTooManyArguments, span,
			fmt.Sprintf("too many arguments for function %q: expected: %d, received: %d", fnName, expected, received)).Emit()
		return false
	case received < expected:
		diag.ReportError(r, diag.CodegenTooFewArguments, span,
			fmt.Sprintf("too few arguments for function %q: expected: %d, received: %d", fnName, expected, received)).Emit()
		return false
	}
	return true
}

// Selector is the 4-byte ABI function selector.
type Selector [4]byte

// Word returns the selector as the right-aligned word stored in a call frame.
func (s Selector) Word() uint64 {
	return uint64(binary.BigEndian.Uint32(s[:]))
}

// Uint32 returns the selector as the value carried in a function header.
func (s Selector) Uint32() uint32 { return binary.BigEndian.Uint32(s[:]) }

func (s Selector) String() string {
	return fmt.Sprintf("0x%08x", binary.BigEndian.Uint32(s[:]))
}

// ComputeSelector hashes the canonical signature name(T1,T2,...) with
// sha256 and keeps the first four bytes.
func ComputeSelector(in *types.Interner, name string, params []types.TypeID) Selector {
	sum := sha256.Sum256([]byte(Signature(in, name, params)))
	var s Selector
	copy(s[:], sum[:4])
	return s
}

// Signature renders the canonical signature used for selectors.
func Signature(in *types.Interner, name string, params []types.TypeID) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = canonical(in, p)
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

func canonical(in *types.Interner, id types.TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return "?"
	}
	switch tt.Kind {
	case types.KindStruct:
		info, _ := in.StructInfo(id)
		parts := make([]string, len(info.Fields))
		for i, f := range info.Fields {
			parts[i] = canonical(in, f.Type)
		}
		return "s(" + strings.Join(parts, ",") + ")"
	case types.KindEnum:
		info, _ := in.EnumInfo(id)
		parts := make([]string, len(info.Variants))
		for i, v := range info.Variants {
			parts[i] = canonical(in, v.Type)
		}
		return "e(" + strings.Join(parts, ",") + ")"
	case types.KindTuple:
		info, _ := in.TupleInfo(id)
		parts := make([]string, len(info.Elems))
		for i, e := range info.Elems {
			parts[i] = canonical(in, e)
		}
		return "(" + strings.Join(parts, ",") + ")"
	case types.KindArray:
		return fmt.Sprintf("a[%s;%d]", canonical(in, tt.Elem), tt.Count)
	default:
		return in.String(id)
	}
}

// SplitContractArgs separates the contract caller from the method
// arguments. The first positional argument supplies the callee address and
// is not part of the method's parameter list. ok is false when the caller is
// missing or is not a ContractCaller.
func SplitContractArgs(in *types.Interner, args []*ast.Expr) (caller *ast.Expr, rest []*ast.Expr, ok bool) {
	if len(args) == 0 {
		return nil, nil, false
	}
	if in.KindOf(args[0].Type) != types.KindContractCaller {
		return nil, args, false
	}
	return args[0], args[1:], true
}
