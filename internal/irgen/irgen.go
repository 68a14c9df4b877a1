// Package irgen lowers a type-checked program to IR.
//
// Every function of the program becomes one IR function. Let bindings are
// stack locals reached through get_local; parameters and match bindings are
// plain SSA values. Control flow joins through phis. Storage fields are
// planned up front so reads and writes resolve to constant slot keys, and
// constant initialisers are serialised into the module's storage slots.
package irgen

import (
	"errors"
	"fmt"
	"strings"

	"fortio.org/safecast"

	"swayc/internal/ast"
	"swayc/internal/calls"
	"swayc/internal/diag"
	"swayc/internal/ir"
	"swayc/internal/source"
	"swayc/internal/storagekey"
	"swayc/internal/types"
)

// codegenError aborts lowering of the current function with a user-facing
// diagnostic.
type codegenError struct {
	code diag.Code
	span source.Span
	msg  string
}

func (e *codegenError) Error() string { return e.msg }

func unimplemented(sp source.Span, format string, args ...any) error {
	return &codegenError{code: diag.CodegenUnimplemented, span: sp, msg: fmt.Sprintf(format, args...)}
}

func internalf(sp source.Span, format string, args ...any) error {
	return &codegenError{code: diag.InternalInvariant, span: sp, msg: fmt.Sprintf(format, args...)}
}

// pathIndex converts a slice position into an index path element.
func pathIndex(sp source.Span, i int) (uint64, error) {
	n, err := safecast.Conv[uint64](i)
	if err != nil {
		return 0, internalf(sp, "index %d: %v", i, err)
	}
	return n, nil
}

func (g *generator) fieldIndex(sp source.Span, ty types.TypeID, name string) (uint64, error) {
	i, ok := g.tin.FieldIndex(ty, name)
	if !ok {
		return 0, internalf(sp, "%s has no field %q", g.tin.String(ty), name)
	}
	return pathIndex(sp, i)
}

type generator struct {
	prog  *ast.Program
	tin   *types.Interner
	m     *ir.Module
	r     diag.Reporter
	funcs map[ast.FnID]ir.FuncID

	storage      *storagekey.Planner
	storageTypes map[string]types.TypeID
}

// Build lowers prog. The module is returned whenever lowering got far
// enough to produce one; functions that failed are left with whatever
// blocks were built and the failure is reported.
func Build(prog *ast.Program) diag.Result[*ir.Module] {
	bag := diag.NewBag(0)
	if prog == nil || prog.Types == nil || prog.Decls == nil {
		diag.ReportError(diag.BagReporter{Bag: bag}, diag.InternalInvariant, source.Span{}, "irgen: incomplete program").Emit()
		return diag.FromBag[*ir.Module](nil, false, bag)
	}
	g := &generator{
		prog:  prog,
		tin:   prog.Types,
		m:     ir.NewModule(prog.Name, prog.Kind, prog.Types),
		r:     diag.BagReporter{Bag: bag},
		funcs: make(map[ast.FnID]ir.FuncID),
	}
	g.planStorage()

	ids := prog.Decls.FnIDs()
	for _, id := range ids {
		g.declare(id, prog.Decls.Fn(id))
	}
	for _, id := range ids {
		decl := prog.Decls.Fn(id)
		f := g.m.Func(g.funcs[id])
		if err := g.lowerFunc(decl, f); err != nil {
			g.report(decl.Span, err)
		}
	}
	return diag.FromBag(g.m, true, bag)
}

func (g *generator) report(fallback source.Span, err error) {
	var ce *codegenError
	if errors.As(err, &ce) {
		sp := ce.span
		if sp.IsZero() {
			sp = fallback
		}
		diag.ReportError(g.r, ce.code, sp, ce.msg).Emit()
		return
	}
	diag.ReportError(g.r, diag.InternalInvariant, fallback, err.Error()).Emit()
}

// declare creates the IR function for decl so that calls can refer to it
// before its body is lowered.
func (g *generator) declare(id ast.FnID, decl *ast.FnDecl) {
	params := make([]ast.Param, len(decl.Params))
	for i, p := range decl.Params {
		params[i] = ast.Param{Name: p.Name, Type: g.irType(p.Type)}
	}
	f := ir.NewFunction(decl.Name, params, g.irType(decl.Ret))
	f.Span = decl.Span
	f.IsEntry = decl.IsEntry
	if decl.IsEntry && g.prog.Kind == ast.ProgramContract {
		f.HasSelector = true
		f.Selector = calls.ComputeSelector(g.tin, decl.Name, paramTypes(decl.Params)).Uint32()
	}
	g.funcs[id] = g.m.AddFunc(f)
}

// irType maps front-end types to the types values carry in IR. A contract
// caller is just the callee address.
func (g *generator) irType(t types.TypeID) types.TypeID {
	if g.tin.KindOf(t) == types.KindContractCaller {
		return g.tin.Builtins().B256
	}
	return t
}

func paramTypes(ps []ast.Param) []types.TypeID {
	out := make([]types.TypeID, len(ps))
	for i, p := range ps {
		out[i] = p.Type
	}
	return out
}

func joinPath(path []string) string { return strings.Join(path, ".") }
