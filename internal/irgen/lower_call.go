package irgen

import (
	"math"

	"fortio.org/safecast"

	"swayc/internal/ast"
	"swayc/internal/calls"
	"swayc/internal/ir"
	"swayc/internal/types"
)

// defaultCallGas forwards all remaining gas; the VM caps the limit at what
// the caller has left.
const defaultCallGas = math.MaxUint64

func (l *funcLowerer) exprs(es []*ast.Expr) ([]ir.ValueID, error) {
	out := make([]ir.ValueID, 0, len(es))
	for _, e := range es {
		v, err := l.expr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// call lowers a direct call. An arity mismatch is reported and replaced by
// an undef of the result type so that the rest of the body still lowers.
func (l *funcLowerer) call(e *ast.Expr) (ir.ValueID, error) {
	decl := l.g.prog.Decls.Fn(e.Fn)
	callee, ok := l.g.funcs[e.Fn]
	if decl == nil || !ok {
		return ir.NoValueID, internalf(e.Span, "call to unknown function %d", e.Fn)
	}
	if decl.IsEntry {
		return ir.NoValueID, internalf(e.Span, "direct call to entry function %s", decl.Name)
	}
	args, err := l.exprs(e.Elems)
	if err != nil {
		return ir.NoValueID, err
	}
	if !calls.CheckArity(decl.Name, len(decl.Params), len(args), l.b.Span(), l.g.r) {
		return l.unitOrUndef(e.Type), nil
	}
	return l.b.Call(callee, l.g.irType(decl.Ret), args), nil
}

// contractCall builds the (address, selector, argument) call frame in a
// local and issues the call. A single copy-type argument travels inline in
// the frame; otherwise the frame holds a pointer to the argument.
func (l *funcLowerer) contractCall(e *ast.Expr) (ir.ValueID, error) {
	cc := e.ContractCall
	if cc == nil {
		return ir.NoValueID, internalf(e.Span, "contract call without a target")
	}
	callerExpr, argExprs, ok := calls.SplitContractArgs(l.tin, e.Elems)
	if !ok {
		return ir.NoValueID, internalf(e.Span, "contract call to %s.%s has no contract caller", cc.Abi, cc.Method)
	}
	abi, ok := l.g.prog.Decls.AbiByName(cc.Abi)
	if !ok {
		return ir.NoValueID, internalf(e.Span, "unknown abi %q", cc.Abi)
	}
	method, ok := abi.Method(cc.Method)
	if !ok {
		return ir.NoValueID, internalf(e.Span, "abi %s has no method %q", cc.Abi, cc.Method)
	}

	addr, err := l.expr(callerExpr)
	if err != nil {
		return ir.NoValueID, err
	}
	args, err := l.exprs(argExprs)
	if err != nil {
		return ir.NoValueID, err
	}
	if !calls.CheckArity(cc.Method, len(method.Params), len(args), l.b.Span(), l.g.r) {
		return l.unitOrUndef(e.Type), nil
	}

	arg, argType := l.callArgument(cc.Method, args)
	bt := l.tin.Builtins()
	sel := calls.ComputeSelector(l.tin, method.Name, paramTypes(method.Params))
	frameType := l.tin.Tuple([]types.TypeID{bt.B256, bt.U64, argType})
	frame := l.b.Undef(frameType)
	frame = l.b.InsertValue(frame, addr, 0)
	frame = l.b.InsertValue(frame, l.u64(sel.Word()), 1)
	frame = l.b.InsertValue(frame, arg, 2)
	slot := l.f.AddLocal(ir.Local{Name: "call_frame." + cc.Method, Type: frameType, Span: e.Span})
	params := l.b.GetLocal(slot)
	l.b.Store(params, frame)

	coins, err := l.callParam(cc.Params.Coins, func() ir.ValueID { return l.u64(0) })
	if err != nil {
		return ir.NoValueID, err
	}
	asset, err := l.callParam(cc.Params.AssetID, func() ir.ValueID { return l.b.ConstB256([32]byte{}) })
	if err != nil {
		return ir.NoValueID, err
	}
	gas, err := l.callParam(cc.Params.Gas, func() ir.ValueID { return l.u64(defaultCallGas) })
	if err != nil {
		return ir.NoValueID, err
	}
	return l.b.ContractCall(l.g.irType(e.Type), params, coins, asset, gas), nil
}

func (l *funcLowerer) callArgument(method string, args []ir.ValueID) (ir.ValueID, types.TypeID) {
	u64 := l.tin.Builtins().U64
	switch len(args) {
	case 0:
		return l.u64(0), u64
	case 1:
		ty := l.f.Value(args[0]).Type
		if n, err := l.g.m.Layout.SizeOf(ty); err == nil && n == 1 {
			return args[0], ty
		}
		return l.spill("call_arg."+method, ty, args[0]), u64
	}
	elems := make([]types.TypeID, len(args))
	for i, a := range args {
		elems[i] = l.f.Value(a).Type
	}
	ty := l.tin.Tuple(elems)
	tuple := l.b.Undef(ty)
	for i, a := range args {
		tuple = l.b.InsertValue(tuple, a, safecast.MustConv[uint64](i))
	}
	return l.spill("call_args."+method, ty, tuple), u64
}

// spill stores v in a fresh local and returns the local's address as a word.
func (l *funcLowerer) spill(name string, ty types.TypeID, v ir.ValueID) ir.ValueID {
	slot := l.f.AddLocal(ir.Local{Name: name, Type: ty, Span: l.b.Span()})
	ptr := l.b.GetLocal(slot)
	l.b.Store(ptr, v)
	return l.b.PtrToInt(ptr)
}

func (l *funcLowerer) callParam(e *ast.Expr, def func() ir.ValueID) (ir.ValueID, error) {
	if e == nil {
		return def(), nil
	}
	return l.expr(e)
}
