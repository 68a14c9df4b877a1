package irgen

import (
	"swayc/internal/ast"
	"swayc/internal/ir"
	"swayc/internal/matcher"
)

// matchFailedRevertCode is the revert code when no arm matches.
const matchFailedRevertCode = 0

// match tests the arms in order. Each requirement of an arm's pattern
// becomes one comparison; a failed comparison falls through to the next
// arm, and falling past the last arm reverts.
func (l *funcLowerer) match(e *ast.Expr) (ir.ValueID, error) {
	scrut, err := l.expr(e.X)
	if err != nil {
		return ir.NoValueID, err
	}
	end := l.b.NewBlock("end_match")
	var incoming []ir.PhiIncoming
	for _, arm := range e.Arms {
		res, err := matcher.Desugar(l.tin, e.X.Type, arm.Pattern)
		if err != nil {
			return ir.NoValueID, internalf(e.Span, "match arm: %v", err)
		}
		next := l.b.NewBlock("next_arm")
		for _, req := range res.Requirements {
			got := l.project(scrut, req.Path)
			want := l.literal(l.g.irType(req.Type), req.Value)
			ok := l.b.NewBlock("arm_test")
			l.b.CondBranch(l.b.Cmp(ir.PredEq, got, want), ok, next)
			l.setBlock(ok)
		}

		l.push()
		for _, bd := range res.Bindings {
			l.bind(bd.Name, binding{value: l.project(scrut, bd.Path)})
		}
		v, err := l.expr(arm.Body)
		l.pop()
		if err != nil {
			return ir.NoValueID, err
		}
		if !l.b.Terminated() {
			incoming = append(incoming, ir.PhiIncoming{Block: l.b.Block(), Value: v})
			l.b.Branch(end)
		}
		l.setBlock(next)
	}
	l.b.Revert(l.u64(matchFailedRevertCode))

	l.setBlock(end)
	if len(incoming) == 0 {
		l.dead = true
	}
	return l.join(e.Type, incoming), nil
}

// project extracts the sub-value a pattern path addresses. Enum tags sit
// at index 0 and variant i's payload at [1, i].
func (l *funcLowerer) project(v ir.ValueID, path []matcher.Projection) ir.ValueID {
	if len(path) == 0 {
		return v
	}
	idx := make([]uint64, 0, len(path)+1)
	for _, p := range path {
		switch p.Kind {
		case matcher.ProjEnumTag:
			idx = append(idx, 0)
		case matcher.ProjEnumPayload:
			idx = append(idx, 1, p.Index)
		default:
			idx = append(idx, p.Index)
		}
	}
	return l.b.ExtractValue(v, idx...)
}
