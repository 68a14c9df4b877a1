package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"swayc/internal/ast"
	"swayc/internal/source"
	"swayc/internal/types"
)

// CheckSpanInvariants runs a minimal set of invariants on a typed function:
// 1) the declaration span is within the bounds of its file
// 2) every expression carries a resolved type
// 3) every non-zero expression span lies inside the declaration span
func CheckSpanInvariants(prog *ast.Program, id ast.FnID) error {
	if prog == nil || prog.Decls == nil {
		return fmt.Errorf("nil program")
	}
	fn := prog.Decls.Fn(id)
	if fn == nil {
		return fmt.Errorf("function %d not found", id)
	}

	// 1) declaration span sanity
	if !fn.Span.IsZero() && prog.Files != nil {
		sf := prog.Files.Get(fn.Span.File)
		if sf == nil {
			return fmt.Errorf("%s: span points to unknown file %d", fn.Name, fn.Span.File)
		}
		lenContent, err := safecast.Conv[uint32](len(sf.Content))
		if err != nil {
			return fmt.Errorf("len content overflow: %w", err)
		}
		if fn.Span.End > lenContent {
			return fmt.Errorf("%s: span end beyond content: %d > %d", fn.Name, fn.Span.End, lenContent)
		}
	}

	// 2) and 3) walk the body
	c := &spanChecker{in: prog.Types, outer: fn.Span}
	c.block(fn.Body)
	return c.err
}

type spanChecker struct {
	in    *types.Interner
	outer source.Span
	err   error
}

func (c *spanChecker) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

func (c *spanChecker) block(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		c.expr(s.Value)
		c.expr(s.Cond)
		c.block(s.Body)
	}
	c.expr(b.Tail)
}

func (c *spanChecker) expr(e *ast.Expr) {
	if e == nil || c.err != nil {
		return
	}
	if e.Type == types.NoTypeID {
		c.fail("%s expression at %v has no type", e.Kind, e.Span)
		return
	}
	if _, ok := c.in.Lookup(e.Type); !ok {
		c.fail("%s expression at %v has unknown type#%d", e.Kind, e.Span, e.Type)
		return
	}
	if !e.Span.IsZero() && !c.outer.IsZero() {
		if e.Span.File != c.outer.File || e.Span.Start < c.outer.Start || e.Span.End > c.outer.End {
			c.fail("%s expression span %v is outside %v", e.Kind, e.Span, c.outer)
			return
		}
	}
	c.expr(e.X)
	c.expr(e.Y)
	c.expr(e.Then)
	c.expr(e.Else)
	c.block(e.Block)
	for _, el := range e.Elems {
		c.expr(el)
	}
	for _, f := range e.Fields {
		c.expr(f.Value)
	}
	for _, arm := range e.Arms {
		c.expr(arm.Body)
	}
}
