package irgen

import (
	"strconv"

	"swayc/internal/ast"
	"swayc/internal/ir"
	"swayc/internal/types"
)

// binding is what a name refers to: a stack local or an SSA value.
type binding struct {
	isLocal bool
	local   ir.LocalID
	value   ir.ValueID
}

type loopTargets struct {
	cont, brk ir.BlockID
}

type funcLowerer struct {
	g    *generator
	tin  *types.Interner
	decl *ast.FnDecl
	f    *ir.Function
	b    *ir.Builder

	scopes []map[string]binding
	loops  []loopTargets
	// dead is set while lowering code that follows a terminator.
	dead bool
}

func (g *generator) lowerFunc(decl *ast.FnDecl, f *ir.Function) error {
	l := &funcLowerer{g: g, tin: g.tin, decl: decl, f: f, b: ir.NewBuilder(g.m, f)}
	l.b.SetSpan(decl.Span)
	l.push()
	for i, p := range decl.Params {
		l.bind(p.Name, binding{value: f.Params[i]})
	}
	v, err := l.block(decl.Body)
	if err != nil {
		return err
	}
	if !l.b.Terminated() {
		if l.f.Value(v).Type != f.Ret && (l.dead || l.tin.KindOf(f.Ret) == types.KindUnit) {
			v = l.unitOrUndef(f.Ret)
		}
		l.b.Ret(v)
	}
	return nil
}

func (l *funcLowerer) push() { l.scopes = append(l.scopes, make(map[string]binding)) }
func (l *funcLowerer) pop()  { l.scopes = l.scopes[:len(l.scopes)-1] }

func (l *funcLowerer) bind(name string, b binding) {
	l.scopes[len(l.scopes)-1][name] = b
}

func (l *funcLowerer) lookup(name string) (binding, bool) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if b, ok := l.scopes[i][name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// setBlock continues lowering in id, which has at least one predecessor.
func (l *funcLowerer) setBlock(id ir.BlockID) {
	l.b.SetBlock(id)
	l.dead = false
}

// deadBlock opens a block for code that follows a terminator.
func (l *funcLowerer) deadBlock() {
	l.b.SetBlock(l.b.NewBlock("dead"))
	l.dead = true
}

func (l *funcLowerer) unitOrUndef(t types.TypeID) ir.ValueID {
	if l.tin.KindOf(t) == types.KindUnit {
		return l.b.ConstUnit()
	}
	return l.b.Undef(l.g.irType(t))
}

func (l *funcLowerer) u64(v uint64) ir.ValueID {
	return l.b.ConstUint(l.tin.Builtins().U64, v)
}

func (l *funcLowerer) block(blk *ast.Block) (ir.ValueID, error) {
	if blk == nil {
		return l.b.ConstUnit(), nil
	}
	l.push()
	defer l.pop()
	for _, s := range blk.Stmts {
		if err := l.stmt(s); err != nil {
			return ir.NoValueID, err
		}
	}
	if blk.Tail == nil {
		return l.b.ConstUnit(), nil
	}
	return l.expr(blk.Tail)
}

func (l *funcLowerer) stmt(s *ast.Stmt) error {
	if s == nil {
		return nil
	}
	saved := l.b.Span()
	if !s.Span.IsZero() {
		l.b.SetSpan(s.Span)
	}
	defer l.b.SetSpan(saved)

	switch s.Kind {
	case ast.StmtLet:
		v, err := l.expr(s.Value)
		if err != nil {
			return err
		}
		ty := l.f.Value(v).Type
		if s.Value != nil {
			ty = l.g.irType(s.Value.Type)
		}
		id := l.f.AddLocal(ir.Local{Name: s.Name, Type: ty, Span: s.Span, Mutable: s.Mutable})
		l.b.Store(l.b.GetLocal(id), v)
		l.bind(s.Name, binding{isLocal: true, local: id})
	case ast.StmtExpr:
		_, err := l.expr(s.Value)
		return err
	case ast.StmtAssign:
		return l.assign(s)
	case ast.StmtStorageWrite:
		return l.storageWrite(s)
	case ast.StmtReturn:
		v := l.unitOrUndef(l.f.Ret)
		if s.Value != nil {
			var err error
			if v, err = l.expr(s.Value); err != nil {
				return err
			}
		}
		l.b.Ret(v)
		l.deadBlock()
	case ast.StmtWhile:
		return l.while(s)
	case ast.StmtBreak, ast.StmtContinue:
		if len(l.loops) == 0 {
			return internalf(s.Span, "%s outside a loop", stmtName(s.Kind))
		}
		lt := l.loops[len(l.loops)-1]
		target := lt.brk
		if s.Kind == ast.StmtContinue {
			target = lt.cont
		}
		l.b.Branch(target)
		l.deadBlock()
	default:
		return internalf(s.Span, "cannot lower statement kind %d", s.Kind)
	}
	return nil
}

func stmtName(k ast.StmtKind) string {
	if k == ast.StmtBreak {
		return "break"
	}
	return "continue"
}

func (l *funcLowerer) while(s *ast.Stmt) error {
	header := l.b.NewBlock("while")
	body := l.b.NewBlock("while_body")
	exit := l.b.NewBlock("end_while")
	l.b.Branch(header)

	l.setBlock(header)
	cond, err := l.expr(s.Cond)
	if err != nil {
		return err
	}
	l.b.CondBranch(cond, body, exit)

	l.setBlock(body)
	l.loops = append(l.loops, loopTargets{cont: header, brk: exit})
	_, err = l.block(s.Body)
	l.loops = l.loops[:len(l.loops)-1]
	if err != nil {
		return err
	}
	if !l.b.Terminated() {
		l.b.Branch(header)
	}
	l.setBlock(exit)
	return nil
}

// assign stores into a mutable local or a field path below it.
func (l *funcLowerer) assign(s *ast.Stmt) error {
	bd, ok := l.lookup(s.Name)
	if !ok {
		return internalf(s.Span, "assignment to unbound variable %q", s.Name)
	}
	if !bd.isLocal {
		return internalf(s.Span, "assignment to immutable binding %q", s.Name)
	}
	v, err := l.expr(s.Value)
	if err != nil {
		return err
	}
	ptr := l.b.GetLocal(bd.local)
	ty := l.f.Locals[bd.local].Type
	if len(s.Path) > 0 {
		idx := make([]uint64, 0, len(s.Path))
		for _, name := range s.Path {
			i, next, err := l.step(ty, name)
			if err != nil {
				return err
			}
			idx = append(idx, i)
			ty = next
		}
		ptr = l.b.GetElemPtr(ptr, idx...)
	}
	l.b.Store(ptr, v)
	return nil
}

// step resolves one named path element below ty: a struct field, or a
// decimal tuple or array index.
func (l *funcLowerer) step(ty types.TypeID, name string) (uint64, types.TypeID, error) {
	var idx uint64
	if l.tin.KindOf(ty) == types.KindStruct {
		i, err := l.g.fieldIndex(l.b.Span(), ty, name)
		if err != nil {
			return 0, types.NoTypeID, err
		}
		idx = i
	} else {
		n, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			return 0, types.NoTypeID, internalf(l.b.Span(), "cannot index %s with %q", l.tin.String(ty), name)
		}
		idx = n
	}
	next, ok := l.g.m.Layout.ElemType(ty, idx)
	if !ok {
		return 0, types.NoTypeID, internalf(l.b.Span(), "index %d out of range for %s", idx, l.tin.String(ty))
	}
	return idx, next, nil
}
