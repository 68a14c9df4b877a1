package tastyaml

import (
	"strings"

	"gopkg.in/yaml.v3"

	"swayc/internal/ast"
	"swayc/internal/types"
)

var stmtForms = map[string][]string{
	"let":    {"let", "mut", "type", "value"},
	"set":    {"set", "value"},
	"store":  {"store", "value"},
	"return": {"return"},
	"while":  {"while", "body"},
	"expr":   {"expr"},
}

func isStmt(n *yaml.Node) bool {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value == "break" || n.Value == "continue"
	case yaml.MappingNode:
		return formOf(n, stmtForms) != ""
	}
	return false
}

// block decodes a sequence of statements. A trailing expression becomes
// the tail; any other node is read as a block holding only a tail.
func (d *decoder) block(n *yaml.Node, want types.TypeID) *ast.Block {
	blk := &ast.Block{}
	if n == nil {
		return blk
	}
	d.push()
	defer d.pop()
	if n.Kind != yaml.SequenceNode {
		if isStmt(n) {
			blk.Stmts = append(blk.Stmts, d.stmt(n))
		} else {
			blk.Tail = d.expr(n, want)
		}
		return blk
	}
	for i, it := range n.Content {
		switch {
		case isStmt(it):
			blk.Stmts = append(blk.Stmts, d.stmt(it))
		case i == len(n.Content)-1:
			blk.Tail = d.expr(it, want)
		default:
			blk.Stmts = append(blk.Stmts, &ast.Stmt{Kind: ast.StmtExpr, Span: d.span(it), Value: d.expr(it, types.NoTypeID)})
		}
	}
	return blk
}

// body decodes the body of a function; a non-unit tail must have the
// return type.
func (d *decoder) body(n *yaml.Node, ret types.TypeID) *ast.Block {
	blk := d.block(n, ret)
	if t := blk.Tail; t != nil && t.Type != d.bt.Unit {
		d.typedTail(n, t, ret)
	}
	return blk
}

func (d *decoder) typedTail(n *yaml.Node, tail *ast.Expr, ret types.TypeID) {
	if _, ok := d.untyped[tail]; ok {
		d.retype(tail, ret)
	}
	at := n
	if n.Kind == yaml.SequenceNode && len(n.Content) > 0 {
		at = n.Content[len(n.Content)-1]
	}
	d.expect(at, tail, ret)
}

func (d *decoder) stmt(n *yaml.Node) *ast.Stmt {
	sp := d.span(n)
	if n.Kind == yaml.ScalarNode {
		if n.Value == "break" {
			return &ast.Stmt{Kind: ast.StmtBreak, Span: sp}
		}
		return &ast.Stmt{Kind: ast.StmtContinue, Span: sp}
	}
	form := formOf(n, stmtForms)
	m := d.fields(n, stmtForms[form]...)
	if m == nil {
		return &ast.Stmt{Kind: ast.StmtExpr, Span: sp, Value: d.recovery(n)}
	}
	switch form {
	case "let":
		return d.let(n, m)
	case "set":
		path := strings.Split(d.str(m["set"], "an assignment target"), ".")
		t, ok := d.lookup(path[0])
		for _, seg := range path[1:] {
			if !ok {
				break
			}
			t, ok = d.memberType(t, seg)
		}
		if !ok {
			d.errorf(m["set"], "cannot assign to %s", m["set"].Value)
			t = d.bt.ErrorRecovery
		}
		s := &ast.Stmt{Kind: ast.StmtAssign, Span: sp, Name: path[0], Value: d.typed(d.required(m, n, "value"), t)}
		if len(path) > 1 {
			s.Path = path[1:]
		}
		return s
	case "store":
		path := strings.Split(d.str(m["store"], "a storage path"), ".")
		t, ok := d.storageType(path)
		if !ok {
			d.errorf(m["store"], "unknown storage field %s", strings.Join(path, "."))
			t = d.bt.ErrorRecovery
		}
		return &ast.Stmt{Kind: ast.StmtStorageWrite, Span: sp, Path: path, Value: d.typed(d.required(m, n, "value"), t)}
	case "return":
		s := &ast.Stmt{Kind: ast.StmtReturn, Span: sp}
		if v := m["return"]; v.Tag != "!!null" {
			s.Value = d.typed(v, d.ret)
		} else if d.ret != d.bt.Unit {
			d.errorf(n, "missing return value of type %s", d.tin.String(d.ret))
		}
		return s
	case "while":
		s := &ast.Stmt{Kind: ast.StmtWhile, Span: sp, Cond: d.typed(m["while"], d.bt.Bool)}
		s.Body = d.block(d.required(m, n, "body"), types.NoTypeID)
		if tail := s.Body.Tail; tail != nil {
			s.Body.Stmts = append(s.Body.Stmts, &ast.Stmt{Kind: ast.StmtExpr, Span: tail.Span, Value: tail})
			s.Body.Tail = nil
		}
		return s
	default:
		return &ast.Stmt{Kind: ast.StmtExpr, Span: sp, Value: d.expr(m["expr"], types.NoTypeID)}
	}
}

func (d *decoder) let(n *yaml.Node, m map[string]*yaml.Node) *ast.Stmt {
	s := &ast.Stmt{Kind: ast.StmtLet, Span: d.span(n), Name: d.str(d.required(m, n, "let"), "a variable name"), Mutable: d.boolean(m["mut"])}
	value := d.required(m, n, "value")
	t := types.NoTypeID
	if tn := m["type"]; tn != nil {
		t = d.typeOf(tn)
		s.Value = d.typed(value, t)
	} else {
		s.Value = d.expr(value, types.NoTypeID)
		t = s.Value.Type
	}
	if s.Name != "" {
		d.bind(s.Name, t)
	}
	return s
}

// pattern decodes a pattern matching values of type t and binds the
// variables it introduces in the current scope.
func (d *decoder) pattern(n *yaml.Node, t types.TypeID) *ast.Pattern {
	p := &ast.Pattern{Kind: ast.PatWildcard, Type: t, Span: d.span(n)}
	if n == nil || t == d.bt.ErrorRecovery {
		return p
	}
	switch n.Kind {
	case yaml.ScalarNode:
		d.scalarPattern(n, p)
	case yaml.MappingNode:
		form := formOf(n, patternForms)
		if form == "" {
			d.errorf(n, "unknown pattern form")
			return p
		}
		m := d.fields(n, patternForms[form]...)
		if m == nil {
			return p
		}
		switch form {
		case "struct":
			d.structPattern(m["struct"], p)
		case "tuple":
			d.tuplePattern(m["tuple"], p)
		case "enum":
			d.enumPattern(m["enum"], m["payload"], p)
		}
	default:
		d.errorf(n, "expected a pattern")
	}
	return p
}

var patternForms = map[string][]string{
	"struct": {"struct"},
	"tuple":  {"tuple"},
	"enum":   {"enum", "payload"},
}

func (d *decoder) scalarPattern(n *yaml.Node, p *ast.Pattern) {
	v := n.Value
	switch {
	case v == "_":
	case n.Tag == "!!bool":
		p.Kind = ast.PatLit
		p.Lit = ast.Lit{Kind: ast.LitBool, Bool: d.boolean(n)}
		if p.Type != d.bt.Bool {
			d.errorf(n, "bool pattern against %s", d.tin.String(p.Type))
		}
	case n.Tag == "!!int":
		if !d.isInt(p.Type) {
			d.errorf(n, "integer pattern against %s", d.tin.String(p.Type))
			return
		}
		lit := d.intLit(n, v, p.Type, "")
		p.Kind = ast.PatLit
		p.Lit = lit.Lit
	case isB256(v):
		if p.Type != d.bt.B256 {
			d.errorf(n, "b256 pattern against %s", d.tin.String(p.Type))
			return
		}
		p.Kind = ast.PatLit
		p.Lit = d.b256Lit(n).Lit
	case strings.Contains(v, "::") || d.hasVariant(p.Type, v):
		d.enumPattern(n, nil, p)
	case isIdent(v):
		p.Kind = ast.PatVar
		p.Name = v
		d.bind(v, p.Type)
	default:
		d.errorf(n, "cannot read %q as a pattern", v)
	}
}

func (d *decoder) structPattern(n *yaml.Node, p *ast.Pattern) {
	if d.tin.KindOf(p.Type) != types.KindStruct {
		d.errorf(n, "struct pattern against %s", d.tin.String(p.Type))
		return
	}
	if n.Kind != yaml.MappingNode {
		d.errorf(n, "expected a mapping of field patterns")
		return
	}
	p.Kind = ast.PatStruct
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		ft, ok := d.memberType(p.Type, k.Value)
		if !ok {
			d.errorf(k, "%s has no field %s", d.tin.String(p.Type), k.Value)
			continue
		}
		p.Fields = append(p.Fields, ast.FieldPattern{Name: k.Value, Pattern: d.pattern(v, ft)})
	}
}

func (d *decoder) tuplePattern(n *yaml.Node, p *ast.Pattern) {
	info, ok := d.tin.TupleInfo(p.Type)
	if !ok {
		d.errorf(n, "tuple pattern against %s", d.tin.String(p.Type))
		return
	}
	items := d.seq(n)
	if len(items) != len(info.Elems) {
		d.errorf(n, "tuple pattern has %d elements, %s has %d", len(items), d.tin.String(p.Type), len(info.Elems))
		return
	}
	p.Kind = ast.PatTuple
	for i, it := range items {
		p.Elems = append(p.Elems, d.pattern(it, info.Elems[i]))
	}
}

// hasVariant reports whether a bare name in a pattern against t names a
// variant rather than a binding.
func (d *decoder) hasVariant(t types.TypeID, name string) bool {
	_, ok := d.tin.VariantTag(t, name)
	return ok
}

// enumPattern decodes Variant or Enum::Variant with an optional payload
// pattern; a missing payload matches any.
func (d *decoder) enumPattern(n, payload *yaml.Node, p *ast.Pattern) {
	ref := d.str(n, "a variant")
	t, variant, ok := d.variantRef(n, ref, p.Type)
	if !ok {
		return
	}
	if t != p.Type {
		d.errorf(n, "%s pattern against %s", ref, d.tin.String(p.Type))
		return
	}
	p.Kind = ast.PatEnum
	p.Name = variant.Name
	if payload != nil {
		p.Payload = d.pattern(payload, variant.Type)
	}
}
