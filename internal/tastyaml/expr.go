package tastyaml

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"fortio.org/safecast"
	"gopkg.in/yaml.v3"

	"swayc/internal/ast"
	"swayc/internal/types"
)

var binaryOps = map[string]ast.Op{
	"add": ast.OpAdd, "sub": ast.OpSub, "mul": ast.OpMul, "div": ast.OpDiv, "mod": ast.OpMod,
	"band": ast.OpBitAnd, "bor": ast.OpBitOr, "xor": ast.OpBitXor, "shl": ast.OpShl, "shr": ast.OpShr,
	"eq": ast.OpEq, "ne": ast.OpNe, "lt": ast.OpLt, "le": ast.OpLe, "gt": ast.OpGt, "ge": ast.OpGe,
	"and": ast.OpLogicalAnd, "or": ast.OpLogicalOr,
}

// exprForms maps the key selecting an expression form to every key the
// form accepts.
var exprForms = map[string][]string{
	"var":     {"var"},
	"const":   {"const"},
	"u8":      {"u8"},
	"u16":     {"u16"},
	"u32":     {"u32"},
	"u64":     {"u64"},
	"byte":    {"byte"},
	"b256":    {"b256"},
	"str":     {"str"},
	"bool":    {"bool"},
	"not":     {"not"},
	"struct":  {"struct", "fields"},
	"tuple":   {"tuple"},
	"array":   {"array", "elem"},
	"enum":    {"enum", "payload"},
	"field":   {"field", "of"},
	"at":      {"at", "of"},
	"index":   {"index", "of"},
	"block":   {"block"},
	"if":      {"if", "then", "else"},
	"match":   {"match", "arms", "type"},
	"call":    {"call", "on", "args", "coins", "asset", "gas"},
	"storage": {"storage"},
	"abi":     {"abi", "address"},
	"revert":  {"revert"},
	"log":     {"log"},
}

// formOf returns the first key of n that selects a form in forms.
func formOf(n *yaml.Node, forms map[string][]string) string {
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i].Value
		if _, ok := forms[k]; ok {
			return k
		}
		if _, ok := binaryOps[k]; ok && forms == nil {
			return k
		}
	}
	return ""
}

func exprFormOf(n *yaml.Node) string {
	if f := formOf(n, exprForms); f != "" {
		return f
	}
	return formOf(n, nil)
}

func (d *decoder) recovery(n *yaml.Node) *ast.Expr {
	return &ast.Expr{Kind: ast.ExprErrorRecovery, Type: d.bt.ErrorRecovery, Span: d.span(n)}
}

func (d *decoder) isInt(t types.TypeID) bool {
	k := d.tin.KindOf(t)
	return k == types.KindUint || k == types.KindByte
}

// typed decodes n where a value of type t is required.
func (d *decoder) typed(n *yaml.Node, t types.TypeID) *ast.Expr {
	if n == nil {
		return d.recovery(nil)
	}
	e := d.expr(n, t)
	if _, ok := d.untyped[e]; ok {
		d.retype(e, t)
	}
	d.expect(n, e, t)
	return e
}

func (d *decoder) expect(n *yaml.Node, e *ast.Expr, t types.TypeID) {
	if t == d.bt.ErrorRecovery || e.Type == d.bt.ErrorRecovery || e.Type == t {
		return
	}
	d.errorf(n, "expected %s, found %s", d.tin.String(t), d.tin.String(e.Type))
}

// expr decodes n. want is the type the context expects, or NoTypeID; it
// only steers literal typing and is not checked.
func (d *decoder) expr(n *yaml.Node, want types.TypeID) *ast.Expr {
	if n == nil {
		return d.recovery(nil)
	}
	switch n.Kind {
	case yaml.AliasNode:
		return d.expr(n.Alias, want)
	case yaml.ScalarNode:
		return d.scalar(n, want)
	case yaml.SequenceNode:
		blk := d.block(n, want)
		return &ast.Expr{Kind: ast.ExprBlock, Type: d.blockType(blk), Span: d.span(n), Block: blk}
	case yaml.MappingNode:
		return d.mapping(n, want)
	}
	d.errorf(n, "expected an expression")
	return d.recovery(n)
}

func (d *decoder) blockType(b *ast.Block) types.TypeID {
	if b.Tail == nil {
		return d.bt.Unit
	}
	return b.Tail.Type
}

func isB256(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

func isIdent(s string) bool {
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return s != ""
}

// splitSuffix splits a suffixed integer literal such as 7u8.
func splitSuffix(s string) (digits, suffix string, ok bool) {
	for _, sfx := range []string{"u8", "u16", "u32", "u64"} {
		if d, found := strings.CutSuffix(s, sfx); found && d != "" && d[0] >= '0' && d[0] <= '9' {
			return d, sfx, true
		}
	}
	return "", "", false
}

func (d *decoder) scalar(n *yaml.Node, want types.TypeID) *ast.Expr {
	sp := d.span(n)
	v := n.Value
	switch {
	case n.Tag == "!!null" || v == "()":
		return &ast.Expr{Kind: ast.ExprLit, Type: d.bt.Unit, Span: sp, Lit: ast.Lit{Kind: ast.LitUnit}}
	case n.Tag == "!!bool":
		return &ast.Expr{Kind: ast.ExprLit, Type: d.bt.Bool, Span: sp, Lit: ast.Lit{Kind: ast.LitBool, Bool: d.boolean(n)}}
	case isB256(v):
		return d.b256Lit(n)
	case n.Tag == "!!int":
		return d.intLit(n, v, want, "")
	}
	if digits, sfx, ok := splitSuffix(v); ok {
		return d.intLit(n, digits, types.NoTypeID, sfx)
	}
	if strings.Contains(v, "::") {
		return d.enumLit(n, v, nil, want)
	}
	if isIdent(v) {
		if _, bound := d.lookup(v); !bound && d.hasVariant(want, v) {
			return d.enumLit(n, v, nil, want)
		}
		return d.name(n, v)
	}
	d.errorf(n, "cannot read %q as an expression", v)
	return d.recovery(n)
}

func (d *decoder) b256Lit(n *yaml.Node) *ast.Expr {
	if !isB256(n.Value) {
		d.errorf(n, "b256 literals are 0x followed by 64 hex digits")
		return d.recovery(n)
	}
	var b [32]byte
	_, _ = hex.Decode(b[:], []byte(n.Value[2:]))
	return &ast.Expr{Kind: ast.ExprLit, Type: d.bt.B256, Span: d.span(n), Lit: ast.Lit{Kind: ast.LitB256, B256: b}}
}

// intLit decodes an integer literal. Without a suffix or an integer want
// the literal is untyped: it defaults to u64 but takes the type of the
// operand it meets.
func (d *decoder) intLit(n *yaml.Node, text string, want types.TypeID, suffix string) *ast.Expr {
	u, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		d.errorf(n, "invalid unsigned integer %q", text)
		return d.recovery(n)
	}
	e := &ast.Expr{Kind: ast.ExprLit, Type: d.bt.U64, Span: d.span(n), Lit: ast.Lit{Kind: ast.LitUint, Uint: u}}
	switch {
	case suffix != "":
		e.Type = builtinType(d.bt, suffix)
	case d.isInt(want):
		e.Type = want
	default:
		d.untyped[e] = n
		return e
	}
	d.checkFits(n, e)
	return e
}

func (d *decoder) checkFits(n *yaml.Node, e *ast.Expr) {
	tt, ok := d.tin.Lookup(e.Type)
	if !ok {
		return
	}
	width := uint(64)
	switch tt.Kind {
	case types.KindByte:
		width = 8
	case types.KindUint:
		width = uint(tt.Width)
	}
	if width < 64 && e.Lit.Uint >= 1<<width {
		d.errorf(n, "literal %d does not fit %s", e.Lit.Uint, d.tin.String(e.Type))
	}
}

// retype commits an untyped expression to the integer type t.
func (d *decoder) retype(e *ast.Expr, t types.TypeID) {
	n, ok := d.untyped[e]
	if !ok || !d.isInt(t) {
		return
	}
	delete(d.untyped, e)
	e.Type = t
	switch e.Kind {
	case ast.ExprLit:
		d.checkFits(n, e)
	case ast.ExprBinary:
		d.retype(e.X, t)
		d.retype(e.Y, t)
	case ast.ExprUnary:
		d.retype(e.X, t)
	}
}

// unify types an untyped operand after the other one.
func (d *decoder) unify(x, y *ast.Expr) {
	_, xu := d.untyped[x]
	_, yu := d.untyped[y]
	switch {
	case xu && !yu:
		d.retype(x, y.Type)
	case yu && !xu:
		d.retype(y, x.Type)
	}
}

// hint is the type e suggests to its sibling operand.
func (d *decoder) hint(e *ast.Expr) types.TypeID {
	if _, ok := d.untyped[e]; ok {
		return types.NoTypeID
	}
	return e.Type
}

func (d *decoder) name(n *yaml.Node, name string) *ast.Expr {
	if t, ok := d.lookup(name); ok {
		return &ast.Expr{Kind: ast.ExprVar, Type: t, Span: d.span(n), Name: name}
	}
	if id, ok := d.consts[name]; ok {
		return &ast.Expr{Kind: ast.ExprConst, Type: d.prog.Decls.Const(id).Type, Span: d.span(n), Const: id}
	}
	d.errorf(n, "unknown name %q", name)
	return d.recovery(n)
}

func (d *decoder) mapping(n *yaml.Node, want types.TypeID) *ast.Expr {
	form := exprFormOf(n)
	if form == "" {
		d.errorf(n, "unknown expression form")
		return d.recovery(n)
	}
	if op, ok := binaryOps[form]; ok {
		return d.binary(n, form, op, want)
	}
	m := d.fields(n, exprForms[form]...)
	if m == nil {
		return d.recovery(n)
	}
	sp := d.span(n)
	bt := d.bt
	switch form {
	case "var":
		name := d.str(m["var"], "a variable name")
		if t, ok := d.lookup(name); ok {
			return &ast.Expr{Kind: ast.ExprVar, Type: t, Span: sp, Name: name}
		}
		d.errorf(m["var"], "unknown variable %q", name)
	case "const":
		name := d.str(m["const"], "a constant name")
		if id, ok := d.consts[name]; ok {
			return &ast.Expr{Kind: ast.ExprConst, Type: d.prog.Decls.Const(id).Type, Span: sp, Const: id}
		}
		d.errorf(m["const"], "unknown constant %q", name)
	case "u8", "u16", "u32", "u64", "byte":
		v := m[form]
		if v.Kind != yaml.ScalarNode {
			d.errorf(v, "expected an integer")
			break
		}
		e := d.intLit(v, v.Value, types.NoTypeID, form)
		e.Span = sp
		return e
	case "b256":
		e := d.b256Lit(m["b256"])
		e.Span = sp
		return e
	case "str":
		s := m["str"].Value
		size, err := safecast.Conv[uint32](len(s))
		if err != nil {
			d.errorf(m["str"], "string literal is too long: %v", err)
			return d.recovery(n)
		}
		return &ast.Expr{Kind: ast.ExprLit, Type: d.tin.Str(size), Span: sp, Lit: ast.Lit{Kind: ast.LitStr, Str: s}}
	case "bool":
		return &ast.Expr{Kind: ast.ExprLit, Type: bt.Bool, Span: sp, Lit: ast.Lit{Kind: ast.LitBool, Bool: d.boolean(m["bool"])}}
	case "not":
		x := d.expr(m["not"], want)
		e := &ast.Expr{Kind: ast.ExprUnary, Type: x.Type, Span: sp, Op: ast.OpNot, X: x}
		if _, ok := d.untyped[x]; ok {
			d.untyped[e] = n
		}
		return e
	case "struct":
		return d.structLit(n, m)
	case "tuple":
		return d.tupleLit(n, m, want)
	case "array":
		return d.arrayLit(n, m, want)
	case "enum":
		e := d.enumLit(m["enum"], m["enum"].Value, m["payload"], want)
		e.Span = sp
		return e
	case "field", "at", "index":
		return d.access(n, form, m)
	case "block":
		blk := d.block(m["block"], want)
		return &ast.Expr{Kind: ast.ExprBlock, Type: d.blockType(blk), Span: sp, Block: blk}
	case "if":
		return d.ifExpr(n, m, want)
	case "match":
		return d.match(n, m, want)
	case "call":
		if m["on"] != nil {
			return d.contractCall(n, m)
		}
		return d.call(n, m)
	case "storage":
		path := strings.Split(d.str(m["storage"], "a storage path"), ".")
		t, ok := d.storageType(path)
		if !ok {
			d.errorf(m["storage"], "unknown storage field %s", strings.Join(path, "."))
			break
		}
		return &ast.Expr{Kind: ast.ExprStorageRead, Type: t, Span: sp, Path: path}
	case "abi":
		name := d.str(m["abi"], "an ABI name")
		if _, ok := d.prog.Decls.AbiByName(name); !ok {
			d.errorf(m["abi"], "unknown ABI %s", name)
			break
		}
		addr := d.typed(d.required(m, n, "address"), bt.B256)
		return &ast.Expr{Kind: ast.ExprAbiCast, Type: d.tin.ContractCaller(name), Span: sp, Abi: name, X: addr}
	case "revert":
		return &ast.Expr{Kind: ast.ExprRevert, Type: bt.Unit, Span: sp, X: d.typed(m["revert"], bt.U64)}
	case "log":
		return &ast.Expr{Kind: ast.ExprLog, Type: bt.Unit, Span: sp, X: d.expr(m["log"], types.NoTypeID)}
	}
	return d.recovery(n)
}

func (d *decoder) binary(n *yaml.Node, form string, op ast.Op, want types.TypeID) *ast.Expr {
	m := d.fields(n, form)
	operands := d.seq(m[form])
	if len(operands) != 2 {
		d.errorf(n, "%s takes two operands", form)
		return d.recovery(n)
	}
	e := &ast.Expr{Kind: ast.ExprBinary, Span: d.span(n), Op: op}
	switch {
	case op == ast.OpLogicalAnd || op == ast.OpLogicalOr:
		e.X = d.typed(operands[0], d.bt.Bool)
		e.Y = d.typed(operands[1], d.bt.Bool)
		e.Type = d.bt.Bool
		return e
	case op.IsComparison():
		e.X = d.expr(operands[0], types.NoTypeID)
		e.Y = d.expr(operands[1], d.hint(e.X))
		d.unify(e.X, e.Y)
		e.Type = d.bt.Bool
	default:
		e.X = d.expr(operands[0], want)
		h := want
		if !d.isInt(h) {
			h = d.hint(e.X)
		}
		e.Y = d.expr(operands[1], h)
		d.unify(e.X, e.Y)
		e.Type = e.X.Type
		_, xu := d.untyped[e.X]
		_, yu := d.untyped[e.Y]
		if xu && yu {
			d.untyped[e] = n
		}
	}
	if e.X.Type != e.Y.Type && e.X.Type != d.bt.ErrorRecovery && e.Y.Type != d.bt.ErrorRecovery {
		d.errorf(n, "operands of %s have types %s and %s", form, d.tin.String(e.X.Type), d.tin.String(e.Y.Type))
	}
	return e
}

func (d *decoder) structLit(n *yaml.Node, m map[string]*yaml.Node) *ast.Expr {
	name := d.str(m["struct"], "a struct name")
	t, ok := d.named[name]
	info, isStruct := d.tin.StructInfo(t)
	if !ok || !isStruct {
		d.errorf(m["struct"], "%s is not a struct", name)
		return d.recovery(n)
	}
	fn := d.required(m, n, "fields")
	if fn == nil {
		return d.recovery(n)
	}
	if fn.Kind != yaml.MappingNode {
		d.errorf(fn, "expected a mapping of field values")
		return d.recovery(n)
	}
	e := &ast.Expr{Kind: ast.ExprStruct, Type: t, Span: d.span(n)}
	seen := make(map[string]bool, len(info.Fields))
	for i := 0; i+1 < len(fn.Content); i += 2 {
		k, v := fn.Content[i], fn.Content[i+1]
		idx, ok := d.tin.FieldIndex(t, k.Value)
		if !ok {
			d.errorf(k, "%s has no field %s", name, k.Value)
			continue
		}
		seen[k.Value] = true
		e.Fields = append(e.Fields, ast.FieldInit{Name: k.Value, Value: d.typed(v, info.Fields[idx].Type)})
	}
	for _, f := range info.Fields {
		if !seen[f.Name] {
			d.errorf(fn, "missing field %s of %s", f.Name, name)
		}
	}
	return e
}

func (d *decoder) tupleLit(n *yaml.Node, m map[string]*yaml.Node, want types.TypeID) *ast.Expr {
	items := d.seq(m["tuple"])
	info, ok := d.tin.TupleInfo(want)
	if !ok || len(info.Elems) != len(items) {
		info.Elems = nil
	}
	e := &ast.Expr{Kind: ast.ExprTuple, Span: d.span(n)}
	elemTypes := make([]types.TypeID, len(items))
	for i, it := range items {
		var el *ast.Expr
		if info.Elems != nil {
			el = d.typed(it, info.Elems[i])
		} else {
			el = d.expr(it, types.NoTypeID)
		}
		e.Elems = append(e.Elems, el)
		elemTypes[i] = el.Type
	}
	e.Type = d.tin.Tuple(elemTypes)
	return e
}

func (d *decoder) arrayLit(n *yaml.Node, m map[string]*yaml.Node, want types.TypeID) *ast.Expr {
	items := d.seq(m["array"])
	elem := types.NoTypeID
	switch {
	case m["elem"] != nil:
		elem = d.typeOf(m["elem"])
	case d.tin.KindOf(want) == types.KindArray:
		elem = d.tin.MustLookup(want).Elem
	}
	e := &ast.Expr{Kind: ast.ExprArray, Span: d.span(n)}
	for _, it := range items {
		e.Elems = append(e.Elems, d.expr(it, elem))
	}
	if elem == types.NoTypeID {
		for _, el := range e.Elems {
			if h := d.hint(el); h != types.NoTypeID {
				elem = h
				break
			}
		}
	}
	if elem == types.NoTypeID {
		if len(items) == 0 {
			d.errorf(n, "an empty array needs its elem type")
			return d.recovery(n)
		}
		elem = d.bt.U64
	}
	for i, el := range e.Elems {
		d.retype(el, elem)
		d.expect(items[i], el, elem)
	}
	size, err := safecast.Conv[uint32](len(items))
	if err != nil {
		d.errorf(n, "array literal is too long: %v", err)
		return d.recovery(n)
	}
	e.Type = d.tin.Array(elem, size)
	return e
}

// enumLit decodes Enum::Variant, or a bare variant of the expected enum.
func (d *decoder) enumLit(at *yaml.Node, ref string, payload *yaml.Node, want types.TypeID) *ast.Expr {
	t, variant, ok := d.variantRef(at, ref, want)
	if !ok {
		return d.recovery(at)
	}
	e := &ast.Expr{Kind: ast.ExprEnum, Type: t, Span: d.span(at), Name: variant.Name}
	switch {
	case payload != nil:
		e.X = d.typed(payload, variant.Type)
	case variant.Type != d.bt.Unit:
		d.errorf(at, "variant %s carries a %s payload", ref, d.tin.String(variant.Type))
	}
	return e
}

func (d *decoder) variantRef(at *yaml.Node, ref string, want types.TypeID) (types.TypeID, types.EnumVariant, bool) {
	t := want
	name := ref
	if enumName, v, ok := strings.Cut(ref, "::"); ok {
		t, name = d.named[enumName], v
	}
	info, ok := d.tin.EnumInfo(t)
	if !ok {
		d.errorf(at, "cannot resolve the enum of %s", ref)
		return types.NoTypeID, types.EnumVariant{}, false
	}
	for _, v := range info.Variants {
		if v.Name == name {
			return t, v, true
		}
	}
	d.errorf(at, "%s has no variant %s", info.Name, name)
	return types.NoTypeID, types.EnumVariant{}, false
}

// memberType is the type reached by one step of a field path: a struct
// field name, or a tuple or array index.
func (d *decoder) memberType(t types.TypeID, seg string) (types.TypeID, bool) {
	switch d.tin.KindOf(t) {
	case types.KindStruct:
		info, _ := d.tin.StructInfo(t)
		for _, f := range info.Fields {
			if f.Name == seg {
				return f.Type, true
			}
		}
	case types.KindTuple:
		info, _ := d.tin.TupleInfo(t)
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(info.Elems) {
			return info.Elems[i], true
		}
	case types.KindArray:
		tt := d.tin.MustLookup(t)
		if i, err := strconv.ParseUint(seg, 10, 32); err == nil && i < uint64(tt.Count) {
			return tt.Elem, true
		}
	}
	return types.NoTypeID, false
}

// storageType resolves a storage path through the longest declared field
// that prefixes it.
func (d *decoder) storageType(path []string) (types.TypeID, bool) {
	for k := len(path); k > 0; k-- {
		t, ok := d.storage[strings.Join(path[:k], ".")]
		if !ok {
			continue
		}
		for _, seg := range path[k:] {
			if t, ok = d.memberType(t, seg); !ok {
				return types.NoTypeID, false
			}
		}
		return t, true
	}
	return types.NoTypeID, false
}

func (d *decoder) access(n *yaml.Node, form string, m map[string]*yaml.Node) *ast.Expr {
	x := d.expr(d.required(m, n, "of"), types.NoTypeID)
	if x.Type == d.bt.ErrorRecovery {
		return d.recovery(n)
	}
	e := &ast.Expr{Span: d.span(n), X: x}
	switch form {
	case "field":
		e.Kind = ast.ExprField
		e.Name = d.str(m["field"], "a field name")
		if d.tin.KindOf(x.Type) != types.KindStruct {
			d.errorf(n, "field access on %s", d.tin.String(x.Type))
			return d.recovery(n)
		}
		t, ok := d.memberType(x.Type, e.Name)
		if !ok {
			d.errorf(m["field"], "%s has no field %s", d.tin.String(x.Type), e.Name)
			return d.recovery(n)
		}
		e.Type = t
	case "at":
		e.Kind = ast.ExprTupleIndex
		if err := m["at"].Decode(&e.Index); err != nil {
			d.errorf(m["at"], "expected a tuple index")
			return d.recovery(n)
		}
		if d.tin.KindOf(x.Type) != types.KindTuple {
			d.errorf(n, "tuple index on %s", d.tin.String(x.Type))
			return d.recovery(n)
		}
		t, ok := d.memberType(x.Type, strconv.FormatUint(e.Index, 10))
		if !ok {
			d.errorf(m["at"], "index %d out of range for %s", e.Index, d.tin.String(x.Type))
			return d.recovery(n)
		}
		e.Type = t
	case "index":
		e.Kind = ast.ExprArrayIndex
		e.Y = d.typed(m["index"], d.bt.U64)
		if d.tin.KindOf(x.Type) != types.KindArray {
			d.errorf(n, "array index on %s", d.tin.String(x.Type))
			return d.recovery(n)
		}
		e.Type = d.tin.MustLookup(x.Type).Elem
	}
	return e
}

func (d *decoder) ifExpr(n *yaml.Node, m map[string]*yaml.Node, want types.TypeID) *ast.Expr {
	e := &ast.Expr{Kind: ast.ExprIf, Type: d.bt.Unit, Span: d.span(n)}
	e.X = d.typed(m["if"], d.bt.Bool)
	e.Then = d.expr(d.required(m, n, "then"), want)
	if m["else"] == nil {
		return e
	}
	h := want
	if h == types.NoTypeID {
		h = d.hint(e.Then)
	}
	e.Else = d.expr(m["else"], h)
	d.unify(e.Then, e.Else)
	e.Type = e.Then.Type
	if e.Type == d.bt.Unit {
		// a branch that never completes, like a return, leaves the other's type
		e.Type = e.Else.Type
	}
	return e
}

func (d *decoder) match(n *yaml.Node, m map[string]*yaml.Node, want types.TypeID) *ast.Expr {
	e := &ast.Expr{Kind: ast.ExprMatch, Type: types.NoTypeID, Span: d.span(n)}
	e.X = d.expr(m["match"], types.NoTypeID)
	if tn := m["type"]; tn != nil {
		e.Type = d.typeOf(tn)
		want = e.Type
	}
	for _, an := range d.seq(d.required(m, n, "arms")) {
		am := d.fields(an, "pat", "body")
		if am == nil {
			continue
		}
		d.push()
		pat := d.pattern(d.required(am, an, "pat"), e.X.Type)
		body := d.expr(d.required(am, an, "body"), want)
		d.pop()
		if e.Type == types.NoTypeID && body.Type != d.bt.Unit {
			e.Type = body.Type
			want = d.hint(body)
		}
		e.Arms = append(e.Arms, ast.MatchArm{Pattern: pat, Body: body})
	}
	if e.Type == types.NoTypeID {
		e.Type = d.bt.Unit
	}
	return e
}

func (d *decoder) args(n *yaml.Node, params []ast.Param) []*ast.Expr {
	var out []*ast.Expr
	for i, a := range d.seq(n) {
		if i < len(params) {
			out = append(out, d.typed(a, params[i].Type))
		} else {
			out = append(out, d.expr(a, types.NoTypeID))
		}
	}
	return out
}

func (d *decoder) call(n *yaml.Node, m map[string]*yaml.Node) *ast.Expr {
	for _, k := range []string{"coins", "asset", "gas"} {
		if m[k] != nil {
			d.errorf(m[k], "%s only applies to contract calls", k)
		}
	}
	name := d.str(m["call"], "a function name")
	id, ok := d.fns[name]
	if !ok {
		d.errorf(m["call"], "unknown function %s", name)
		return d.recovery(n)
	}
	decl := d.prog.Decls.Fn(id)
	if decl.IsEntry {
		d.errorf(m["call"], "entry function %s cannot be called", name)
		return d.recovery(n)
	}
	return &ast.Expr{Kind: ast.ExprCall, Type: decl.Ret, Span: d.span(n), Fn: id, Elems: d.args(m["args"], decl.Params)}
}

func (d *decoder) contractCall(n *yaml.Node, m map[string]*yaml.Node) *ast.Expr {
	caller := d.expr(m["on"], types.NoTypeID)
	abiName, ok := d.tin.CallerABI(caller.Type)
	if !ok {
		d.errorf(m["on"], "calls need a contract caller, found %s", d.tin.String(caller.Type))
		return d.recovery(n)
	}
	abi, _ := d.prog.Decls.AbiByName(abiName)
	name := d.str(m["call"], "a method name")
	method, ok := abi.Method(name)
	if !ok {
		d.errorf(m["call"], "ABI %s has no method %s", abiName, name)
		return d.recovery(n)
	}
	cc := &ast.ContractCallExpr{Abi: abiName, Method: name}
	if c := m["coins"]; c != nil {
		cc.Params.Coins = d.typed(c, d.bt.U64)
	}
	if a := m["asset"]; a != nil {
		cc.Params.AssetID = d.typed(a, d.bt.B256)
	}
	if g := m["gas"]; g != nil {
		cc.Params.Gas = d.typed(g, d.bt.U64)
	}
	elems := append([]*ast.Expr{caller}, d.args(m["args"], method.Params)...)
	return &ast.Expr{Kind: ast.ExprContractCall, Type: method.Ret, Span: d.span(n), Elems: elems, ContractCall: cc}
}
