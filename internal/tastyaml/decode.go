// Package tastyaml decodes fully typed programs from YAML.
//
// A document lists the nominal types, ABIs, constants, storage fields and
// functions of one compilation unit:
//
//	name: counter
//	kind: contract
//	structs:
//	  - name: Point
//	    fields: [{name: x, type: u64}, {name: y, type: u64}]
//	storage:
//	  - {name: count, type: u64, init: 0}
//	functions:
//	  - name: bump
//	    entry: true
//	    ret: u64
//	    body:
//	      - store: count
//	        value: {add: [{storage: count}, 1]}
//	      - {storage: count}
//
// A block is a sequence of statements; a trailing expression is its value.
// Expression types are filled in from the declarations they refer to, and
// integer literals without a suffix take the type their context expects.
// Spans point into the YAML document, so every diagnostic carries the line
// it came from.
package tastyaml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"fortio.org/safecast"
	"gopkg.in/yaml.v3"

	"swayc/internal/ast"
	"swayc/internal/source"
	"swayc/internal/types"
)

// Error is a decode error at a position of the YAML document.
type Error struct {
	Path   string
	Line   int
	Column int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Msg)
}

// maxErrors bounds the errors collected before decoding gives up.
const maxErrors = 32

var errTooManyErrors = errors.New("too many errors")

type decoder struct {
	path string
	file *source.File
	fid  source.FileID
	prog *ast.Program
	tin  *types.Interner
	bt   types.Builtins
	errs []error

	named   map[string]types.TypeID
	fns     map[string]ast.FnID
	consts  map[string]ast.ConstID
	storage map[string]types.TypeID

	scopes  []map[string]types.TypeID
	ret     types.TypeID
	untyped map[*ast.Expr]*yaml.Node
	ends    map[*yaml.Node]uint32
}

// Load reads and decodes the program at path. The raw document is returned
// alongside for cache keys.
func Load(path string) (*ast.Program, []byte, error) {
	// #nosec G304 -- path is provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	prog, err := Decode(path, data)
	return prog, data, err
}

// Decode decodes data. path names the document in spans and errors. Every
// error found is returned joined; each one is an *Error.
func Decode(path string, data []byte) (prog *ast.Program, err error) {
	files := source.NewFileSet()
	fid := files.Add(path, data, source.FileVirtual)
	file := files.Get(fid)

	var doc yaml.Node
	if err := yaml.Unmarshal(file.Content, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, &Error{Path: path, Line: 1, Column: 1, Msg: "expected a single YAML document"}
	}

	tin := types.NewInterner()
	d := &decoder{
		path:    path,
		file:    file,
		fid:     fid,
		tin:     tin,
		bt:      tin.Builtins(),
		named:   make(map[string]types.TypeID),
		fns:     make(map[string]ast.FnID),
		consts:  make(map[string]ast.ConstID),
		storage: make(map[string]types.TypeID),
		untyped: make(map[*ast.Expr]*yaml.Node),
		ends:    make(map[*yaml.Node]uint32),
	}
	d.prog = &ast.Program{
		Name:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Types: tin,
		Decls: ast.NewDeclTable(),
		Files: files,
	}

	defer func() {
		if r := recover(); r != nil {
			if r != errTooManyErrors { //nolint:errorlint // sentinel identity
				panic(r)
			}
			prog, err = nil, errors.Join(d.errs...)
		}
	}()
	d.document(doc.Content[0])
	if len(d.errs) > 0 {
		return nil, errors.Join(d.errs...)
	}
	return d.prog, nil
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) {
	d.errs = append(d.errs, &Error{Path: d.path, Line: n.Line, Column: n.Column, Msg: fmt.Sprintf(format, args...)})
	if len(d.errs) >= maxErrors {
		panic(errTooManyErrors)
	}
}

// fields splits a mapping into its values by key and reports keys outside
// allowed.
func (d *decoder) fields(n *yaml.Node, allowed ...string) map[string]*yaml.Node {
	if n.Kind != yaml.MappingNode {
		d.errorf(n, "expected a mapping")
		return nil
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch {
		case !slices.Contains(allowed, k.Value):
			d.errorf(k, "unknown key %q (expected one of %s)", k.Value, strings.Join(allowed, ", "))
		case out[k.Value] != nil:
			d.errorf(k, "duplicate key %q", k.Value)
		default:
			out[k.Value] = v
		}
	}
	return out
}

func (d *decoder) seq(n *yaml.Node) []*yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		d.errorf(n, "expected a sequence")
		return nil
	}
	return n.Content
}

func (d *decoder) str(n *yaml.Node, what string) string {
	if n == nil {
		return ""
	}
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		d.errorf(n, "expected %s", what)
		return ""
	}
	return n.Value
}

func (d *decoder) boolean(n *yaml.Node) bool {
	if n == nil {
		return false
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		d.errorf(n, "expected true or false")
	}
	return b
}

// required reports a missing key at the mapping that lacks it.
func (d *decoder) required(m map[string]*yaml.Node, parent *yaml.Node, key string) *yaml.Node {
	n := m[key]
	if n == nil {
		d.errorf(parent, "missing %q", key)
	}
	return n
}

// span covers n and everything nested in it.
func (d *decoder) span(n *yaml.Node) source.Span {
	if n == nil {
		return source.Span{}
	}
	start := d.offset(n.Line, n.Column)
	return source.Span{File: d.fid, Start: start, End: max(start, d.end(n))}
}

func (d *decoder) offset(line, col int) uint32 {
	size := safecast.MustConv[uint32](len(d.file.Content))
	if line < 1 || col < 1 {
		return 0
	}
	var start uint32
	if line > 1 {
		if line-2 >= len(d.file.LineIdx) {
			return size
		}
		start = d.file.LineIdx[line-2] + 1
	}
	c, err := safecast.Conv[uint32](col - 1)
	if err != nil {
		return size
	}
	return min(size, start+c)
}

func (d *decoder) end(n *yaml.Node) uint32 {
	if e, ok := d.ends[n]; ok {
		return e
	}
	e := d.offset(n.Line, n.Column)
	if n.Kind == yaml.ScalarNode {
		e = min(safecast.MustConv[uint32](len(d.file.Content)), e+safecast.MustConv[uint32](len(n.Value)))
	}
	for _, c := range n.Content {
		e = max(e, d.end(c))
	}
	d.ends[n] = e
	return e
}

func (d *decoder) document(root *yaml.Node) {
	m := d.fields(root, "name", "kind", "structs", "enums", "abis", "consts", "storage", "functions")
	if m == nil {
		return
	}
	if n := m["name"]; n != nil {
		d.prog.Name = d.str(n, "a program name")
	}
	d.prog.Kind = ast.ProgramScript
	if n := m["kind"]; n != nil {
		switch n.Value {
		case "script":
		case "contract":
			d.prog.Kind = ast.ProgramContract
		case "predicate":
			d.prog.Kind = ast.ProgramPredicate
		case "library":
			d.prog.Kind = ast.ProgramLibrary
		default:
			d.errorf(n, "unknown program kind %q", n.Value)
		}
	}

	d.nominals(m["structs"], m["enums"])
	d.abis(m["abis"])
	d.constDecls(m["consts"])
	d.storageDecls(m["storage"])
	d.functions(m["functions"])
}

// nominals declares every struct and enum before defining any, so types
// may refer to each other in any order.
func (d *decoder) nominals(structs, enums *yaml.Node) {
	type pending struct {
		id   types.TypeID
		node map[string]*yaml.Node
		at   *yaml.Node
	}
	var ss, es []pending
	declare := func(n *yaml.Node, key string, decl func(string, source.Span) types.TypeID) (pending, bool) {
		m := d.fields(n, "name", key)
		if m == nil {
			return pending{}, false
		}
		name := d.str(d.required(m, n, "name"), "a type name")
		if name == "" {
			return pending{}, false
		}
		if _, dup := d.named[name]; dup || builtinType(d.bt, name) != types.NoTypeID {
			d.errorf(m["name"], "type %s is already declared", name)
			return pending{}, false
		}
		id := decl(name, d.span(n))
		d.named[name] = id
		return pending{id: id, node: m, at: n}, true
	}
	for _, n := range d.seq(structs) {
		if p, ok := declare(n, "fields", d.tin.DeclareStruct); ok {
			ss = append(ss, p)
		}
	}
	for _, n := range d.seq(enums) {
		if p, ok := declare(n, "variants", d.tin.DeclareEnum); ok {
			es = append(es, p)
		}
	}
	for _, p := range ss {
		var fields []types.StructField
		for _, f := range d.seq(p.node["fields"]) {
			name, t := d.member(f, true)
			fields = append(fields, types.StructField{Name: name, Type: t})
		}
		d.tin.DefineStruct(p.id, fields)
	}
	for _, p := range es {
		var variants []types.EnumVariant
		for _, v := range d.seq(d.required(p.node, p.at, "variants")) {
			name, t := d.member(v, false)
			variants = append(variants, types.EnumVariant{Name: name, Type: t})
		}
		d.tin.DefineEnum(p.id, variants)
	}
}

// member decodes {name, type}. A variant without a type carries unit.
func (d *decoder) member(n *yaml.Node, typeRequired bool) (string, types.TypeID) {
	m := d.fields(n, "name", "type")
	if m == nil {
		return "", d.bt.ErrorRecovery
	}
	name := d.str(d.required(m, n, "name"), "a name")
	if m["type"] == nil && !typeRequired {
		return name, d.bt.Unit
	}
	return name, d.typeOf(d.required(m, n, "type"))
}

func (d *decoder) params(n *yaml.Node) []ast.Param {
	var out []ast.Param
	for _, p := range d.seq(n) {
		name, t := d.member(p, true)
		out = append(out, ast.Param{Name: name, Type: t})
	}
	return out
}

func (d *decoder) retType(n *yaml.Node) types.TypeID {
	if n == nil {
		return d.bt.Unit
	}
	return d.typeOf(n)
}

func (d *decoder) abis(n *yaml.Node) {
	for _, an := range d.seq(n) {
		m := d.fields(an, "name", "methods")
		if m == nil {
			continue
		}
		abi := ast.AbiDecl{Name: d.str(d.required(m, an, "name"), "an ABI name"), Span: d.span(an)}
		if _, dup := d.prog.Decls.AbiByName(abi.Name); dup {
			d.errorf(an, "ABI %s is already declared", abi.Name)
			continue
		}
		for _, mn := range d.seq(m["methods"]) {
			mm := d.fields(mn, "name", "params", "ret")
			if mm == nil {
				continue
			}
			abi.Methods = append(abi.Methods, ast.AbiMethod{
				Name:   d.str(d.required(mm, mn, "name"), "a method name"),
				Params: d.params(mm["params"]),
				Ret:    d.retType(mm["ret"]),
			})
		}
		d.prog.Decls.AddAbi(abi)
	}
}

func (d *decoder) constDecls(n *yaml.Node) {
	for _, cn := range d.seq(n) {
		m := d.fields(cn, "name", "type", "value")
		if m == nil {
			continue
		}
		name := d.str(d.required(m, cn, "name"), "a constant name")
		t := d.typeOf(d.required(m, cn, "type"))
		v := d.typed(d.required(m, cn, "value"), t)
		if _, dup := d.consts[name]; dup {
			d.errorf(cn, "constant %s is already declared", name)
			continue
		}
		d.consts[name] = d.prog.Decls.AddConst(ast.ConstDecl{Name: name, Span: d.span(cn), Type: t, Value: v})
	}
}

func (d *decoder) storageDecls(n *yaml.Node) {
	if n == nil {
		return
	}
	sd := &ast.StorageDecl{Span: d.span(n)}
	for _, fn := range d.seq(n) {
		m := d.fields(fn, "name", "namespace", "type", "init", "key")
		if m == nil {
			continue
		}
		f := ast.StorageField{
			Name: d.str(d.required(m, fn, "name"), "a storage field name"),
			Span: d.span(fn),
			Type: d.typeOf(d.required(m, fn, "type")),
		}
		if ns := m["namespace"]; ns != nil {
			f.Namespace = strings.Split(d.str(ns, "a dotted namespace"), ".")
		}
		if init := m["init"]; init != nil {
			f.Init = d.typed(init, f.Type)
		}
		if key := m["key"]; key != nil {
			f.Key = d.typed(key, d.bt.B256)
		}
		full := strings.Join(append(append([]string(nil), f.Namespace...), f.Name), ".")
		if _, dup := d.storage[full]; dup {
			// the planner reports colliding keys; a repeated path is ambiguous here
			d.errorf(fn, "storage field %s is already declared", full)
			continue
		}
		d.storage[full] = f.Type
		sd.Fields = append(sd.Fields, f)
	}
	d.prog.Decls.Storage = sd
}

// functions declares every signature before decoding any body, so calls may
// refer to functions declared later.
func (d *decoder) functions(n *yaml.Node) {
	type pending struct {
		id   ast.FnID
		body *yaml.Node
	}
	var todo []pending
	for _, fn := range d.seq(n) {
		m := d.fields(fn, "name", "entry", "abi", "params", "ret", "body")
		if m == nil {
			continue
		}
		decl := ast.FnDecl{
			Name:    d.str(d.required(m, fn, "name"), "a function name"),
			Span:    d.span(fn),
			Params:  d.params(m["params"]),
			Ret:     d.retType(m["ret"]),
			IsEntry: d.boolean(m["entry"]),
		}
		if a := m["abi"]; a != nil {
			decl.Abi = d.str(a, "an ABI name")
			if _, ok := d.prog.Decls.AbiByName(decl.Abi); !ok {
				d.errorf(a, "unknown ABI %s", decl.Abi)
			}
		}
		if _, dup := d.fns[decl.Name]; dup {
			d.errorf(fn, "function %s is already declared", decl.Name)
			continue
		}
		id := d.prog.Decls.AddFn(decl)
		d.fns[decl.Name] = id
		todo = append(todo, pending{id: id, body: d.required(m, fn, "body")})
	}
	for _, p := range todo {
		decl := d.prog.Decls.Fn(p.id)
		if p.body == nil {
			continue
		}
		d.ret = decl.Ret
		d.push()
		for _, prm := range decl.Params {
			d.bind(prm.Name, prm.Type)
		}
		decl.Body = d.body(p.body, decl.Ret)
		d.pop()
	}
}

func (d *decoder) push() { d.scopes = append(d.scopes, make(map[string]types.TypeID)) }
func (d *decoder) pop()  { d.scopes = d.scopes[:len(d.scopes)-1] }

func (d *decoder) bind(name string, t types.TypeID) {
	d.scopes[len(d.scopes)-1][name] = t
}

func (d *decoder) lookup(name string) (types.TypeID, bool) {
	for i := len(d.scopes) - 1; i >= 0; i-- {
		if t, ok := d.scopes[i][name]; ok {
			return t, true
		}
	}
	return types.NoTypeID, false
}
