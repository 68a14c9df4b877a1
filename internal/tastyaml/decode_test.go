package tastyaml

import (
	"errors"
	"strings"
	"testing"

	"swayc/internal/ast"
	"swayc/internal/ir"
	"swayc/internal/irgen"
	"swayc/internal/testkit"
)

const shapesDoc = `name: shapes
kind: script
structs:
  - name: Point
    fields:
      - {name: x, type: u64}
      - {name: y, type: u64}
enums:
  - name: Shape
    variants:
      - {name: Empty}
      - {name: Square, type: u64}
      - {name: Rect, type: Point}
functions:
  - name: sum
    params: [{name: n, type: u64}]
    ret: u64
    body:
      - {let: i, mut: true, value: 0}
      - {let: acc, mut: true, value: 0}
      - while: {lt: [i, n]}
        body:
          - {set: i, value: {add: [i, 1]}}
          - {set: acc, value: {add: [acc, i]}}
      - acc
  - name: area
    params: [{name: s, type: Shape}]
    ret: u64
    body:
      match: s
      arms:
        - {pat: Empty, body: 0}
        - {pat: {enum: Square, payload: side}, body: {mul: [side, side]}}
        - pat: {enum: "Shape::Rect", payload: {struct: {x: w, y: h}}}
          body: {mul: [w, h]}
  - name: main
    entry: true
    ret: u64
    body:
      - let: p
        value: {struct: Point, fields: {x: 3, y: 4}}
      - add:
          - {call: sum, args: [4]}
          - {call: area, args: [{enum: "Shape::Rect", payload: p}]}
`

const counterDoc = `kind: contract
storage:
  - {name: count, type: u64, init: 5}
  - {name: limits, namespace: cfg, type: "(u64, bool)", init: {tuple: [10, true]}}
functions:
  - name: bump
    entry: true
    params: [{name: by, type: u64}]
    ret: u64
    body:
      - if: {store: 0}
        then: 0
      - store: count
        value: {add: [{storage: count}, by]}
      - {storage: count}
  - name: limit
    entry: true
    ret: u64
    body: {storage: cfg.limits.0}
`

func build(t *testing.T, prog *ast.Program) *ir.Interpreter {
	t.Helper()
	res := irgen.Build(prog)
	if !res.Succeeded() {
		t.Fatalf("irgen: %v", res.Errors)
	}
	if err := ir.Verify(res.Value, ir.VerifyOptions{Strict: true}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return ir.NewInterpreter(res.Value)
}

func decode(t *testing.T, doc string) *ast.Program {
	t.Helper()
	prog, err := Decode("test.yaml", []byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return prog
}

func TestDecode_ScriptRuns(t *testing.T) {
	prog := decode(t, shapesDoc)
	if prog.Name != "shapes" || prog.Kind != ast.ProgramScript {
		t.Fatalf("program = %s %v", prog.Name, prog.Kind)
	}
	for _, id := range prog.Decls.FnIDs() {
		if err := testkit.CheckSpanInvariants(prog, id); err != nil {
			t.Error(err)
		}
	}

	it := build(t, prog)
	for _, tc := range []struct{ n, want uint64 }{{0, 0}, {4, 10}, {10, 55}} {
		got, err := it.Run("sum", []uint64{tc.n})
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != tc.want {
			t.Errorf("sum(%d) = %d, want %d", tc.n, got[0], tc.want)
		}
	}
	got, err := it.Run("main")
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 22 {
		t.Errorf("main() = %d, want 22", got[0])
	}
}

func TestDecode_ContractStorage(t *testing.T) {
	doc := strings.Replace(counterDoc, "      - if: {store: 0}\n        then: 0\n", "", 1)
	prog := decode(t, doc)
	if prog.Name != "test" {
		t.Errorf("default name = %q, want the file base name", prog.Name)
	}
	if prog.Decls.Storage == nil || len(prog.Decls.Storage.Fields) != 2 {
		t.Fatalf("storage = %+v", prog.Decls.Storage)
	}
	if ns := prog.Decls.Storage.Fields[1].Namespace; len(ns) != 1 || ns[0] != "cfg" {
		t.Errorf("namespace = %v, want [cfg]", ns)
	}

	it := build(t, prog)
	for _, want := range []uint64{7, 9} {
		got, err := it.Run("bump", []uint64{2})
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != want {
			t.Errorf("bump(2) = %d, want %d", got[0], want)
		}
	}
	got, err := it.Run("limit")
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 10 {
		t.Errorf("limit() = %d, want 10", got[0])
	}
}

func TestDecode_UntypedLiterals(t *testing.T) {
	prog := decode(t, `functions:
  - name: f
    params: [{name: x, type: u8}]
    ret: u8
    body: {add: [x, {mul: [2, 3]}]}
  - name: g
    ret: u16
    body: {add: [1, 2]}
  - name: h
    params: [{name: x, type: u8}]
    ret: bool
    body: {lt: [7, x]}
  - name: k
    ret: u64
    body:
      - {let: v, value: 1}
      - v
`)
	bt := prog.Types.Builtins()
	tail := func(name string) *ast.Expr {
		id, ok := prog.Decls.FnByName(name)
		if !ok {
			t.Fatalf("no function %s", name)
		}
		return prog.Decls.Fn(id).Body.Tail
	}
	if e := tail("f"); e.Type != bt.U8 || e.Y.Type != bt.U8 || e.Y.X.Type != bt.U8 || e.Y.Y.Type != bt.U8 {
		t.Error("f: literal operands were not typed u8")
	}
	if e := tail("g"); e.Type != bt.U16 || e.X.Type != bt.U16 {
		t.Error("g: literals were not typed by the return type")
	}
	if e := tail("h"); e.Type != bt.Bool || e.X.Type != bt.U8 {
		t.Error("h: the literal did not take the type of the other operand")
	}
	if e := tail("k"); e.Type != bt.U64 {
		t.Errorf("k: an unconstrained literal is %s, want u64", prog.Types.String(e.Type))
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		line int
		msg  string
	}{
		{
			name: "unknown key",
			doc:  "name: x\nfunctions:\n  - name: f\n    bodyy: 1\n",
			line: 4,
			msg:  `unknown key "bodyy"`,
		},
		{
			name: "literal overflows u8",
			doc:  "functions:\n  - name: f\n    body:\n      - {let: v, type: u8, value: 300}\n",
			line: 4,
			msg:  "does not fit u8",
		},
		{
			name: "unknown name",
			doc:  "functions:\n  - name: f\n    ret: u64\n    body: [missing]\n",
			line: 4,
			msg:  `unknown name "missing"`,
		},
		{
			name: "type mismatch",
			doc:  "functions:\n  - name: f\n    ret: u64\n    body:\n      - {let: v, type: bool, value: 1}\n      - 0\n",
			line: 5,
			msg:  "expected bool",
		},
		{
			name: "statement used as a value",
			doc:  counterDoc,
			line: 11,
			msg:  "unknown expression form",
		},
		{
			name: "unknown type",
			doc:  "structs:\n  - name: P\n    fields: [{name: a, type: Q}]\n",
			line: 3,
			msg:  `unknown type "Q"`,
		},
		{
			name: "call to entry function",
			doc:  "functions:\n  - name: main\n    entry: true\n    ret: u64\n    body: [1]\n  - name: f\n    ret: u64\n    body:\n      - {call: main}\n",
			line: 9,
			msg:  "entry function main cannot be called",
		},
		{
			name: "missing struct field",
			doc:  "structs:\n  - name: P\n    fields: [{name: a, type: u64}, {name: b, type: u64}]\nfunctions:\n  - name: f\n    ret: P\n    body: {struct: P, fields: {a: 1}}\n",
			line: 7,
			msg:  "missing field b of P",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("bad.yaml", []byte(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			var de *Error
			if !errors.As(err, &de) {
				t.Fatalf("error %v is not a decode error", err)
			}
			if de.Line != tt.line {
				t.Errorf("line = %d, want %d (%v)", de.Line, tt.line, err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q lacks %q", err, tt.msg)
			}
		})
	}
}

func TestDecode_TooManyErrors(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("functions:\n")
	for range maxErrors + 10 {
		sb.WriteString("  - {name: f, body: nope, extra: 1}\n")
	}
	_, err := Decode("many.yaml", []byte(sb.String()))
	if err == nil {
		t.Fatal("expected errors")
	}
	if n := strings.Count(err.Error(), "\n") + 1; n != maxErrors {
		t.Errorf("errors reported = %d, want %d", n, maxErrors)
	}
}
