package matcher

import (
	"errors"
	"testing"

	"swayc/internal/ast"
	"swayc/internal/source"
	"swayc/internal/types"
)

func fixture() (*types.Interner, types.TypeID, types.TypeID) {
	in := types.NewInterner()
	b := in.Builtins()
	point := in.RegisterStruct("Point", source.Span{}, []types.StructField{
		{Name: "x", Type: b.U64},
		{Name: "y", Type: b.Bool},
	})
	opt := in.RegisterEnum("Opt", source.Span{}, []types.EnumVariant{
		{Name: "Some", Type: point},
		{Name: "None", Type: b.Unit},
	})
	return in, point, opt
}

func TestDesugar_Wildcard(t *testing.T) {
	in, point, _ := fixture()
	res, err := Desugar(in, point, &ast.Pattern{Kind: ast.PatWildcard})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Irrefutable() || len(res.Bindings) != 0 {
		t.Fatalf("wildcard should be irrefutable without bindings: %+v", res)
	}
}

func TestDesugar_StructFields(t *testing.T) {
	in, point, _ := fixture()
	pat := &ast.Pattern{Kind: ast.PatStruct, Fields: []ast.FieldPattern{
		{Name: "y", Pattern: &ast.Pattern{Kind: ast.PatLit, Lit: ast.Lit{Kind: ast.LitBool, Bool: true}}},
		{Name: "x", Pattern: &ast.Pattern{Kind: ast.PatVar, Name: "px"}},
	}}
	res, err := Desugar(in, point, pat)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Requirements) != 1 || len(res.Bindings) != 1 {
		t.Fatalf("got %+v", res)
	}
	req := res.Requirements[0]
	if len(req.Path) != 1 || req.Path[0].Kind != ProjStructField || req.Path[0].Index != 1 {
		t.Fatalf("requirement path %v", req.Path)
	}
	bind := res.Bindings[0]
	if bind.Name != "px" || bind.Path[0].Index != 0 || bind.Type != in.Builtins().U64 {
		t.Fatalf("binding %+v", bind)
	}
}

func TestDesugar_EnumTagAndPayload(t *testing.T) {
	in, _, opt := fixture()
	pat := &ast.Pattern{Kind: ast.PatEnum, Name: "Some", Payload: &ast.Pattern{
		Kind: ast.PatStruct,
		Fields: []ast.FieldPattern{
			{Name: "x", Pattern: &ast.Pattern{Kind: ast.PatLit, Lit: ast.Lit{Kind: ast.LitUint, Uint: 7}}},
		},
	}}
	res, err := Desugar(in, opt, pat)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Requirements) != 2 {
		t.Fatalf("requirements %+v", res.Requirements)
	}
	tag := res.Requirements[0]
	if tag.Path[0].Kind != ProjEnumTag || tag.Value.Uint != 0 {
		t.Fatalf("tag requirement %+v", tag)
	}
	field := res.Requirements[1]
	if len(field.Path) != 2 || field.Path[0].Kind != ProjEnumPayload || field.Path[1].Kind != ProjStructField {
		t.Fatalf("payload requirement %+v", field.Path)
	}
	if !ContainsEnum(pat) {
		t.Fatal("ContainsEnum missed the enum pattern")
	}
}

func TestDesugar_Errors(t *testing.T) {
	in, point, opt := fixture()
	_, err := Desugar(in, opt, &ast.Pattern{Kind: ast.PatEnum, Name: "Missing"})
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("err = %v", err)
	}
	_, err = Desugar(in, point, &ast.Pattern{Kind: ast.PatTuple, Elems: []*ast.Pattern{{Kind: ast.PatWildcard}}})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v", err)
	}
}
