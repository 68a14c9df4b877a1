package pipeline

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	"swayc/internal/asmgen"
	"swayc/internal/ast"
	"swayc/internal/calls"
	"swayc/internal/diag"
	"swayc/internal/observ"
	"swayc/internal/opt"
	"swayc/internal/source"
	"swayc/internal/testkit"
	"swayc/internal/trace"
	"swayc/internal/types"
)

func scriptProgram() *testkit.Builder {
	b := testkit.NewBuilder(ast.ProgramScript)
	u64 := b.B.U64
	a, c := b.Var("a", u64), b.Var("c", u64)
	add := b.Fn("add", []ast.Param{testkit.P("a", u64), testkit.P("c", u64)}, u64,
		testkit.Body(b.Bin(ast.OpAdd, a, c)))
	i := b.Var("i", u64)
	b.Entry("main", nil, u64, testkit.Body(i,
		testkit.LetMut("i", b.U64(0)),
		testkit.While(b.Bin(ast.OpLt, i, b.U64(10)), testkit.Body(nil,
			testkit.Assign("i", b.Call(add, i, b.U64(3))),
		)),
	))
	return b
}

func contractProgram() *testkit.Builder {
	b := testkit.NewBuilder(ast.ProgramContract)
	u64 := b.B.U64
	b.Storage(ast.StorageField{Name: "counter", Type: u64, Init: b.U64(7)})
	b.Entry("get", nil, u64, testkit.Body(b.StorageRead(u64, "counter")))
	b.Entry("set", []ast.Param{testkit.P("v", u64)}, b.B.Unit, testkit.Body(nil,
		testkit.StorageWrite(b.Var("v", u64), "counter"),
	))
	return b
}

func compile(t *testing.T, prog *ast.Program, opts Options) *Artifact {
	t.Helper()
	res := Compile(context.Background(), prog, opts)
	if !res.Succeeded() {
		t.Fatalf("compile failed: %v", res.Errors)
	}
	return res.Value
}

func errorCodes(ds []diag.Diagnostic) []diag.Code {
	out := make([]diag.Code, len(ds))
	for i, d := range ds {
		out[i] = d.Code
	}
	return out
}

func TestCompile_Script(t *testing.T) {
	timer := observ.NewTimer()
	art := compile(t, scriptProgram().Prog, Options{Timer: timer, VerifyStrict: true, Jobs: 2})

	if len(art.Bytecode) == 0 {
		t.Fatal("empty bytecode")
	}
	if len(art.Selectors) != 0 {
		t.Errorf("script has selectors: %v", art.Selectors)
	}
	for _, want := range []string{"fn add(", "fn main() -> u64 entry"} {
		if !strings.Contains(art.IRText, want) {
			t.Errorf("IR text lacks %q:\n%s", want, art.IRText)
		}
	}
	if !strings.Contains(art.AsmText, string(asmgen.FuncLabel("main"))) {
		t.Errorf("assembly lacks the main label:\n%s", art.AsmText)
	}
	if art.Listing == "" {
		t.Error("empty listing")
	}
	if len(art.Passes) == 0 || art.Passes[len(art.Passes)-1].Pass != "ret-demotion" {
		t.Errorf("pass stats = %v, want ret-demotion last", art.Passes)
	}

	var stages []string
	for _, p := range timer.Report().Phases {
		stages = append(stages, p.Name)
	}
	want := []string{StageLayout, StageIRGen, StageVerify, StageOptimize, StageVerify, StageCodegen, StageFinalize}
	if !slices.Equal(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}
}

func TestCompile_ContractSelectorsAndStorage(t *testing.T) {
	b := contractProgram()
	art := compile(t, b.Prog, Options{})

	u64 := b.B.U64
	want := []Selector{
		{Name: "get", Selector: calls.ComputeSelector(b.T, "get", nil).Uint32()},
		{Name: "set", Selector: calls.ComputeSelector(b.T, "set", []types.TypeID{u64}).Uint32()},
	}
	if !slices.Equal(art.Selectors, want) {
		t.Errorf("selectors = %v, want %v", art.Selectors, want)
	}
	if len(art.StorageSlots) != 1 {
		t.Fatalf("storage slots = %d, want 1", len(art.StorageSlots))
	}
	if art.StorageSlots[0].Value[7] != 7 {
		t.Errorf("counter slot = %x, want 7 in the first word", art.StorageSlots[0].Value)
	}
	if !strings.Contains(art.AsmText, "no method matches the selector") {
		t.Errorf("assembly lacks the selector dispatch fallback:\n%s", art.AsmText)
	}
}

func TestCompile_ReturnDemotionAlwaysRuns(t *testing.T) {
	art := compile(t, scriptProgram().Prog, Options{Passes: []string{"dce"}})
	var names []string
	for _, s := range art.Passes {
		if !slices.Contains(names, s.Pass) {
			names = append(names, s.Pass)
		}
	}
	if !slices.Equal(names, []string{"dce", "ret-demotion"}) {
		t.Errorf("passes run = %v", names)
	}
}

func TestCompile_SROASplitsLetAggregates(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	u64 := b.B.U64
	st := b.Struct("S", testkit.SF("a", u64), testkit.SF("b", u64))
	s := b.Var("s", st)
	b.Entry("main", nil, u64, testkit.Body(
		b.Bin(ast.OpAdd, b.Field(s, "a"), b.Field(s, "b")),
		testkit.Let("s", b.StructLit(st, testkit.F("a", b.U64(1)), testkit.F("b", b.U64(2)))),
	))
	art := compile(t, b.Prog, Options{VerifyStrict: true})

	want := opt.PassStat{Pass: "sroa", Func: "main", Changed: true}
	if !slices.Contains(art.Passes, want) {
		t.Errorf("pass stats = %v, want %v", art.Passes, want)
	}
	if !strings.Contains(art.IRText, "s.0") || !strings.Contains(art.IRText, "s.1") {
		t.Errorf("IR text lacks the split locals:\n%s", art.IRText)
	}
}

func TestCompile_Legacy(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	b.Entry("main", nil, b.B.U64, testkit.Body(b.Bin(ast.OpAdd, b.U64(2), b.U64(3))))
	art := compile(t, b.Prog, Options{Legacy: true})
	if art.IRText != "" {
		t.Errorf("legacy build produced IR:\n%s", art.IRText)
	}
	if len(art.Bytecode) == 0 {
		t.Fatal("empty bytecode")
	}
}

func TestCompile_RecursiveTypeStopsBeforeCodegen(t *testing.T) {
	b := testkit.NewBuilder(ast.ProgramScript)
	sp := source.Span{Start: 4, End: 8}
	node := b.T.DeclareStruct("Node", sp)
	b.T.DefineStruct(node, []types.StructField{testkit.SF("value", b.B.U64), testkit.SF("next", node)})
	b.Entry("main", nil, b.B.U64, testkit.Body(b.U64(1)))

	ring := trace.NewRingTracer(256, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)
	res := Compile(ctx, b.Prog, Options{})
	if res.HasValue {
		t.Fatal("expected no artifact")
	}
	if got := errorCodes(res.Errors); !slices.Equal(got, []diag.Code{diag.LayoutRecursiveType}) {
		t.Fatalf("errors = %v, want one recursive type error", res.Errors)
	}
	if res.Errors[0].Primary != sp {
		t.Errorf("error span = %v, want the declaration %v", res.Errors[0].Primary, sp)
	}
	for _, ev := range ring.Snapshot() {
		if ev.Name == StageIRGen || ev.Name == StageCodegen {
			t.Errorf("stage %s ran after a layout error", ev.Name)
		}
	}
}

func TestCompile_Failures(t *testing.T) {
	tests := []struct {
		name  string
		build func() *ast.Program
		opts  Options
		want  diag.Code
		msg   string
	}{
		{
			name:  "unknown pass",
			build: func() *ast.Program { return scriptProgram().Prog },
			opts:  Options{Passes: []string{"inline-everything"}},
			want:  diag.InternalInvariant,
			msg:   "unknown pass",
		},
		{
			name: "script entry with parameters",
			build: func() *ast.Program {
				b := testkit.NewBuilder(ast.ProgramScript)
				b.Entry("main", []ast.Param{testkit.P("x", b.B.U64)}, b.B.U64, testkit.Body(b.Var("x", b.B.U64)))
				return b.Prog
			},
			want: diag.CodegenUnimplemented,
			msg:  "parameters of script entry main",
		},
		{
			name: "unknown storage field",
			build: func() *ast.Program {
				b := contractProgram()
				b.Entry("missing", nil, b.B.U64, testkit.Body(b.StorageRead(b.B.U64, "nope")))
				return b.Prog
			},
			want: diag.StorageUnknownField,
			msg:  "nope",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compile(context.Background(), tt.build(), tt.opts)
			if res.HasValue {
				t.Fatal("expected no artifact")
			}
			if len(res.Errors) != 1 || res.Errors[0].Code != tt.want {
				t.Fatalf("errors = %v, want one %v", res.Errors, tt.want)
			}
			if !strings.Contains(res.Errors[0].Message, tt.msg) {
				t.Errorf("message %q lacks %q", res.Errors[0].Message, tt.msg)
			}
		})
	}
}

func TestCompile_TraceSpans(t *testing.T) {
	ring := trace.NewRingTracer(1024, trace.LevelDebug)
	ctx, root := trace.Start(trace.WithTracer(context.Background(), ring), trace.ScopeDriver, "build")
	res := Compile(ctx, scriptProgram().Prog, Options{})
	root.End("")
	if !res.Succeeded() {
		t.Fatalf("compile failed: %v", res.Errors)
	}

	stageIDs := map[string]uint64{}
	var funcParents []uint64
	for _, ev := range ring.Snapshot() {
		if ev.Kind != trace.KindSpanBegin {
			continue
		}
		switch ev.Scope {
		case trace.ScopeStage:
			if ev.ParentID != root.ID() {
				t.Errorf("stage %s parent = %d, want %d", ev.Name, ev.ParentID, root.ID())
			}
			stageIDs[ev.Name] = ev.SpanID
		case trace.ScopeFunction:
			funcParents = append(funcParents, ev.ParentID)
		}
	}
	if len(funcParents) != 2 {
		t.Fatalf("function spans = %d, want 2", len(funcParents))
	}
	for _, p := range funcParents {
		if p != stageIDs[StageCodegen] {
			t.Errorf("function span parent = %d, want the codegen stage %d", p, stageIDs[StageCodegen])
		}
	}
}

func TestArtifactCache(t *testing.T) {
	cache, err := OpenArtifactCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	art := compile(t, contractProgram().Prog, Options{})
	input := []byte("contract source")
	key := CacheKey(input, Options{})

	if _, ok, err := cache.Get(key); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := cache.Put(key, art); err != nil {
		t.Fatal(err)
	}
	got, ok, err := cache.Get(key)
	if err != nil || !ok {
		t.Fatalf("get after put: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Bytecode, art.Bytecode) {
		t.Error("bytecode differs after the round trip")
	}
	if !slices.Equal(got.Selectors, art.Selectors) {
		t.Errorf("selectors = %v, want %v", got.Selectors, art.Selectors)
	}
	if !slices.Equal(got.StorageSlots, art.StorageSlots) {
		t.Errorf("storage slots = %v, want %v", got.StorageSlots, art.StorageSlots)
	}
	if got.Kind != ast.ProgramContract || got.AsmText != art.AsmText {
		t.Error("metadata differs after the round trip")
	}

	for _, other := range []Options{{Legacy: true}, {Passes: []string{"dce"}}, {VerifyStrict: true}} {
		if CacheKey(input, other) == key {
			t.Errorf("options %+v share the default key", other)
		}
	}
	if CacheKey(input, Options{Jobs: 8}) != key {
		t.Error("job count changed the key")
	}

	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cache.Get(key); ok {
		t.Error("entry survived DropAll")
	}
}
