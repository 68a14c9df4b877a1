package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"swayc/internal/diag"
	"swayc/internal/source"
)

func TestPretty_CaretsUnderSpan(t *testing.T) {
	fs := source.NewFileSet()
	content := []byte("fn main() {\n    foo(1, 2, 3);\n}\n")
	id := fs.AddVirtual("/work/src/main.sw", content)

	bag := diag.NewBag(10)
	start := uint32(bytes.Index(content, []byte("foo")))
	bag.Add(diag.NewError(diag.CodegenTooManyArguments,
		source.Span{File: id, Start: start, End: start + 3}, "too many arguments"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename})
	out := buf.String()

	want := []string{
		"main.sw:2:5: error[GEN5001]: too many arguments",
		"      foo(1, 2, 3);",
		"      ^~~",
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestPretty_InternalNote(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("a.sw", []byte("x\n"))
	bag := diag.NewBag(0)
	bag.Add(diag.NewError(diag.InternalFieldNotFound, source.Span{File: id, Start: 0, End: 1}, "no field"))

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})
	if !strings.Contains(buf.String(), "compiler bug") {
		t.Fatalf("internal diagnostics must ask for a bug report:\n%s", buf.String())
	}
}

func TestJSON_Positions(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("a.sw", []byte("let a = 1;\nlet b = 2;\n"))
	bag := diag.NewBag(0)
	bag.Add(diag.NewWarning(diag.StorageDuplicatedKey, source.Span{File: id, Start: 15, End: 16}, "dup"))

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true}); err != nil {
		t.Fatal(err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 {
		t.Fatalf("count = %d", out.Count)
	}
	loc := out.Diagnostics[0].Location
	if loc.StartLine != 2 || loc.StartCol != 5 {
		t.Fatalf("unexpected position %d:%d", loc.StartLine, loc.StartCol)
	}
}
