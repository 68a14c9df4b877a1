package source

import "testing"

func TestFileSet_ResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("main.sw", []byte("script;\r\nfn main() {\n  42\n}\n"))

	tests := []struct {
		name string
		off  uint32
		want LineCol
	}{
		{name: "file start", off: 0, want: LineCol{Line: 1, Col: 1}},
		{name: "newline of first line", off: 7, want: LineCol{Line: 1, Col: 8}},
		{name: "second line start", off: 8, want: LineCol{Line: 2, Col: 1}},
		{name: "literal", off: 22, want: LineCol{Line: 3, Col: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, _ := fs.Resolve(Span{File: id, Start: tt.off, End: tt.off})
			if start != tt.want {
				t.Fatalf("offset %d: got %+v, want %+v", tt.off, start, tt.want)
			}
		})
	}
	if fs.Get(id).Flags&FileNormalizedCRLF == 0 {
		t.Fatal("expected CRLF normalization flag")
	}
}

func TestFile_GetLine(t *testing.T) {
	fs := NewFileSet()
	f := fs.Get(fs.AddVirtual("a.sw", []byte("one\ntwo\nthree")))
	for i, want := range []string{"one", "two", "three", ""} {
		if got := f.GetLine(uint32(i + 1)); got != want {
			t.Fatalf("line %d: got %q, want %q", i+1, got, want)
		}
	}
}

func TestSpan_Cover(t *testing.T) {
	a := Span{File: 1, Start: 10, End: 20}
	b := Span{File: 1, Start: 5, End: 12}
	if got := a.Cover(b); got != (Span{File: 1, Start: 5, End: 20}) {
		t.Fatalf("unexpected cover %v", got)
	}
	if got := a.Cover(Span{File: 2, Start: 0, End: 100}); got != a {
		t.Fatalf("cross-file cover must keep receiver, got %v", got)
	}
	if got := (Span{}).Cover(b); got != b {
		t.Fatalf("zero span cover must adopt other, got %v", got)
	}
}
