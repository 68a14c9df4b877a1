package layout

import (
	"errors"
	"testing"

	"swayc/internal/source"
	"swayc/internal/types"
)

func TestStructLayoutDependsOnlyOnFieldSizes(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	s1 := in.RegisterStruct("S1", source.Span{}, []types.StructField{{Name: "a", Type: b.U64}, {Name: "b", Type: b.Bool}})
	s2 := in.RegisterStruct("S2", source.Span{}, []types.StructField{{Name: "x", Type: b.U64}, {Name: "y", Type: b.Bool}})
	e := New(in)

	l1, err := e.LayoutOf(s1)
	if err != nil {
		t.Fatal(err)
	}
	l2, err := e.LayoutOf(s2)
	if err != nil {
		t.Fatal(err)
	}
	if l1.SizeWords != 2 || l2.SizeWords != 2 {
		t.Fatalf("sizes %d, %d; want 2", l1.SizeWords, l2.SizeWords)
	}
	for i := range l1.Fields {
		if l1.Fields[i].OffsetWords != l2.Fields[i].OffsetWords || l1.Fields[i].SizeWords != l2.Fields[i].SizeWords {
			t.Fatalf("field %d differs: %+v vs %+v", i, l1.Fields[i], l2.Fields[i])
		}
	}
	if l1.Fields[0].OffsetWords != 0 || l1.Fields[1].OffsetWords != 1 {
		t.Fatalf("unexpected offsets %+v", l1.Fields)
	}
}

func TestPrimitiveSizes(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := New(in)
	cases := []struct {
		name string
		id   types.TypeID
		want uint64
	}{
		{"unit", b.Unit, 0},
		{"bool", b.Bool, 1},
		{"u8", b.U8, 1},
		{"u64", b.U64, 1},
		{"b256", b.B256, 4},
		{"str[0]", in.Str(0), 0},
		{"str[8]", in.Str(8), 1},
		{"str[9]", in.Str(9), 2},
		{"array", in.Array(b.B256, 3), 12},
		{"tuple", in.Tuple([]types.TypeID{b.U64, b.B256}), 5},
		{"pointer", in.Pointer(b.B256), 1},
		{"caller", in.ContractCaller("A"), 4},
		{"union", in.Union([]types.TypeID{b.U64, b.B256, b.Unit}), 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := e.SizeOf(c.id)
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Fatalf("size = %d, want %d", got, c.want)
			}
		})
	}
}

func TestEnumSizeLaw(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := New(in)
	pool := []types.TypeID{b.Unit, b.U64, b.B256, in.Array(b.U64, 3), in.Tuple([]types.TypeID{b.Bool, b.B256})}

	// every combination of up to three variants from the pool
	for i := range pool {
		for j := range pool {
			for k := range pool {
				variants := []types.EnumVariant{
					{Name: "A", Type: pool[i]},
					{Name: "B", Type: pool[j]},
					{Name: "C", Type: pool[k]},
				}
				id := in.RegisterEnum("E", source.Span{}, variants)
				l, err := e.LayoutOf(id)
				if err != nil {
					t.Fatal(err)
				}
				var maxPayload uint64
				for _, v := range variants {
					sz, _ := e.SizeOf(v.Type)
					maxPayload = max(maxPayload, sz)
				}
				if l.SizeWords != 1+maxPayload {
					t.Fatalf("enum %v: size %d, want %d", variants, l.SizeWords, 1+maxPayload)
				}
				for _, f := range l.Fields {
					if f.OffsetWords != 1 {
						t.Fatalf("payload offset must follow the tag, got %d", f.OffsetWords)
					}
				}
			}
		}
	}
}

func TestUnitOnlyEnumIsTagOnly(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	id := in.RegisterEnum("Color", source.Span{}, []types.EnumVariant{
		{Name: "Red", Type: b.Unit},
		{Name: "Green", Type: b.Unit},
	})
	e := New(in)
	if !e.IsCopyType(id) {
		t.Fatal("unit-only enum is a single tag word")
	}
}

func TestAggregateTooLarge(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	big := in.Array(b.U64, 1<<18)
	s := in.RegisterStruct("Big", source.Span{}, []types.StructField{{Name: "data", Type: big}, {Name: "x", Type: b.U64}})
	e := New(in)

	l, err := e.LayoutOf(s)
	if !errors.Is(err, ErrAggregateTooLarge) {
		t.Fatalf("expected ErrAggregateTooLarge, got %v", err)
	}
	if l.SizeWords != 1<<18+1 {
		t.Fatalf("size must still be reported, got %d", l.SizeWords)
	}
	var le *LayoutError
	if !errors.As(err, &le) || le.IsInternal() {
		t.Fatalf("too-large is a user-facing error: %v", err)
	}
}

func TestAggregateLimitBoundary(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := New(in)

	l, err := e.LayoutOf(in.Array(b.U64, MaxAggregateWords))
	if err != nil || l.SizeWords != 1<<18-1 {
		t.Fatalf("2^18-1 words must fit: size=%d err=%v", l.SizeWords, err)
	}
	if _, err := e.LayoutOf(in.Array(b.U64, 1<<18)); !errors.Is(err, ErrAggregateTooLarge) {
		t.Fatalf("2^18 words must be rejected, got %v", err)
	}
}

func TestNestedArraySizeDoesNotWrap(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	// 65536^4 words is exactly 2^64 and would wrap to zero.
	arr := b.U64
	for range 4 {
		arr = in.Array(arr, 1<<16)
	}
	s := in.RegisterStruct("Huge", source.Span{}, []types.StructField{{Name: "a", Type: arr}, {Name: "x", Type: b.U64}})
	e := New(in)

	for _, id := range []types.TypeID{arr, s} {
		l, err := e.LayoutOf(id)
		if !errors.Is(err, ErrAggregateTooLarge) {
			t.Fatalf("%s: expected ErrAggregateTooLarge, got size=%d err=%v", in.String(id), l.SizeWords, err)
		}
		if e.IsCopyType(id) {
			t.Fatalf("%s must not be a copy type", in.String(id))
		}
	}

	tup := in.Tuple([]types.TypeID{arr, arr})
	if _, err := e.LayoutOf(tup); !errors.Is(err, ErrAggregateTooLarge) {
		t.Fatalf("tuple of two saturated arrays: %v", err)
	}
}

func TestRecursiveStruct(t *testing.T) {
	in := types.NewInterner()
	id := in.DeclareStruct("Node", source.Span{})
	in.DefineStruct(id, []types.StructField{{Name: "next", Type: id}})
	_, err := New(in).LayoutOf(id)
	if !errors.Is(err, ErrRecursiveType) {
		t.Fatalf("expected recursion error, got %v", err)
	}
}

func TestUnresolvedTypeIsInternal(t *testing.T) {
	in := types.NewInterner()
	_, err := New(in).LayoutOf(types.NoTypeID)
	var le *LayoutError
	if !errors.As(err, &le) || !le.IsInternal() || !errors.Is(err, ErrUnresolvedType) {
		t.Fatalf("expected internal unresolved error, got %v", err)
	}
}

func TestOffsetOf(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	s := in.RegisterStruct("S", source.Span{}, []types.StructField{
		{Name: "a", Type: b.B256},
		{Name: "b", Type: b.U64},
	})
	l, _ := New(in).LayoutOf(s)
	off, err := OffsetOf(l, "b")
	if err != nil || off != 4 {
		t.Fatalf("OffsetOf(b) = %d, %v", off, err)
	}
	if _, err := OffsetOf(l, "missing"); !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
}

func TestIndexOffsetAndLeaves(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	inner := in.Tuple([]types.TypeID{b.Bool, b.U64})
	s := in.RegisterStruct("S", source.Span{}, []types.StructField{
		{Name: "h", Type: b.B256},
		{Name: "t", Type: inner},
		{Name: "arr", Type: in.Array(b.U8, 2)},
	})
	e := New(in)
	off, leaf, err := e.IndexOffsetWords(s, []uint64{1, 1})
	if err != nil || off != 5 || leaf != b.U64 {
		t.Fatalf("IndexOffsetWords = %d, %v, %v", off, leaf, err)
	}
	off, leaf, err = e.IndexOffsetWords(s, []uint64{2, 1})
	if err != nil || off != 7 || leaf != b.U8 {
		t.Fatalf("array index = %d, %v, %v", off, leaf, err)
	}
	leaves, err := e.Leaves(s)
	if err != nil {
		t.Fatal(err)
	}
	wantOffsets := []uint64{0, 4, 5, 6, 7}
	if len(leaves) != len(wantOffsets) {
		t.Fatalf("got %d leaves", len(leaves))
	}
	for i, l := range leaves {
		if l.OffsetWords != wantOffsets[i] {
			t.Fatalf("leaf %d offset %d, want %d", i, l.OffsetWords, wantOffsets[i])
		}
	}
}

func TestEnumIndexesAsTagAndPayload(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	id := in.RegisterEnum("E", source.Span{}, []types.EnumVariant{
		{Name: "A", Type: b.U64},
		{Name: "B", Type: b.B256},
	})
	e := New(in)
	tag, ok := e.ElemType(id, 0)
	if !ok || tag != b.U64 {
		t.Fatalf("tag type %v", tag)
	}
	off, leaf, err := e.IndexOffsetWords(id, []uint64{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if off != 1 || leaf != b.B256 {
		t.Fatalf("payload B at %d of %s", off, in.String(leaf))
	}
}
