package types

import (
	"sync"
	"testing"

	"swayc/internal/source"
)

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Unit == NoTypeID || b.Bool == NoTypeID || b.U64 == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	unit, _ := in.Lookup(b.Unit)
	if unit.Kind != KindUnit {
		t.Fatalf("expected unit kind, got %v", unit.Kind)
	}
	if in.Uint(Width64) != b.U64 {
		t.Fatalf("Uint(64) must return the builtin")
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	u64 := in.Builtins().U64
	if in.Array(u64, 3) != in.Array(u64, 3) {
		t.Fatalf("array types should be deduplicated")
	}
	if in.Array(u64, 3) == in.Array(u64, 4) {
		t.Fatalf("array length is part of identity")
	}
	if in.Tuple([]TypeID{u64, in.Builtins().Bool}) != in.Tuple([]TypeID{u64, in.Builtins().Bool}) {
		t.Fatalf("tuples should be deduplicated structurally")
	}
	if in.Pointer(u64) != in.Pointer(u64) {
		t.Fatalf("pointers should be deduplicated")
	}
}

func TestNominalTypesAreDistinct(t *testing.T) {
	in := NewInterner()
	u64 := in.Builtins().U64
	fields := []StructField{{Name: "a", Type: u64}}
	a := in.RegisterStruct("A", source.Span{}, fields)
	b := in.RegisterStruct("A", source.Span{}, fields)
	if a == b {
		t.Fatalf("nominal structs must not be deduplicated")
	}
}

func TestDefineOnce(t *testing.T) {
	in := NewInterner()
	id := in.DeclareStruct("S", source.Span{})
	if !in.DefineStruct(id, []StructField{{Name: "x", Type: in.Builtins().Bool}}) {
		t.Fatal("first definition must succeed")
	}
	if in.DefineStruct(id, nil) {
		t.Fatal("existing entries must never be redefined")
	}
	info, _ := in.StructInfo(id)
	if len(info.Fields) != 1 {
		t.Fatalf("fields were mutated: %+v", info.Fields)
	}
}

func TestEnumVariantTag(t *testing.T) {
	in := NewInterner()
	e := in.RegisterEnum("E", source.Span{}, []EnumVariant{
		{Name: "A", Type: in.Builtins().U64},
		{Name: "B", Type: in.Builtins().Unit},
	})
	tag, ok := in.VariantTag(e, "B")
	if !ok || tag != 1 {
		t.Fatalf("tag of B = %d, %v", tag, ok)
	}
}

func TestString(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	cases := []struct {
		id   TypeID
		want string
	}{
		{b.U64, "u64"},
		{in.Array(b.Bool, 2), "[bool; 2]"},
		{in.Tuple([]TypeID{b.U8, b.B256}), "(u8, b256)"},
		{in.Pointer(b.U32), "ptr u32"},
		{in.Str(5), "str[5]"},
		{in.ContractCaller("Wallet"), "ContractCaller<Wallet>"},
	}
	for _, c := range cases {
		if got := in.String(c.id); got != c.want {
			t.Errorf("String = %q, want %q", got, c.want)
		}
	}
}

func TestConcurrentIntern(t *testing.T) {
	in := NewInterner()
	u64 := in.Builtins().U64
	var wg sync.WaitGroup
	ids := make([]TypeID, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = in.Pointer(in.Array(u64, 7))
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent interning produced different ids")
		}
	}
}
