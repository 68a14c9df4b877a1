package storagekey

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"swayc/internal/source"
)

func TestDerive_DefaultsToPathHash(t *testing.T) {
	got := Derive([]string{"ns", "counter"}, nil)
	want := Key(sha256.Sum256([]byte("storage::ns.counter")))
	if got != want {
		t.Fatalf("Derive = %x, want %x", got, want)
	}
}

func TestDerive_ExplicitWins(t *testing.T) {
	explicit := Key{31: 7}
	if got := Derive([]string{"x"}, &explicit); got != explicit {
		t.Fatalf("explicit key ignored: %x", got)
	}
}

func TestDerive_NormalisesUnicode(t *testing.T) {
	composed := Derive([]string{"caf\u00e9"}, nil)
	decomposed := Derive([]string{"cafe\u0301"}, nil)
	if composed != decomposed {
		t.Fatal("NFC-equivalent paths must derive the same key")
	}
}

func TestKeyAdd_Carries(t *testing.T) {
	var k Key
	for i := 8; i < 32; i++ {
		k[i] = 0xff
	}
	got := k.Add(1)
	if got[7] != 1 {
		t.Fatalf("carry lost: %x", got)
	}
	for i := 8; i < 32; i++ {
		if got[i] != 0 {
			t.Fatalf("byte %d = %x", i, got[i])
		}
	}
}

func TestSlots_Layout(t *testing.T) {
	key := Key{31: 1}
	slots := Slots(key, []uint64{1, 2, 3, 4, 5})
	if len(slots) != 2 {
		t.Fatalf("got %d slots", len(slots))
	}
	if slots[1].Key != key.Add(1) {
		t.Fatal("second slot must use the next key")
	}
	if binary.BigEndian.Uint64(slots[0].Value[24:]) != 4 || binary.BigEndian.Uint64(slots[1].Value[0:]) != 5 {
		t.Fatalf("unexpected slot contents %x %x", slots[0].Value, slots[1].Value)
	}
	if len(Slots(key, nil)) != 0 {
		t.Fatal("zero-sized values occupy no slot")
	}
}

func TestPlanner_DuplicateKeyFirstWins(t *testing.T) {
	p := NewPlanner()
	shared := Key{0: 9}
	first, coll := p.Add([]string{"a"}, &shared, 1, source.Span{Start: 1})
	if coll != nil {
		t.Fatal("first field cannot collide")
	}
	_, coll = p.Add([]string{"b"}, &shared, 1, source.Span{Start: 2})
	if coll == nil {
		t.Fatal("expected a collision")
	}
	if coll.First.Span != first.Span {
		t.Fatal("collision must name the first field")
	}
	if _, ok := p.Lookup([]string{"b"}); !ok {
		t.Fatal("colliding field must still resolve")
	}
}

func TestLocate(t *testing.T) {
	f := Field{Key: Key{31: 0x10}, SizeWords: 9}
	loc := Locate(f, 3, 2)
	if loc.FirstSlot != 0 || loc.NumSlots != 2 || loc.WordInSlot() != 3 {
		t.Fatalf("unexpected location %+v", loc)
	}
	if loc.SlotKey() != f.Key {
		t.Fatal("first slot key")
	}
	loc = Locate(f, 8, 1)
	if loc.FirstSlot != 2 || loc.NumSlots != 1 || loc.SlotKey() != f.Key.Add(2) {
		t.Fatalf("unexpected location %+v", loc)
	}
}
