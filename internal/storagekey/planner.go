package storagekey

import (
	"encoding/hex"
	"fmt"
	"strings"

	"swayc/internal/source"
)

// Field is a storage field registered with the planner.
type Field struct {
	Path      []string
	Span      source.Span
	SizeWords uint64
	Key       Key
}

// Collision reports two fields deriving the same key. The first field keeps
// the key; compilation continues.
type Collision struct {
	First, Second Field
}

func (c Collision) Message() string {
	return fmt.Sprintf("storage field %q has the same key as %q (0x%s); the first declaration wins",
		strings.Join(c.Second.Path, "."), strings.Join(c.First.Path, "."), hex.EncodeToString(c.Second.Key[:]))
}

// Planner assigns keys to storage fields and detects collisions.
type Planner struct {
	fields []Field
	byKey  map[Key]int
	byPath map[string]int
}

// NewPlanner creates an empty planner.
func NewPlanner() *Planner {
	return &Planner{byKey: make(map[Key]int), byPath: make(map[string]int)}
}

// Add registers a field under its derived key. It returns the collision
// when another field already owns a key in the same slot range; the new
// field is still recorded so path lookups succeed.
func (p *Planner) Add(path []string, explicit *Key, sizeWords uint64, span source.Span) (Field, *Collision) {
	f := Field{Path: path, Span: span, SizeWords: sizeWords, Key: Derive(path, explicit)}
	var coll *Collision
	for i := range max(SlotCount(sizeWords), 1) {
		if idx, ok := p.byKey[f.Key.Add(i)]; ok {
			coll = &Collision{First: p.fields[idx], Second: f}
			break
		}
	}
	p.fields = append(p.fields, f)
	idx := len(p.fields) - 1
	if coll == nil {
		for i := range max(SlotCount(sizeWords), 1) {
			p.byKey[f.Key.Add(i)] = idx
		}
	}
	p.byPath[strings.Join(path, ".")] = idx
	return f, coll
}

// Lookup returns the field registered under the fully-qualified path.
func (p *Planner) Lookup(path []string) (Field, bool) {
	idx, ok := p.byPath[strings.Join(path, ".")]
	if !ok {
		return Field{}, false
	}
	return p.fields[idx], true
}

// Fields returns the registered fields in order.
func (p *Planner) Fields() []Field {
	return p.fields
}

// Location is the resolved position of a (sub)field in storage.
type Location struct {
	Field Field
	// OffsetWords is the offset of the accessed sub-value inside the field.
	OffsetWords uint64
	SizeWords   uint64
	// FirstSlot and NumSlots give the slot range touching the sub-value,
	// relative to Field.Key.
	FirstSlot uint64
	NumSlots  uint64
}

// WordInSlot is the word offset of the sub-value inside FirstSlot.
func (l Location) WordInSlot() uint64 {
	return l.OffsetWords % SlotWords
}

// SlotKey returns the key of the first touched slot.
func (l Location) SlotKey() Key {
	return l.Field.Key.Add(l.FirstSlot)
}

// Locate resolves a sub-value at offsetWords of sizeWords inside field f.
func Locate(f Field, offsetWords, sizeWords uint64) Location {
	first := offsetWords / SlotWords
	last := first
	if sizeWords > 0 {
		last = (offsetWords + sizeWords - 1) / SlotWords
	}
	return Location{
		Field:       f,
		OffsetWords: offsetWords,
		SizeWords:   sizeWords,
		FirstSlot:   first,
		NumSlots:    last - first + 1,
	}
}
