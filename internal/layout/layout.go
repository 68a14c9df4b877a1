package layout

import (
	"swayc/internal/types"
)

// WordBytes is the size of a VM word.
const WordBytes = 8

// MaxAggregateWords is the largest aggregate the VM can clear with one
// memory-clear immediate (18 bits): 2^18-1 words fit, 2^18 words do not.
const MaxAggregateWords = 1<<18 - 1

// FieldLayout describes one field, tuple element or enum variant payload.
type FieldLayout struct {
	Name        string
	Type        types.TypeID
	OffsetWords uint64
	SizeWords   uint64
}

// TypeLayout is the in-memory representation of a type, measured in words.
// It is derived from the type and never stored on it.
type TypeLayout struct {
	SizeWords uint64

	// Struct fields, tuple elements or enum variants in declaration order.
	// Enum variant offsets point at the payload, after the tag.
	Fields []FieldLayout

	// Enum-only.
	TagWords uint64

	// Array-only.
	ElemWords uint64
	Len       uint64
}

// SizeBytes returns the size of the layout in bytes.
func (l TypeLayout) SizeBytes() uint64 {
	return l.SizeWords * WordBytes
}

// IsCopy reports whether the value fits in a single register.
func (l TypeLayout) IsCopy() bool {
	return l.SizeWords == 1
}

// LayoutEngine computes memory layout for types. It is safe for concurrent use.
type LayoutEngine struct {
	Types *types.Interner

	cache *cache
}

// New creates a new LayoutEngine over the type table.
func New(typesIn *types.Interner) *LayoutEngine {
	return &LayoutEngine{
		Types: typesIn,
		cache: newCache(),
	}
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		index: make(map[types.TypeID]int, 32),
	}
}

// LayoutOf computes and caches the layout of a type.
//
// Oversized aggregates return their full layout together with an
// ErrAggregateTooLarge error so callers can still report the size.
func (e *LayoutEngine) LayoutOf(t types.TypeID) (TypeLayout, error) {
	if e == nil {
		return TypeLayout{}, nil
	}
	if e.cache == nil {
		e.cache = newCache()
	}
	layout, err := e.layoutOf(t, newLayoutState())
	if err != nil {
		return layout, err
	}
	return layout, nil
}

func (e *LayoutEngine) layoutOf(t types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	if cached, ok := e.cache.get(t); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[t]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		err := &LayoutError{
			Kind:  LayoutErrRecursiveUnsized,
			Type:  t,
			Cycle: cycle,
		}
		e.cache.put(t, &cacheEntry{Err: err})
		return TypeLayout{}, err
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	layout, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	if err == nil && layout.SizeWords > MaxAggregateWords {
		err = &LayoutError{Kind: LayoutErrTooLarge, Type: t, Size: layout.SizeWords}
	}
	e.cache.put(t, &cacheEntry{Layout: layout, Err: err})
	return layout, err
}

// SizeOf returns the size of a type in words.
func (e *LayoutEngine) SizeOf(t types.TypeID) (uint64, error) {
	l, err := e.LayoutOf(t)
	return l.SizeWords, err
}

// IsCopyType reports whether t fits in one register. Types whose layout
// fails are never copy types.
func (e *LayoutEngine) IsCopyType(t types.TypeID) bool {
	l, err := e.LayoutOf(t)
	return err == nil && l.IsCopy()
}

// OffsetOf returns the word offset of the named field. A missing field is an
// internal error: field existence is established before code generation.
func OffsetOf(l TypeLayout, name string) (uint64, error) {
	f, err := FieldNamed(l, name)
	if err != nil {
		return 0, err
	}
	return f.OffsetWords, nil
}

// FieldNamed returns the layout of the named field.
func FieldNamed(l TypeLayout, name string) (FieldLayout, error) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return FieldLayout{}, &LayoutError{Kind: LayoutErrFieldNotFound, Field: name}
}

// ByteOffset converts a word offset to bytes.
func ByteOffset(words uint64) uint64 {
	return words * WordBytes
}

// WordsForBytes rounds n bytes up to whole words.
func WordsForBytes(n uint64) uint64 {
	return (n + WordBytes - 1) / WordBytes
}
