package types

import (
	"fmt"
	"strings"
	"sync"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	ErrorRecovery TypeID
	Unit          TypeID
	Bool          TypeID
	U8            TypeID
	U16           TypeID
	U32           TypeID
	U64           TypeID
	Byte          TypeID
	B256          TypeID
	Contract      TypeID
}

// Interner is the process-wide type table. Entries are append-only: an
// issued TypeID always resolves to the same descriptor. Insertion takes the
// writer lock so parallel function compilation may intern IR-only types
// (pointers, unions) while other goroutines read.
type Interner struct {
	mu       sync.RWMutex
	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins

	structs []StructInfo
	enums   []EnumInfo
	tuples  []TupleInfo
	unions  []UnionInfo
	callers []string

	// structural dedup for anonymous aggregates
	tupleIndex  map[string]TypeID
	unionIndex  map[string]TypeID
	callerIndex map[string]TypeID
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:       make(map[typeKey]TypeID, 64),
		tupleIndex:  make(map[string]TypeID),
		unionIndex:  make(map[string]TypeID),
		callerIndex: make(map[string]TypeID),
	}
	// slot 0 of every info table is the invalid sentinel
	in.structs = append(in.structs, StructInfo{})
	in.enums = append(in.enums, EnumInfo{})
	in.tuples = append(in.tuples, TupleInfo{})
	in.unions = append(in.unions, UnionInfo{})
	in.callers = append(in.callers, "")

	in.internRaw(Type{Kind: KindInvalid})
	in.builtins.ErrorRecovery = in.Intern(Type{Kind: KindErrorRecovery})
	in.builtins.Unit = in.Intern(Type{Kind: KindUnit})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.U8 = in.Intern(MakeUint(Width8))
	in.builtins.U16 = in.Intern(MakeUint(Width16))
	in.builtins.U32 = in.Intern(MakeUint(Width32))
	in.builtins.U64 = in.Intern(MakeUint(Width64))
	in.builtins.Byte = in.Intern(Type{Kind: KindByte})
	in.builtins.B256 = in.Intern(Type{Kind: KindB256})
	in.builtins.Contract = in.Intern(Type{Kind: KindContract})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
// Nominal and anonymous aggregates have dedicated constructors.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	in.mu.RLock()
	id, ok := in.index[key]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor without consulting the map. Callers hold mu
// (or own the interner exclusively during construction).
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[typeKey(t)] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.lookupLocked(id)
}

func (in *Interner) lookupLocked(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// KindOf returns the kind of id or KindInvalid.
func (in *Interner) KindOf(id TypeID) Kind {
	tt, ok := in.Lookup(id)
	if !ok {
		return KindInvalid
	}
	return tt.Kind
}

// Len returns the number of interned types including the invalid slot.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.types)
}

// Uint returns the unsigned integer type of the given width.
func (in *Interner) Uint(width Width) TypeID {
	switch width {
	case Width8:
		return in.builtins.U8
	case Width16:
		return in.builtins.U16
	case Width32:
		return in.builtins.U32
	default:
		return in.builtins.U64
	}
}

// Str interns str[n].
func (in *Interner) Str(n uint32) TypeID {
	return in.Intern(MakeStr(n))
}

// Array interns [elem; n].
func (in *Interner) Array(elem TypeID, n uint32) TypeID {
	return in.Intern(MakeArray(elem, n))
}

// Pointer interns ptr elem.
func (in *Interner) Pointer(elem TypeID) TypeID {
	return in.Intern(MakePointer(elem))
}

// PointeeOf returns the element of a pointer type.
func (in *Interner) PointeeOf(id TypeID) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindPointer {
		return NoTypeID, false
	}
	return tt.Elem, true
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Count   uint32
	Width   Width
	Payload uint32
}

func idsKey(ids []TypeID) string {
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", id)
	}
	return sb.String()
}

func slotOf(n int, what string) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("%s info overflow: %w", what, err))
	}
	return slot
}
