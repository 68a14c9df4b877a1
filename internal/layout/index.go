package layout

import (
	"fortio.org/safecast"

	"swayc/internal/types"
)

// ElemType returns the type reached by indexing id with idx: a struct field,
// tuple element, union member or array element. Enums index like the tuple
// (u64 tag, union of variants).
func (e *LayoutEngine) ElemType(id types.TypeID, idx uint64) (types.TypeID, bool) {
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return types.NoTypeID, false
	}
	i, err := safecast.Conv[int](idx)
	if err != nil {
		return types.NoTypeID, false
	}
	switch tt.Kind {
	case types.KindArray:
		if idx >= uint64(tt.Count) {
			return types.NoTypeID, false
		}
		return tt.Elem, true
	case types.KindStruct:
		info, _ := e.Types.StructInfo(id)
		if i >= len(info.Fields) {
			return types.NoTypeID, false
		}
		return info.Fields[i].Type, true
	case types.KindTuple:
		info, _ := e.Types.TupleInfo(id)
		if i >= len(info.Elems) {
			return types.NoTypeID, false
		}
		return info.Elems[i], true
	case types.KindEnum:
		switch idx {
		case 0:
			return e.Types.Builtins().U64, true
		case 1:
			return e.PayloadType(id)
		}
		return types.NoTypeID, false
	case types.KindUnion:
		info, _ := e.Types.UnionInfo(id)
		if i >= len(info.Members) {
			return types.NoTypeID, false
		}
		return info.Members[i], true
	}
	return types.NoTypeID, false
}

// IndexOffsetWords walks an index path from id and returns the word offset
// of the addressed sub-value together with its type.
func (e *LayoutEngine) IndexOffsetWords(id types.TypeID, path []uint64) (uint64, types.TypeID, error) {
	var offset uint64
	cur := id
	for _, idx := range path {
		l, err := e.LayoutOf(cur)
		if err != nil && !isTooLarge(err) {
			return 0, types.NoTypeID, err
		}
		next, ok := e.ElemType(cur, idx)
		if !ok {
			return 0, types.NoTypeID, &LayoutError{Kind: LayoutErrFieldNotFound, Type: cur, Index: idx}
		}
		switch e.Types.KindOf(cur) {
		case types.KindArray:
			offset += l.ElemWords * idx
		case types.KindStruct, types.KindTuple:
			offset += l.Fields[idx].OffsetWords
		case types.KindEnum:
			if idx == 1 {
				offset += l.TagWords
			}
		}
		cur = next
	}
	return offset, cur, nil
}

// Leaf is a scalar reached through a constant index path.
type Leaf struct {
	Path        []uint64
	Type        types.TypeID
	OffsetWords uint64
}

// Leaves flattens id into its scalar leaves in memory order. Unions and
// enums are leaves themselves since their members overlap.
func (e *LayoutEngine) Leaves(id types.TypeID) ([]Leaf, error) {
	var out []Leaf
	var walk func(t types.TypeID, path []uint64, base uint64) error
	walk = func(t types.TypeID, path []uint64, base uint64) error {
		l, err := e.LayoutOf(t)
		if err != nil {
			return err
		}
		switch e.Types.KindOf(t) {
		case types.KindStruct, types.KindTuple:
			for i, f := range l.Fields {
				if err := walk(f.Type, appendPath(path, uint64(i)), base+f.OffsetWords); err != nil {
					return err
				}
			}
			return nil
		case types.KindArray:
			tt, _ := e.Types.Lookup(t)
			for i := range l.Len {
				if err := walk(tt.Elem, appendPath(path, i), base+i*l.ElemWords); err != nil {
					return err
				}
			}
			return nil
		}
		out = append(out, Leaf{Path: path, Type: t, OffsetWords: base})
		return nil
	}
	if err := walk(id, nil, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func appendPath(path []uint64, idx uint64) []uint64 {
	out := make([]uint64, len(path)+1)
	copy(out, path)
	out[len(path)] = idx
	return out
}

// PayloadType returns the union of an enum's variant types.
func (e *LayoutEngine) PayloadType(id types.TypeID) (types.TypeID, bool) {
	info, ok := e.Types.EnumInfo(id)
	if !ok {
		return types.NoTypeID, false
	}
	members := make([]types.TypeID, len(info.Variants))
	for i, v := range info.Variants {
		members[i] = v.Type
	}
	return e.Types.Union(members), true
}
