package types

import "slices"

// TupleInfo stores the element types for a tuple type.
type TupleInfo struct {
	Elems []TypeID
}

// Tuple creates or finds the tuple type with the given elements.
// The empty tuple is a distinct type from unit.
func (in *Interner) Tuple(elems []TypeID) TypeID {
	key := idsKey(elems)
	in.mu.RLock()
	id, ok := in.tupleIndex[key]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.tupleIndex[key]; ok {
		return id
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: slices.Clone(elems)})
	slot := slotOf(len(in.tuples)-1, "tuple")
	id = in.internRaw(Type{Kind: KindTuple, Payload: slot})
	in.tupleIndex[key] = id
	return id
}

// TupleInfo returns the element types for a tuple TypeID.
func (in *Interner) TupleInfo(id TypeID) (TupleInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindTuple || tt.Payload == 0 || int(tt.Payload) >= len(in.tuples) {
		return TupleInfo{}, false
	}
	return TupleInfo{Elems: slices.Clone(in.tuples[tt.Payload].Elems)}, true
}
