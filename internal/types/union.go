package types

import "slices"

// UnionInfo stores the member types of an IR union. A union is as large as
// its largest member; it is how enum payloads are represented in IR.
type UnionInfo struct {
	Members []TypeID
}

// Union creates or finds the union type with the given members.
func (in *Interner) Union(members []TypeID) TypeID {
	key := idsKey(members)
	in.mu.RLock()
	id, ok := in.unionIndex[key]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.unionIndex[key]; ok {
		return id
	}
	in.unions = append(in.unions, UnionInfo{Members: slices.Clone(members)})
	slot := slotOf(len(in.unions)-1, "union")
	id = in.internRaw(Type{Kind: KindUnion, Payload: slot})
	in.unionIndex[key] = id
	return id
}

// UnionInfo returns the members of a union TypeID.
func (in *Interner) UnionInfo(id TypeID) (UnionInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindUnion || tt.Payload == 0 || int(tt.Payload) >= len(in.unions) {
		return UnionInfo{}, false
	}
	return UnionInfo{Members: slices.Clone(in.unions[tt.Payload].Members)}, true
}

// ContractCaller interns the caller type produced by abi(name, address).
func (in *Interner) ContractCaller(abiName string) TypeID {
	in.mu.RLock()
	id, ok := in.callerIndex[abiName]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.callerIndex[abiName]; ok {
		return id
	}
	in.callers = append(in.callers, abiName)
	slot := slotOf(len(in.callers)-1, "caller")
	id = in.internRaw(Type{Kind: KindContractCaller, Payload: slot})
	in.callerIndex[abiName] = id
	return id
}

// CallerABI returns the ABI name of a contract caller type.
func (in *Interner) CallerABI(id TypeID) (string, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindContractCaller || tt.Payload == 0 || int(tt.Payload) >= len(in.callers) {
		return "", false
	}
	return in.callers[tt.Payload], true
}
