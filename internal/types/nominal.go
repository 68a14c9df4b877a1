package types

import (
	"slices"

	"swayc/internal/source"
)

// StructField describes a single field inside a nominal struct type.
type StructField struct {
	Name string
	Type TypeID
}

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Name    string
	Decl    source.Span
	Fields  []StructField
	defined bool
}

// DeclareStruct allocates a nominal struct slot whose fields are supplied
// later by DefineStruct. Two-phase registration lets a struct refer to
// itself so that recursive value types can be diagnosed by layout.
func (in *Interner) DeclareStruct(name string, decl source.Span) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.structs = append(in.structs, StructInfo{Name: name, Decl: decl})
	slot := slotOf(len(in.structs)-1, "struct")
	return in.internRaw(Type{Kind: KindStruct, Payload: slot})
}

// DefineStruct sets the fields of a declared struct. A struct can be defined
// exactly once; later calls are ignored and return false.
func (in *Interner) DefineStruct(id TypeID, fields []StructField) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	info := in.structInfoLocked(id)
	if info == nil || info.defined {
		return false
	}
	info.Fields = slices.Clone(fields)
	info.defined = true
	return true
}

// RegisterStruct declares and defines a struct in one step.
func (in *Interner) RegisterStruct(name string, decl source.Span, fields []StructField) TypeID {
	id := in.DeclareStruct(name, decl)
	in.DefineStruct(id, fields)
	return id
}

// StructInfo returns a copy of the metadata for the provided struct TypeID.
func (in *Interner) StructInfo(id TypeID) (StructInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	info := in.structInfoLocked(id)
	if info == nil {
		return StructInfo{}, false
	}
	out := *info
	out.Fields = slices.Clone(info.Fields)
	return out, true
}

// FieldIndex returns the declaration index of the named field.
func (in *Interner) FieldIndex(id TypeID, name string) (int, bool) {
	info, ok := in.StructInfo(id)
	if !ok {
		return -1, false
	}
	for i, f := range info.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (in *Interner) structInfoLocked(id TypeID) *StructInfo {
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindStruct {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[tt.Payload]
}
