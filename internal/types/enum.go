package types

import (
	"slices"

	"swayc/internal/source"
)

// EnumVariant stores a single enum variant. The tag of a variant is its
// position in Variants.
type EnumVariant struct {
	Name string
	Type TypeID
}

// EnumInfo stores metadata for an enum type.
type EnumInfo struct {
	Name     string
	Decl     source.Span
	Variants []EnumVariant
	defined  bool
}

// DeclareEnum allocates a nominal enum slot; see DeclareStruct.
func (in *Interner) DeclareEnum(name string, decl source.Span) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.enums = append(in.enums, EnumInfo{Name: name, Decl: decl})
	slot := slotOf(len(in.enums)-1, "enum")
	return in.internRaw(Type{Kind: KindEnum, Payload: slot})
}

// DefineEnum sets the variants of a declared enum exactly once.
func (in *Interner) DefineEnum(id TypeID, variants []EnumVariant) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	info := in.enumInfoLocked(id)
	if info == nil || info.defined {
		return false
	}
	info.Variants = slices.Clone(variants)
	info.defined = true
	return true
}

// RegisterEnum declares and defines an enum in one step.
func (in *Interner) RegisterEnum(name string, decl source.Span, variants []EnumVariant) TypeID {
	id := in.DeclareEnum(name, decl)
	in.DefineEnum(id, variants)
	return id
}

// EnumInfo returns a copy of the metadata for the provided enum TypeID.
func (in *Interner) EnumInfo(id TypeID) (EnumInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	info := in.enumInfoLocked(id)
	if info == nil {
		return EnumInfo{}, false
	}
	out := *info
	out.Variants = slices.Clone(info.Variants)
	return out, true
}

// VariantTag returns the tag of the named variant.
func (in *Interner) VariantTag(id TypeID, name string) (uint64, bool) {
	info, ok := in.EnumInfo(id)
	if !ok {
		return 0, false
	}
	for i, v := range info.Variants {
		if v.Name == name {
			return uint64(i), true
		}
	}
	return 0, false
}

func (in *Interner) enumInfoLocked(id TypeID) *EnumInfo {
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindEnum {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.enums) {
		return nil
	}
	return &in.enums[tt.Payload]
}
