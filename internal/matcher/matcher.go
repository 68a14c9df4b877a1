// Package matcher desugars match patterns into requirements and bindings.
//
// The matcher is representation agnostic: every requirement and binding
// addresses a part of the scrutinee through a projection path. Turning the
// paths into loads is left to the code generator.
package matcher

import (
	"errors"
	"fmt"

	"swayc/internal/ast"
	"swayc/internal/types"
)

type ProjKind uint8

const (
	ProjStructField ProjKind = iota + 1
	ProjTupleField
	ProjArrayIndex
	// ProjEnumTag reads the tag word of an enum.
	ProjEnumTag
	// ProjEnumPayload reinterprets the enum payload as the variant at Index.
	ProjEnumPayload
)

func (k ProjKind) String() string {
	switch k {
	case ProjStructField:
		return "field"
	case ProjTupleField:
		return "tuple"
	case ProjArrayIndex:
		return "index"
	case ProjEnumTag:
		return "tag"
	case ProjEnumPayload:
		return "payload"
	}
	return "?"
}

// Projection is one step from an aggregate into a part of it.
type Projection struct {
	Kind  ProjKind
	Index uint64
	// Type is the type reached after this step.
	Type types.TypeID
}

func (p Projection) String() string {
	return fmt.Sprintf("%s(%d)", p.Kind, p.Index)
}

// Requirement demands that the projected value equals Value.
type Requirement struct {
	Path  []Projection
	Type  types.TypeID
	Value ast.Lit
}

// Binding introduces Name bound to the projected value.
type Binding struct {
	Name string
	Path []Projection
	Type types.TypeID
}

var (
	// ErrShapeMismatch means the pattern does not fit the scrutinee type.
	// Type checking rules this out, so it indicates a compiler bug.
	ErrShapeMismatch = errors.New("pattern does not match scrutinee shape")
	// ErrUnknownVariant means an enum pattern names a variant the enum lacks.
	ErrUnknownVariant = errors.New("unknown enum variant")
)

// Result is the desugared form of one pattern. Requirements are listed in
// the order they must be tested, left to right.
type Result struct {
	Requirements []Requirement
	Bindings     []Binding
}

// Irrefutable reports whether the pattern always matches.
func (r Result) Irrefutable() bool {
	return len(r.Requirements) == 0
}

// Desugar flattens pat, matched against a scrutinee of type scrutinee.
func Desugar(in *types.Interner, scrutinee types.TypeID, pat *ast.Pattern) (Result, error) {
	d := desugarer{types: in}
	if err := d.walk(pat, scrutinee, nil); err != nil {
		return Result{}, err
	}
	return d.res, nil
}

// ContainsEnum reports whether pat tests an enum variant anywhere.
func ContainsEnum(pat *ast.Pattern) bool {
	if pat == nil {
		return false
	}
	switch pat.Kind {
	case ast.PatEnum:
		return true
	case ast.PatStruct:
		for _, f := range pat.Fields {
			if ContainsEnum(f.Pattern) {
				return true
			}
		}
	case ast.PatTuple:
		for _, e := range pat.Elems {
			if ContainsEnum(e) {
				return true
			}
		}
	}
	return false
}

type desugarer struct {
	types *types.Interner
	res   Result
}

func (d *desugarer) walk(pat *ast.Pattern, ty types.TypeID, path []Projection) error {
	if pat == nil {
		return nil
	}
	switch pat.Kind {
	case ast.PatWildcard:
		return nil
	case ast.PatVar:
		d.res.Bindings = append(d.res.Bindings, Binding{Name: pat.Name, Path: path, Type: ty})
		return nil
	case ast.PatLit:
		d.res.Requirements = append(d.res.Requirements, Requirement{Path: path, Type: ty, Value: pat.Lit})
		return nil
	case ast.PatStruct:
		info, ok := d.types.StructInfo(ty)
		if !ok {
			return fmt.Errorf("%w: struct pattern against %s", ErrShapeMismatch, d.types.String(ty))
		}
		for _, fp := range pat.Fields {
			idx, ok := d.types.FieldIndex(ty, fp.Name)
			if !ok {
				return fmt.Errorf("%w: %s has no field %q", ErrShapeMismatch, info.Name, fp.Name)
			}
			ft := info.Fields[idx].Type
			step := Projection{Kind: ProjStructField, Index: uint64(idx), Type: ft}
			if err := d.walk(fp.Pattern, ft, extend(path, step)); err != nil {
				return err
			}
		}
		return nil
	case ast.PatTuple:
		info, ok := d.types.TupleInfo(ty)
		if !ok || len(info.Elems) != len(pat.Elems) {
			return fmt.Errorf("%w: tuple pattern of %d elements against %s", ErrShapeMismatch, len(pat.Elems), d.types.String(ty))
		}
		for i, ep := range pat.Elems {
			step := Projection{Kind: ProjTupleField, Index: uint64(i), Type: info.Elems[i]}
			if err := d.walk(ep, info.Elems[i], extend(path, step)); err != nil {
				return err
			}
		}
		return nil
	case ast.PatEnum:
		return d.walkEnum(pat, ty, path)
	}
	return fmt.Errorf("%w: pattern kind %d", ErrShapeMismatch, pat.Kind)
}

func (d *desugarer) walkEnum(pat *ast.Pattern, ty types.TypeID, path []Projection) error {
	info, ok := d.types.EnumInfo(ty)
	if !ok {
		return fmt.Errorf("%w: enum pattern against %s", ErrShapeMismatch, d.types.String(ty))
	}
	tag, ok := d.types.VariantTag(ty, pat.Name)
	if !ok {
		return fmt.Errorf("%w: %s::%s", ErrUnknownVariant, info.Name, pat.Name)
	}
	u64 := d.types.Builtins().U64
	d.res.Requirements = append(d.res.Requirements, Requirement{
		Path:  extend(path, Projection{Kind: ProjEnumTag, Type: u64}),
		Type:  u64,
		Value: ast.Lit{Kind: ast.LitUint, Uint: tag},
	})
	if pat.Payload == nil {
		return nil
	}
	vt := info.Variants[tag].Type
	step := Projection{Kind: ProjEnumPayload, Index: tag, Type: vt}
	return d.walk(pat.Payload, vt, extend(path, step))
}

func extend(path []Projection, p Projection) []Projection {
	out := make([]Projection, len(path)+1)
	copy(out, path)
	out[len(path)] = p
	return out
}
