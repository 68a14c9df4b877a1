package layout

import (
	"math"
	"math/bits"
	"strconv"

	"fortio.org/safecast"

	"swayc/internal/types"
)

func (e *LayoutEngine) computeLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	if e.Types == nil {
		return TypeLayout{}, &LayoutError{Kind: LayoutErrUnresolved, Type: id}
	}
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return TypeLayout{}, &LayoutError{Kind: LayoutErrUnresolved, Type: id}
	}

	switch tt.Kind {
	case types.KindUnit, types.KindContract, types.KindErrorRecovery:
		return TypeLayout{}, nil

	case types.KindBool, types.KindUint, types.KindByte, types.KindPointer:
		return TypeLayout{SizeWords: 1}, nil

	case types.KindB256, types.KindContractCaller:
		return TypeLayout{SizeWords: 4}, nil

	case types.KindStr:
		return TypeLayout{SizeWords: WordsForBytes(uint64(tt.Count))}, nil

	case types.KindArray:
		return e.arrayLayout(tt, state)

	case types.KindStruct:
		info, ok := e.Types.StructInfo(id)
		if !ok {
			return TypeLayout{}, &LayoutError{Kind: LayoutErrUnresolved, Type: id}
		}
		fields := make([]namedType, len(info.Fields))
		for i, f := range info.Fields {
			fields[i] = namedType{f.Name, f.Type}
		}
		return e.sequenceLayout(fields, state)

	case types.KindTuple:
		info, ok := e.Types.TupleInfo(id)
		if !ok {
			return TypeLayout{}, &LayoutError{Kind: LayoutErrUnresolved, Type: id}
		}
		fields := make([]namedType, len(info.Elems))
		for i, el := range info.Elems {
			fields[i] = namedType{strconv.Itoa(i), el}
		}
		return e.sequenceLayout(fields, state)

	case types.KindEnum:
		return e.enumLayout(id, state)

	case types.KindUnion:
		return e.unionLayout(id, state)

	default:
		return TypeLayout{}, &LayoutError{Kind: LayoutErrUnresolved, Type: id}
	}
}

type namedType struct {
	name string
	typ  types.TypeID
}

// sequenceLayout places fields back to back in declaration order. Offsets
// depend only on the sequence of field sizes.
func (e *LayoutEngine) sequenceLayout(fields []namedType, state *layoutState) (TypeLayout, *LayoutError) {
	out := TypeLayout{Fields: make([]FieldLayout, 0, len(fields))}
	var offset uint64
	for _, f := range fields {
		fl, err := e.layoutOf(f.typ, state)
		if err != nil && err.Kind != LayoutErrTooLarge {
			return TypeLayout{}, err
		}
		out.Fields = append(out.Fields, FieldLayout{
			Name:        f.name,
			Type:        f.typ,
			OffsetWords: offset,
			SizeWords:   fl.SizeWords,
		})
		offset = addWords(offset, fl.SizeWords)
	}
	out.SizeWords = offset
	return out, nil
}

func (e *LayoutEngine) arrayLayout(tt types.Type, state *layoutState) (TypeLayout, *LayoutError) {
	elem, err := e.layoutOf(tt.Elem, state)
	if err != nil && err.Kind != LayoutErrTooLarge {
		return TypeLayout{}, err
	}
	n, convErr := safecast.Conv[uint64](tt.Count)
	if convErr != nil {
		return TypeLayout{}, &LayoutError{Kind: LayoutErrUnresolved, Type: tt.Elem}
	}
	return TypeLayout{
		SizeWords: mulWords(elem.SizeWords, n),
		ElemWords: elem.SizeWords,
		Len:       n,
	}, nil
}

// enumLayout is one tag word followed by a payload as large as the largest
// variant. An enum whose variants are all zero-sized is just the tag.
func (e *LayoutEngine) enumLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	info, ok := e.Types.EnumInfo(id)
	if !ok {
		return TypeLayout{}, &LayoutError{Kind: LayoutErrUnresolved, Type: id}
	}
	out := TypeLayout{TagWords: 1, Fields: make([]FieldLayout, 0, len(info.Variants))}
	var payload uint64
	for _, v := range info.Variants {
		vl, err := e.layoutOf(v.Type, state)
		if err != nil && err.Kind != LayoutErrTooLarge {
			return TypeLayout{}, err
		}
		out.Fields = append(out.Fields, FieldLayout{
			Name:        v.Name,
			Type:        v.Type,
			OffsetWords: 1,
			SizeWords:   vl.SizeWords,
		})
		payload = max(payload, vl.SizeWords)
	}
	out.SizeWords = addWords(1, payload)
	return out, nil
}

func (e *LayoutEngine) unionLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	info, ok := e.Types.UnionInfo(id)
	if !ok {
		return TypeLayout{}, &LayoutError{Kind: LayoutErrUnresolved, Type: id}
	}
	out := TypeLayout{Fields: make([]FieldLayout, 0, len(info.Members))}
	for i, m := range info.Members {
		ml, err := e.layoutOf(m, state)
		if err != nil && err.Kind != LayoutErrTooLarge {
			return TypeLayout{}, err
		}
		out.Fields = append(out.Fields, FieldLayout{
			Name:      strconv.Itoa(i),
			Type:      m,
			SizeWords: ml.SizeWords,
		})
		out.SizeWords = max(out.SizeWords, ml.SizeWords)
	}
	return out, nil
}

// addWords and mulWords saturate at MaxUint64 so an oversized child can
// never wrap its parent back under MaxAggregateWords.
func addWords(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func mulWords(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
