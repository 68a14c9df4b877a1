package types

import (
	"fmt"
	"strings"
)

// String renders id in source-like syntax.
func (in *Interner) String(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	switch tt.Kind {
	case KindErrorRecovery:
		return "{error}"
	case KindUnit:
		return "()"
	case KindBool:
		return "bool"
	case KindUint:
		return fmt.Sprintf("u%d", tt.Width)
	case KindByte:
		return "byte"
	case KindB256:
		return "b256"
	case KindStr:
		return fmt.Sprintf("str[%d]", tt.Count)
	case KindArray:
		return fmt.Sprintf("[%s; %d]", in.String(tt.Elem), tt.Count)
	case KindStruct:
		info, _ := in.StructInfo(id)
		return info.Name
	case KindEnum:
		info, _ := in.EnumInfo(id)
		return info.Name
	case KindTuple:
		info, _ := in.TupleInfo(id)
		return "(" + in.join(info.Elems) + ")"
	case KindUnion:
		info, _ := in.UnionInfo(id)
		return "{ " + strings.ReplaceAll(in.join(info.Members), ", ", " | ") + " }"
	case KindContract:
		return "contract"
	case KindContractCaller:
		name, _ := in.CallerABI(id)
		return "ContractCaller<" + name + ">"
	case KindPointer:
		return "ptr " + in.String(tt.Elem)
	default:
		return tt.Kind.String()
	}
}

func (in *Interner) join(ids []TypeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = in.String(id)
	}
	return strings.Join(parts, ", ")
}
