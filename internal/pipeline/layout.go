package pipeline

import (
	"errors"

	"fortio.org/safecast"

	"swayc/internal/diag"
	"swayc/internal/layout"
	"swayc/internal/source"
	"swayc/internal/types"
)

// validateLayouts computes the layout of every nominal type and reports
// recursive value types at their declaration. Aggregates over the size
// limit are left to code generation, which reports them where they are
// used.
func validateLayouts(tin *types.Interner, lay *layout.LayoutEngine, r diag.Reporter) {
	for i := 1; i < tin.Len(); i++ {
		id := safecast.MustConv[types.TypeID](i)
		var decl source.Span
		var name string
		switch tin.KindOf(id) {
		case types.KindStruct:
			info, _ := tin.StructInfo(id)
			decl, name = info.Decl, info.Name
		case types.KindEnum:
			info, _ := tin.EnumInfo(id)
			decl, name = info.Decl, info.Name
		default:
			continue
		}
		_, err := lay.LayoutOf(id)
		switch {
		case err == nil, errors.Is(err, layout.ErrAggregateTooLarge):
		case errors.Is(err, layout.ErrRecursiveType):
			diag.ReportError(r, diag.LayoutRecursiveType, decl,
				"type "+name+" contains itself and has no finite size").Emit()
		default:
			diag.ReportError(r, diag.InternalSizeComputationFailed, decl, err.Error()).Emit()
		}
	}
}
