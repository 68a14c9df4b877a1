package layout

import (
	"errors"
	"fmt"
	"strings"

	"swayc/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a recursive value type with no fixed size.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	// LayoutErrUnresolved means an invalid or unresolved type reached layout.
	LayoutErrUnresolved
	// LayoutErrTooLarge means the aggregate exceeds MaxAggregateWords.
	LayoutErrTooLarge
	// LayoutErrFieldNotFound is returned by field and index lookups.
	LayoutErrFieldNotFound
)

var (
	ErrUnresolvedType    = errors.New("unresolved type")
	ErrAggregateTooLarge = errors.New("aggregate too large")
	ErrFieldNotFound     = errors.New("field not found")
	ErrRecursiveType     = errors.New("recursive value type")
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Cycle []types.TypeID // LayoutErrRecursiveUnsized
	Size  uint64         // LayoutErrTooLarge
	Field string         // LayoutErrFieldNotFound by name
	Index uint64         // LayoutErrFieldNotFound by index
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrUnresolved:
		return fmt.Sprintf("unresolved type#%d reached layout", e.Type)
	case LayoutErrTooLarge:
		return fmt.Sprintf("aggregate too large: %d words exceeds the limit of %d", e.Size, MaxAggregateWords)
	case LayoutErrFieldNotFound:
		if e.Field != "" {
			return fmt.Sprintf("field %q not found", e.Field)
		}
		return fmt.Sprintf("index %d out of range for type#%d", e.Index, e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}

// Is maps error kinds onto the package sentinels for errors.Is.
func (e *LayoutError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrUnresolvedType:
		return e.Kind == LayoutErrUnresolved
	case ErrAggregateTooLarge:
		return e.Kind == LayoutErrTooLarge
	case ErrFieldNotFound:
		return e.Kind == LayoutErrFieldNotFound
	case ErrRecursiveType:
		return e.Kind == LayoutErrRecursiveUnsized
	}
	return false
}

// IsInternal reports whether the error signals a broken upstream contract
// rather than a property of the user's program.
func (e *LayoutError) IsInternal() bool {
	return e != nil && (e.Kind == LayoutErrUnresolved || e.Kind == LayoutErrFieldNotFound)
}

func isTooLarge(err error) bool {
	return errors.Is(err, ErrAggregateTooLarge)
}
