package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff Level = iota
	// LevelStage records driver commands and pipeline stages.
	LevelStage
	// LevelPass adds optimisation passes.
	LevelPass
	// LevelDebug records everything including per-function work.
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelStage:
		return "stage"
	case LevelPass:
		return "pass"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "off":
		return LevelOff, nil
	case "stage":
		return LevelStage, nil
	case "pass":
		return LevelPass, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|stage|pass|debug)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelStage:
		return scope <= ScopeStage
	case LevelPass:
		return scope <= ScopePass
	case LevelDebug:
		return true
	}
	return false
}
