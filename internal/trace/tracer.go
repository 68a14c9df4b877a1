package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Tracer receives trace events. Implementations are goroutine-safe.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
}

// Enabled reports whether t records anything at all.
func Enabled(t Tracer) bool {
	return t != nil && t.Level() > LevelOff
}

// StorageMode selects where events go.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // written as they happen
	ModeRing                          // kept in memory, dumped on exit
	ModeBoth
)

func (m StorageMode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeRing:
		return "ring"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode converts a flag value to a StorageMode.
func ParseMode(s string) (StorageMode, error) {
	switch strings.ToLower(s) {
	case "stream":
		return ModeStream, nil
	case "ring":
		return ModeRing, nil
	case "both":
		return ModeBoth, nil
	}
	return ModeStream, fmt.Errorf("invalid trace mode: %q (expected: stream|ring|both)", s)
}

// Config holds tracer configuration.
type Config struct {
	Level      Level
	Mode       StorageMode
	Format     Format
	Output     io.Writer // stream output; OutputPath is used when nil
	OutputPath string    // "-" or empty for stderr
	RingSize   int       // default 4096
}

// New builds the tracer described by cfg. A ring is returned as
// *RingTracer, or inside a Fanout when streaming too, so callers can dump it.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	format := cfg.Format
	if format == FormatAuto {
		format = FormatText
		if strings.HasSuffix(cfg.OutputPath, ".ndjson") {
			format = FormatNDJSON
		}
	}
	var sinks Fanout
	if cfg.Mode == ModeStream || cfg.Mode == ModeBoth {
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, NewStreamTracer(w, cfg.Level, format))
	}
	if cfg.Mode == ModeRing || cfg.Mode == ModeBoth {
		sinks = append(sinks, NewRingTracer(cfg.RingSize, cfg.Level))
	}
	switch len(sinks) {
	case 0:
		return nil, fmt.Errorf("unknown trace mode: %v", cfg.Mode)
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return stderr{}, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}

// stderr writes to os.Stderr and is never closed.
type stderr struct{}

func (stderr) Write(p []byte) (int, error) { return os.Stderr.Write(p) }

// Fanout sends every event to each of its tracers.
type Fanout []Tracer

// Emit hands each tracer its own copy; stream tracers stamp Seq in place.
func (f Fanout) Emit(ev *Event) {
	for _, t := range f {
		cp := *ev
		t.Emit(&cp)
	}
}

func (f Fanout) Flush() error {
	errs := make([]error, 0, len(f))
	for _, t := range f {
		errs = append(errs, t.Flush())
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	errs := make([]error, 0, len(f))
	for _, t := range f {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

// Level is the finest level among the tracers.
func (f Fanout) Level() Level {
	var l Level
	for _, t := range f {
		l = max(l, t.Level())
	}
	return l
}

// Ring returns the first ring tracer of t, if any.
func Ring(t Tracer) (*RingTracer, bool) {
	switch v := t.(type) {
	case *RingTracer:
		return v, true
	case Fanout:
		for _, inner := range v {
			if r, ok := Ring(inner); ok {
				return r, true
			}
		}
	}
	return nil, false
}
