package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swayc/internal/diag"
	"swayc/internal/diagfmt"
	"swayc/internal/logx"
	"swayc/internal/observ"
	"swayc/internal/prof"
	"swayc/internal/source"
	"swayc/internal/trace"
)

// session carries what every command needs: the context with logger and
// tracer, output streams and the diagnostics settings.
type session struct {
	ctx    context.Context
	log    *slog.Logger
	out    io.Writer
	errOut io.Writer

	color          bool
	quiet          bool
	timer          *observ.Timer
	maxDiagnostics int
	diagFormat     string

	root    *trace.Span
	closers []func()
}

func openSession(cmd *cobra.Command) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	s := &session{
		ctx:    cmd.Context(),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}

	colorValue, err := flags.GetString("color")
	if err != nil {
		return nil, err
	}
	if s.color, err = readColorMode(colorValue); err != nil {
		return nil, err
	}
	color.NoColor = !s.color

	if s.quiet, err = flags.GetBool("quiet"); err != nil {
		return nil, err
	}
	timings, err := flags.GetBool("timings")
	if err != nil {
		return nil, err
	}
	if timings {
		s.timer = observ.NewTimer()
	}
	if s.maxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
		return nil, err
	}
	if s.diagFormat, err = flags.GetString("diagnostics-format"); err != nil {
		return nil, err
	}
	switch s.diagFormat {
	case "pretty", "json":
	default:
		return nil, fmt.Errorf("invalid --diagnostics-format %q (expected pretty|json)", s.diagFormat)
	}

	if err := s.setupLogging(cmd); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.setupTracing(cmd); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.setupProfiling(cmd); err != nil {
		s.Close()
		return nil, err
	}
	s.ctx, s.root = trace.Start(s.ctx, trace.ScopeDriver, cmd.Name())
	return s, nil
}

// Close ends the command span, prints timings and releases log and trace
// outputs.
func (s *session) Close() {
	if s.root != nil {
		s.root.End("")
		s.root = nil
	}
	if s.timer != nil && !s.quiet {
		fmt.Fprint(s.errOut, s.timer.Summary())
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func readColorMode(value string) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return os.Getenv("NO_COLOR") == "" && isTerminal(os.Stderr), nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

func (s *session) setupLogging(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	levelStr, err := flags.GetString("log-level")
	if err != nil {
		return err
	}
	level, err := logx.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	logPath, err := flags.GetString("log-file")
	if err != nil {
		return err
	}
	opts := logx.Options{Level: level, Terminal: s.errOut}
	if s.quiet {
		opts.Terminal = nil
	}
	if logPath != "" {
		// #nosec G304 -- path comes from the command line
		f, err := os.Create(logPath)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		opts.File = f
		s.closers = append(s.closers, func() { _ = f.Close() })
	}
	s.log = logx.New(opts)
	s.ctx = logx.WithLogger(s.ctx, s.log)
	return nil
}

func (s *session) setupTracing(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	output, err := flags.GetString("trace")
	if err != nil {
		return fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	// an output without a level traces stages
	if level == trace.LevelOff && output != "" {
		level = trace.LevelStage
	}
	if level == trace.LevelOff {
		s.ctx = trace.WithTracer(s.ctx, trace.Nop)
		return nil
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return err
	}
	tracer, err := trace.New(trace.Config{Level: level, Mode: mode, OutputPath: output, RingSize: ringSize})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	s.ctx = trace.WithTracer(s.ctx, tracer)
	s.closers = append(s.closers, func() {
		if ring, ok := trace.Ring(tracer); ok && mode == trace.ModeRing {
			if err := ring.Dump(s.errOut, trace.FormatText); err != nil {
				fmt.Fprintf(s.errOut, "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(s.errOut, "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(s.errOut, "trace: close error: %v\n", err)
		}
	})
	return nil
}

// report prints diagnostics in the selected format, errors first.
func (s *session) report(files *source.FileSet, warnings, errors []diag.Diagnostic) error {
	bag := diag.NewBag(s.maxDiagnostics)
	for _, d := range errors {
		bag.Add(d)
	}
	for _, d := range warnings {
		bag.Add(d)
	}
	if bag.Len() == 0 {
		return nil
	}
	bag.Sort()
	if s.diagFormat == "json" {
		return diagfmt.JSON(s.out, bag, files, diagfmt.JSONOpts{
			IncludePositions: true,
			IncludeNotes:     true,
			Max:              s.maxDiagnostics,
		})
	}
	diagfmt.Pretty(s.errOut, bag, files, diagfmt.PrettyOpts{
		Color:     s.color,
		ShowNotes: true,
		Max:       s.maxDiagnostics,
	})
	return nil
}

// setupProfiling starts the runtime profiles requested on the command line;
// they stop when the session closes.
func (s *session) setupProfiling(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return err
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return err
	}
	if opts.RuntimeTrace, err = flags.GetString("runtime-trace"); err != nil {
		return err
	}
	if opts == (prof.Options{}) {
		return nil
	}
	p, err := prof.Start(opts)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() {
		if err := p.Stop(); err != nil {
			fmt.Fprintf(s.errOut, "profile: %v\n", err)
		}
	})
	return nil
}
