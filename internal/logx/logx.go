// Package logx builds the compiler's structured logger.
//
// Handlers are fanned out with slog-multi: a text handler for the terminal
// and, optionally, a JSON handler for a log file. The logger travels in the
// context so stages never reach for a global.
package logx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures New.
type Options struct {
	Level slog.Level
	// Terminal receives human-readable records; nil disables it.
	Terminal io.Writer
	// File receives JSON records at debug level; nil disables it.
	File io.Writer
}

// New builds a logger fanning out to the configured handlers.
func New(opts Options) *slog.Logger {
	var handlers []slog.Handler
	if opts.Terminal != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Terminal, &slog.HandlerOptions{
			Level: opts.Level,
		}))
	}
	if opts.File != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.File, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		}))
	}
	if len(handlers) == 0 {
		return Discard()
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid log level %q (expected: debug|info|warn|error)", s)
	}
	return lvl, nil
}

type ctxKey struct{}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = Discard()
	}
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts the logger from ctx, defaulting to Discard.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return Discard()
}
