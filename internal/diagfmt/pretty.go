package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"swayc/internal/diag"
	"swayc/internal/source"
)

const internalNote = "this is a compiler bug; please file an issue with the input that triggered it"

type palette struct {
	err, warn, info, note, loc, caret *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		err:   mk(color.FgRed, color.Bold),
		warn:  mk(color.FgYellow, color.Bold),
		info:  mk(color.FgCyan),
		note:  mk(color.FgBlue),
		loc:   mk(color.Bold),
		caret: mk(color.FgGreen, color.Bold),
	}
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty writes diagnostics in human-readable form. Items are printed in bag
// order, so callers sort the bag first.
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//	  <source line>
//	  ^~~~
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	pal := newPalette(opts.Color)
	items := bag.Items()
	if opts.Max > 0 && len(items) > opts.Max {
		items = items[:opts.Max]
	}
	for i := range items {
		writeOne(w, &items[i], fs, opts, pal)
	}
}

func writeOne(w io.Writer, d *diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, pal palette) {
	loc := location(d.Primary, fs, opts.PathMode)
	sev := pal.severity(d.Severity).Sprint(d.Severity.String())
	fmt.Fprintf(w, "%s: %s[%s]: %s\n", pal.loc.Sprint(loc), sev, d.Code.ID(), d.Message)
	excerpt(w, d.Primary, fs, pal)
	if opts.ShowNotes {
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  %s %s: %s\n", pal.note.Sprint("note"), location(n.Span, fs, opts.PathMode), n.Msg)
		}
	}
	if d.IsInternal() {
		fmt.Fprintf(w, "  %s: %s\n", pal.note.Sprint("note"), internalNote)
	}
}

func location(sp source.Span, fs *source.FileSet, mode PathMode) string {
	f := fs.Get(sp.File)
	if f == nil {
		return "<unknown>"
	}
	path := f.Path
	if mode == PathModeBasename {
		path = filepath.Base(path)
	}
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", path, start.Line, start.Col)
}

// excerpt prints the first line of sp with carets under the spanned columns.
// Column widths come from runewidth so wide glyphs keep the carets aligned.
func excerpt(w io.Writer, sp source.Span, fs *source.FileSet, pal palette) {
	f := fs.Get(sp.File)
	if f == nil || len(f.Content) == 0 {
		return
	}
	start, end := fs.Resolve(sp)
	line := f.GetLine(start.Line)
	if line == "" {
		return
	}
	line = strings.ReplaceAll(line, "\t", " ")
	runes := []rune(line)
	// Col counts bytes; convert to a rune index on the line.
	prefix := byteColToRunes(line, start.Col)
	stop := len(runes)
	if end.Line == start.Line {
		stop = byteColToRunes(line, end.Col)
	}
	if stop <= prefix {
		stop = prefix + 1
	}
	if stop > len(runes) {
		stop = len(runes)
	}
	pad := runewidth.StringWidth(string(runes[:prefix]))
	width := 1
	if prefix < stop {
		width = max(runewidth.StringWidth(string(runes[prefix:stop])), 1)
	}
	marks := "^" + strings.Repeat("~", width-1)
	fmt.Fprintf(w, "  %s\n  %s%s\n", line, strings.Repeat(" ", pad), pal.caret.Sprint(marks))
}

func byteColToRunes(line string, col uint32) int {
	if col == 0 {
		return 0
	}
	off := int(col) - 1
	if off > len(line) {
		off = len(line)
	}
	return len([]rune(line[:off]))
}
