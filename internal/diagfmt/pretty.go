// Package diagfmt renders diagnostics for the CLI. The diag package stays
// data-only; everything about presentation lives here.
package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"latch/internal/diag"
	"latch/internal/source"
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	ShowNotes bool
}

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan)
	bugColor  = color.New(color.FgMagenta, color.Bold)
	noteColor = color.New(color.Faint)
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>, затем Notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		fmt.Fprintf(w, "%s: %s %s: %s\n",
			position(fs, d.Primary),
			severity(d.Severity, opts.Color),
			d.Code.ID(),
			d.Message,
		)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			prefix := "note"
			if opts.Color {
				prefix = noteColor.Sprint(prefix)
			}
			fmt.Fprintf(w, "  %s: %s\n", prefix, n.Msg)
		}
	}
}

func position(fs *source.FileSet, sp source.Span) string {
	if fs != nil {
		if path, lc, ok := fs.Position(sp); ok {
			return fmt.Sprintf("%s:%d:%d", path, lc.Line, lc.Col)
		}
	}
	return sp.String()
}

func severity(s diag.Severity, colorize bool) string {
	text := s.String()
	if !colorize {
		return text
	}
	switch s {
	case diag.SevError:
		return errColor.Sprint(text)
	case diag.SevWarning:
		return warnColor.Sprint(text)
	case diag.SevBug:
		return bugColor.Sprint(text)
	default:
		return infoColor.Sprint(text)
	}
}
