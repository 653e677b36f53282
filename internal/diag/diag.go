// Package diag implements the user-visible diagnostic model:
// severity-tagged diagnostics with source spans and attached notes/helps,
// a multi-line caret-underline renderer, and a mutex-serialized structured
// logger wired through logrus.
package diag

import (
	"fmt"
	"strings"
)

// Severity orders the diagnostic taxonomy. Internal invariant violations
// are not a Severity: they panic("BUG: ...") instead of becoming
// diagnostics.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
	SeverityHelp
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	case SeverityHelp:
		return "help"
	default:
		return "?"
	}
}

// SourceSpan locates a diagnostic in a source file: 1-based line and
// column, plus the span's length in characters.
type SourceSpan struct {
	File   string
	Line   int
	Column int
	Len    int
}

// IsValid reports whether the span points at real source.
func (s SourceSpan) IsValid() bool { return s.File != "" && s.Line > 0 }

// Diagnostic is one user-visible report. Notes and Helps are secondary
// elements rendered under their parent; they may carry their own spans.
type Diagnostic struct {
	Severity Severity
	ID       string
	Message  string
	Span     SourceSpan

	// SourceLine is the text of Span's line, captured by whoever built the
	// diagnostic; the renderer has no file-system access of its own.
	SourceLine string

	Children []Diagnostic
}

// Errorf builds an error diagnostic the way fmt.Errorf builds an error.
func Errorf(span SourceSpan, id, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, ID: id, Span: span, Message: fmt.Sprintf(format, args...)}
}

// Warningf builds a warning diagnostic.
func Warningf(span SourceSpan, id, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, ID: id, Span: span, Message: fmt.Sprintf(format, args...)}
}

// WithNote attaches a note to d and returns the result.
func (d Diagnostic) WithNote(span SourceSpan, format string, args ...any) Diagnostic {
	d.Children = append(d.Children, Diagnostic{
		Severity: SeverityNote, Span: span, Message: fmt.Sprintf(format, args...),
	})
	return d
}

// WithHelp attaches a help element to d and returns the result.
func (d Diagnostic) WithHelp(format string, args ...any) Diagnostic {
	d.Children = append(d.Children, Diagnostic{
		Severity: SeverityHelp, Message: fmt.Sprintf(format, args...),
	})
	return d
}

// RenderOptions mirrors the CLI's diagnostic flags.
type RenderOptions struct {
	OneLine      bool // --diag-one-line
	AbsolutePath bool // --diag-absolute (paths are pre-resolved by the driver)
	ShowID       bool // --diag-id
	Color        bool // --log-color
	MaxColumn    int  // --diag-max-column; 0 means no truncation
}

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiRed   = "\033[31m"
	ansiYel   = "\033[33m"
	ansiCyan  = "\033[36m"
)

func severityColor(s Severity) string {
	switch s {
	case SeverityError:
		return ansiRed
	case SeverityWarning:
		return ansiYel
	default:
		return ansiCyan
	}
}

// Render formats d per opts. The default layout is multi-line: a file:line:
// column header, the severity and message, the source line, and a caret
// underline, followed by each child indented one level.
func Render(d Diagnostic, opts RenderOptions) string {
	var sb strings.Builder
	render(&sb, d, opts, 0)
	return sb.String()
}

func render(sb *strings.Builder, d Diagnostic, opts RenderOptions, depth int) {
	indent := strings.Repeat("  ", depth)

	head := d.Severity.String()
	if opts.ShowID && d.ID != "" {
		head += "[" + d.ID + "]"
	}
	if opts.Color {
		head = ansiBold + severityColor(d.Severity) + head + ansiReset
	}

	if opts.OneLine {
		if d.Span.IsValid() {
			fmt.Fprintf(sb, "%s%s:%d:%d: %s: %s\n", indent, d.Span.File, d.Span.Line, d.Span.Column, head, d.Message)
		} else {
			fmt.Fprintf(sb, "%s%s: %s\n", indent, head, d.Message)
		}
	} else {
		if d.Span.IsValid() {
			fmt.Fprintf(sb, "%s--> %s:%d:%d\n", indent, d.Span.File, d.Span.Line, d.Span.Column)
		}
		fmt.Fprintf(sb, "%s%s: %s\n", indent, head, d.Message)
		if d.Span.IsValid() && d.SourceLine != "" {
			line, caretCol := clipSourceLine(d.SourceLine, d.Span.Column, opts.MaxColumn)
			fmt.Fprintf(sb, "%s    | %s\n", indent, line)
			underline := strings.Repeat(" ", caretCol-1) + carets(d.Span.Len)
			if opts.Color {
				underline = severityColor(d.Severity) + underline + ansiReset
			}
			fmt.Fprintf(sb, "%s    | %s\n", indent, underline)
		}
	}

	for _, child := range d.Children {
		render(sb, child, opts, depth+1)
	}
}

func carets(n int) string {
	if n < 1 {
		n = 1
	}
	return strings.Repeat("^", n)
}

// clipSourceLine truncates a source line wider than maxColumn, keeping left
// context around the caret column and marking both cut edges with an
// ellipsis. It returns the clipped text and the caret's column within it.
func clipSourceLine(line string, column, maxColumn int) (string, int) {
	if maxColumn <= 0 || len(line) <= maxColumn {
		if column < 1 {
			column = 1
		}
		return line, column
	}
	const ellipsis = "..."
	keep := maxColumn - len(ellipsis)

	if column <= keep {
		return line[:keep] + ellipsis, column
	}

	// Keep a window ending a little past the caret so the caret lands
	// inside the visible region with some left context.
	start := column - keep/2
	if start+keep > len(line) {
		start = len(line) - keep
	}
	clipped := ellipsis + line[start:start+keep]
	if start+keep < len(line) {
		clipped += ellipsis
	}
	return clipped, column - start + len(ellipsis)
}
