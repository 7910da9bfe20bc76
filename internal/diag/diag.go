// Package diag holds the structured diagnostics shared by the compiler, the
// engine and the pipeline.
//
// Fatal configuration problems are returned as *ConfigParseError. Everything
// that does not stop a run (missing input columns, per-cell failures, skipped
// sources) is reported as a Diagnostic through a Reporter, which renders it
// with log/slog so the same record can be read by a person or a machine.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Kind classifies a diagnostic or error.
type Kind string

const (
	KindUnknownTransformation Kind = "unknown-transformation"
	KindRegex                 Kind = "regex"
	KindConfig                Kind = "config"
	KindColumnNotFound        Kind = "column-not-found"
	KindTypeMismatch          Kind = "type-mismatch"
	KindDateParse             Kind = "date-parse"
	KindSourceIO              Kind = "source-io"
)

// UnsupportedTransformation is the description attached to unknown
// operation names and unrecognized expression shapes.
const UnsupportedTransformation = "This transformation is not supported. " +
	"Please refer to documentation for the list of supported transformations."

// ConfigParseError is a fatal compilation error. Column is filled in by the
// assembler once the failing column is known.
type ConfigParseError struct {
	Column      string
	Operation   string
	Kind        Kind
	Description string
	// Line is the 1-based line in the configuration document, when known.
	Line int
}

func (e *ConfigParseError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Column != "" {
		fmt.Fprintf(&b, " in column %q", e.Column)
	}
	if e.Operation != "" {
		fmt.Fprintf(&b, " (%s)", e.Operation)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Description)
	return b.String()
}

// Diagnostic is a non-fatal event.
type Diagnostic struct {
	Kind        Kind
	Description string
	Column      string
	Operation   string
	Source      string
	Line        int
}

// Reporter receives non-fatal diagnostics. Implementations must be safe for
// use from a single goroutine at a time; the pipeline only reports from its
// producer.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Reporter = ReporterFunc(func(Diagnostic) {})

// SlogReporter writes diagnostics as warnings on a slog.Logger.
type SlogReporter struct {
	Logger *slog.Logger
}

// NewSlogReporter returns a reporter bound to l (slog.Default when nil).
func NewSlogReporter(l *slog.Logger) *SlogReporter {
	if l == nil {
		l = slog.Default()
	}
	return &SlogReporter{Logger: l}
}

// Report logs d at warning level with one attribute per known field.
func (r *SlogReporter) Report(d Diagnostic) {
	attrs := []slog.Attr{slog.String("kind", string(d.Kind))}
	if d.Column != "" {
		attrs = append(attrs, slog.String("column", d.Column))
	}
	if d.Operation != "" {
		attrs = append(attrs, slog.String("operation", d.Operation))
	}
	if d.Source != "" {
		attrs = append(attrs, slog.String("source", d.Source))
	}
	if d.Line > 0 {
		attrs = append(attrs, slog.Int("line", d.Line))
	}
	r.Logger.LogAttrs(context.Background(), slog.LevelWarn, d.Description, attrs...)
}

// Collector keeps diagnostics in memory. Handy in tests and for -validate.
type Collector struct {
	Items []Diagnostic
}

func (c *Collector) Report(d Diagnostic) { c.Items = append(c.Items, d) }

// Count returns how many collected diagnostics have kind k.
func (c *Collector) Count(k Kind) int {
	n := 0
	for _, d := range c.Items {
		if d.Kind == k {
			n++
		}
	}
	return n
}
