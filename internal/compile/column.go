// Package compile binds a configuration document to a concrete input header.
//
// Column compiles one column specification into a transformer.Chain: input
// names are resolved to positions, regex patterns are compiled, variables
// and the excel-ordinal sentinel are resolved. New assembles every column
// into an immutable *transformer.Transformer, and Cache reuses it for later
// inputs that carry the same header.
package compile

import (
	"fmt"
	"strings"

	"github.com/coregx/coregex"

	"github.com/ysv-rs/ysv/internal/config"
	"github.com/ysv-rs/ysv/internal/diag"
	"github.com/ysv-rs/ysv/internal/transformer"
	"github.com/ysv-rs/ysv/internal/value"
)

// IndexByName maps an input column name to its zero-based position.
type IndexByName map[string]int

// IndexHeader scans header left to right. When a name repeats, the later
// position wins.
func IndexHeader(header []string) IndexByName {
	idx := make(IndexByName, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return idx
}

// Options tune compilation.
type Options struct {
	// Reporter receives non-fatal resolution diagnostics. Nil discards them.
	Reporter diag.Reporter
	// Strict type-checks every chain before any row is read.
	Strict bool
}

func (o Options) reporter() diag.Reporter {
	if o.Reporter == nil {
		return diag.Discard
	}
	return o.Reporter
}

// Column compiles spec against idx. Input steps whose names are not in the
// header are dropped with a column-not-found diagnostic. The returned error,
// when non-nil, is a *diag.ConfigParseError without Column set.
func Column(spec config.ColumnSpec, idx IndexByName, vars config.Variables, opts Options) (transformer.Chain, error) {
	if spec.IsShorthand {
		op, ok := resolveInput(spec.Shorthand, idx, opts)
		if !ok {
			return nil, nil
		}
		return transformer.Chain{op}, nil
	}

	chain := make(transformer.Chain, 0, len(spec.Steps))
	for _, e := range spec.Steps {
		op, err := compileStep(e, idx, vars, opts)
		if err != nil {
			return nil, err
		}
		if op != nil {
			chain = append(chain, op)
		}
	}
	if opts.Strict {
		if err := Check(chain); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

func compileStep(e config.Expression, idx IndexByName, vars config.Variables, opts Options) (transformer.Op, error) {
	switch e.Kind {
	case config.ExprOperation:
		return compileOperation(e)

	case config.ExprInput:
		op, ok := resolveInput(e.Name, idx, opts)
		if !ok {
			return nil, nil
		}
		return op, nil

	case config.ExprAliases:
		for _, name := range e.Names {
			if i, ok := idx[name]; ok {
				return transformer.Input{Index: i}, nil
			}
		}
		opts.reporter().Report(diag.Diagnostic{
			Kind:        diag.KindColumnNotFound,
			Operation:   "input",
			Description: fmt.Sprintf("Warning: none of input columns %s found.", quoteAll(e.Names)),
		})
		return nil, nil

	case config.ExprTrim:
		if e.Max < 0 {
			return nil, &diag.ConfigParseError{
				Operation:   "trim",
				Kind:        diag.KindConfig,
				Line:        e.Line,
				Description: fmt.Sprintf("trim length must not be negative, got %d", e.Max),
			}
		}
		return transformer.Trim{Max: e.Max}, nil

	case config.ExprReplace:
		pairs := make([]transformer.Pair, len(e.Pairs))
		for i, p := range e.Pairs {
			pairs[i] = transformer.Pair{Old: p.Old, New: p.New}
		}
		return transformer.Replace{Pairs: pairs}, nil

	case config.ExprReplaceRegex:
		re, err := coregex.Compile(e.Pattern)
		if err != nil {
			return nil, &diag.ConfigParseError{
				Operation:   "replace_regex",
				Kind:        diag.KindRegex,
				Line:        e.Line,
				Description: fmt.Sprintf("Cannot parse regular expression:\n\n  %s\n\nbecause: %v", e.Pattern, err),
			}
		}
		return transformer.RegexReplace{Regexp: re, Template: e.Template}, nil

	case config.ExprVar:
		return transformer.Literal{Value: vars.Get(e.Name)}, nil

	case config.ExprValue:
		return transformer.Literal{Value: e.Value}, nil

	case config.ExprFrom:
		opts.reporter().Report(diag.Diagnostic{
			Kind:        diag.KindConfig,
			Operation:   "from",
			Description: fmt.Sprintf("from %q is reserved; the value passes through unchanged", e.Name),
		})
		return transformer.From{Column: e.Name}, nil

	case config.ExprDate:
		if len(e.Formats) == 1 && e.Formats[0] == transformer.ExcelOrdinal {
			return transformer.ExcelDate{}, nil
		}
		f, err := dateFormat(e.Formats[0], e.Line)
		if err != nil {
			return nil, err
		}
		return transformer.Date{Format: f}, nil

	case config.ExprDates:
		formats := make([]transformer.DateFormat, 0, len(e.Formats))
		for _, raw := range e.Formats {
			f, err := dateFormat(raw, e.Line)
			if err != nil {
				return nil, err
			}
			formats = append(formats, f)
		}
		return transformer.DateMulti{Formats: formats}, nil
	}

	return nil, &diag.ConfigParseError{
		Operation:   e.Kind.String(),
		Kind:        diag.KindUnknownTransformation,
		Line:        e.Line,
		Description: diag.UnsupportedTransformation,
	}
}

// operations is the vocabulary of bare operation names.
var operations = map[string]transformer.Op{
	"uppercase":   transformer.Case{Mode: transformer.Upper},
	"lowercase":   transformer.Case{Mode: transformer.Lower},
	"line-number": transformer.LineNumber{},
}

func compileOperation(e config.Expression) (transformer.Op, error) {
	if op, ok := operations[e.Name]; ok {
		return op, nil
	}
	return nil, &diag.ConfigParseError{
		Operation:   e.Name,
		Kind:        diag.KindUnknownTransformation,
		Line:        e.Line,
		Description: diag.UnsupportedTransformation,
	}
}

func resolveInput(name string, idx IndexByName, opts Options) (transformer.Op, bool) {
	if i, ok := idx[name]; ok {
		return transformer.Input{Index: i}, true
	}
	opts.reporter().Report(diag.Diagnostic{
		Kind:        diag.KindColumnNotFound,
		Operation:   "input",
		Description: fmt.Sprintf("Warning: input column %s not found.", name),
	})
	return nil, false
}

func dateFormat(raw string, line int) (transformer.DateFormat, error) {
	if raw == transformer.ExcelOrdinal {
		return transformer.DateFormat{}, &diag.ConfigParseError{
			Operation:   "date",
			Kind:        diag.KindConfig,
			Line:        line,
			Description: fmt.Sprintf("%s is only valid on its own, as {date: %s}", transformer.ExcelOrdinal, transformer.ExcelOrdinal),
		}
	}
	f, err := transformer.NewDateFormat(raw)
	if err != nil {
		return transformer.DateFormat{}, &diag.ConfigParseError{
			Operation:   "date",
			Kind:        diag.KindConfig,
			Line:        line,
			Description: err.Error(),
		}
	}
	return f, nil
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

// Check walks chain from an absent Text and rejects any op applied to a
// variant it does not accept.
func Check(chain transformer.Chain) error {
	cur := value.Text
	for i, op := range chain {
		if !op.Accepts().Has(cur) {
			return &diag.ConfigParseError{
				Operation: op.Name(),
				Kind:      diag.KindTypeMismatch,
				Description: fmt.Sprintf("step %d: '%s' expects %s but receives %s",
					i+1, op.Name(), op.Accepts(), cur),
			}
		}
		if p := op.Produces(); p != 0 {
			cur = p
		}
	}
	return nil
}
