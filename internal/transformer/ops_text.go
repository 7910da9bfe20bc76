package transformer

import (
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/coregx/coregex"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ysv-rs/ysv/internal/value"
)

// Input reads the raw field at Index. Invalid UTF-8 becomes "", and an index
// past the end of a short row yields an absent value.
type Input struct{ Index int }

func (Input) Name() string         { return "input" }
func (Input) Accepts() value.Kind  { return value.Any }
func (Input) Produces() value.Kind { return value.Text }

func (op Input) Apply(_ value.Cell, rec Record, _ int) (value.Cell, error) {
	if op.Index < 0 || op.Index >= len(rec) {
		return value.NullText(), nil
	}
	s := rec[op.Index]
	if !utf8.ValidString(s) {
		return value.TextOf(""), nil
	}
	return value.TextOf(s), nil
}

// CaseMode selects the mapping applied by Case.
type CaseMode int

const (
	Upper CaseMode = iota
	Lower
)

// casers are pooled per mode; a cases.Caser keeps state between calls.
var casers = [...]sync.Pool{
	Upper: {New: func() any { c := cases.Upper(language.Und); return &c }},
	Lower: {New: func() any { c := cases.Lower(language.Und); return &c }},
}

// Case applies full Unicode case mapping, so "ß" upper-cases to "SS".
type Case struct{ Mode CaseMode }

func (op Case) Name() string {
	if op.Mode == Lower {
		return "lowercase"
	}
	return "uppercase"
}
func (Case) Accepts() value.Kind  { return value.Text }
func (Case) Produces() value.Kind { return value.Text }

func (op Case) Apply(v value.Cell, _ Record, _ int) (value.Cell, error) {
	if err := accepts(op, v); err != nil {
		return value.Cell{}, err
	}
	s, ok := v.Text()
	if !ok {
		return v, nil
	}
	pool := &casers[op.Mode]
	c := pool.Get().(*cases.Caser)
	out := c.String(s)
	pool.Put(c)
	return value.TextOf(out), nil
}

// Pair is one literal substitution.
type Pair struct{ Old, New string }

// Replace applies each pair in declaration order, each to the output of the
// previous one: {a: b, b: c} turns "a" into "c".
type Replace struct{ Pairs []Pair }

func (Replace) Name() string         { return "replace" }
func (Replace) Accepts() value.Kind  { return value.Text }
func (Replace) Produces() value.Kind { return value.Text }

func (op Replace) Apply(v value.Cell, _ Record, _ int) (value.Cell, error) {
	if err := accepts(op, v); err != nil {
		return value.Cell{}, err
	}
	s, ok := v.Text()
	if !ok {
		return v, nil
	}
	for _, p := range op.Pairs {
		s = strings.ReplaceAll(s, p.Old, p.New)
	}
	return value.TextOf(s), nil
}

// RegexReplace replaces every match of Regexp with Template, where $1 or
// ${name} expand to capture groups.
type RegexReplace struct {
	Regexp   *coregex.Regexp
	Template string
}

func (RegexReplace) Name() string         { return "replace_regex" }
func (RegexReplace) Accepts() value.Kind  { return value.Text }
func (RegexReplace) Produces() value.Kind { return value.Text }

func (op RegexReplace) Apply(v value.Cell, _ Record, _ int) (value.Cell, error) {
	if err := accepts(op, v); err != nil {
		return value.Cell{}, err
	}
	s, ok := v.Text()
	if !ok {
		return v, nil
	}
	return value.TextOf(op.Regexp.ReplaceAllString(s, op.Template)), nil
}

// Literal yields constant text. It backs both value and var steps; variables
// are folded into a Literal when the chain is compiled.
type Literal struct{ Value string }

func (Literal) Name() string         { return "value" }
func (Literal) Accepts() value.Kind  { return value.Any }
func (Literal) Produces() value.Kind { return value.Text }

func (op Literal) Apply(value.Cell, Record, int) (value.Cell, error) {
	return value.TextOf(op.Value), nil
}

// LineNumber yields the 1-based global line number.
type LineNumber struct{}

func (LineNumber) Name() string         { return "line-number" }
func (LineNumber) Accepts() value.Kind  { return value.Any }
func (LineNumber) Produces() value.Kind { return value.Text }

func (LineNumber) Apply(_ value.Cell, _ Record, line int) (value.Cell, error) {
	return value.TextOf(strconv.Itoa(line)), nil
}

// Trim bounds text to at most Max characters (runes, not bytes). Any other
// variant, absence included, passes through unchanged.
type Trim struct{ Max int }

func (Trim) Name() string         { return "trim" }
func (Trim) Accepts() value.Kind  { return value.Any }
func (Trim) Produces() value.Kind { return 0 }

func (op Trim) Apply(v value.Cell, _ Record, _ int) (value.Cell, error) {
	s, ok := v.Text()
	if !ok || utf8.RuneCountInString(s) <= op.Max {
		return v, nil
	}
	n := 0
	for i := range s {
		if n == op.Max {
			return value.TextOf(s[:i]), nil
		}
		n++
	}
	return v, nil
}

// From is reserved for referencing another output column. It currently
// passes its input through untouched.
type From struct{ Column string }

func (From) Name() string         { return "from" }
func (From) Accepts() value.Kind  { return value.Any }
func (From) Produces() value.Kind { return 0 }

func (From) Apply(v value.Cell, _ Record, _ int) (value.Cell, error) { return v, nil }
