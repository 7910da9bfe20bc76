package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ysv-rs/ysv/internal/diag"
)

// ExprKind identifies which shape an Expression was matched as.
type ExprKind int

const (
	ExprOperation    ExprKind = iota + 1 // bare name: uppercase, lowercase, line-number
	ExprInput                            // {input: Name}
	ExprAliases                          // {input: [A, B]}
	ExprTrim                             // {trim: 10}
	ExprReplace                          // {replace: {from: to, ...}}
	ExprReplaceRegex                     // {replace_regex: {pattern: p, replace: t}}
	ExprVar                              // {var: name}
	ExprValue                            // {value: text}
	ExprFrom                             // {from: name}
	ExprDate                             // {date: format}
	ExprDates                            // {date: [format, ...]}
)

var exprKindNames = map[ExprKind]string{
	ExprOperation:    "operation",
	ExprInput:        "input",
	ExprAliases:      "input",
	ExprTrim:         "trim",
	ExprReplace:      "replace",
	ExprReplaceRegex: "replace_regex",
	ExprVar:          "var",
	ExprValue:        "value",
	ExprFrom:         "from",
	ExprDate:         "date",
	ExprDates:        "date",
}

func (k ExprKind) String() string {
	if s, ok := exprKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ExprKind(%d)", int(k))
}

// ReplacePair is one literal substitution of a replace step.
type ReplacePair struct {
	Old string
	New string
}

// Expression is one declared step of a column chain. Only the fields that
// belong to Kind are populated.
type Expression struct {
	Kind ExprKind

	// Name is the operation name (ExprOperation), input column (ExprInput),
	// variable (ExprVar) or reference (ExprFrom).
	Name string
	// Names holds the alias list of ExprAliases.
	Names []string
	// Max is the length bound of ExprTrim.
	Max int
	// Pairs are the ordered substitutions of ExprReplace.
	Pairs []ReplacePair
	// Pattern and Template belong to ExprReplaceRegex.
	Pattern  string
	Template string
	// Value is the literal of ExprValue.
	Value string
	// Formats holds one (ExprDate) or more (ExprDates) date formats.
	Formats []string

	// Line is the 1-based line of the step in the document.
	Line int
}

// shape is one entry of the expression grammar. match returns ok=false when
// the node does not have this shape, letting the next shape try.
type shape struct {
	name  string
	match func(n *yaml.Node) (Expression, bool)
}

// exprShapes lists every expression shape in priority order. The first shape
// that matches a node decides its meaning, so an ambiguous node (for
// instance a mapping that carries both input and date) is read as the earlier
// shape. Extra keys on a mapping are ignored.
var exprShapes = []shape{
	{"operation", matchOperation},
	{"input", matchInput},
	{"input-aliases", matchAliases},
	{"trim", matchTrim},
	{"replace", matchReplace},
	{"replace_regex", matchReplaceRegex},
	{"var", scalarKey("var", ExprVar, func(e *Expression, s string) { e.Name = s })},
	{"value", scalarKey("value", ExprValue, func(e *Expression, s string) { e.Value = s })},
	{"from", scalarKey("from", ExprFrom, func(e *Expression, s string) { e.Name = s })},
	{"date", scalarKey("date", ExprDate, func(e *Expression, s string) { e.Formats = []string{s} })},
	{"date-list", matchDates},
}

// ParseExpression matches n against the expression grammar.
func ParseExpression(n *yaml.Node) (Expression, error) {
	n = deref(n)
	for _, s := range exprShapes {
		if e, ok := s.match(n); ok {
			e.Line = n.Line
			return e, nil
		}
	}
	return Expression{}, unsupported(n)
}

func parseColumnSpec(n *yaml.Node) (ColumnSpec, error) {
	n = deref(n)
	if isScalar(n) {
		return ColumnSpec{Shorthand: n.Value, IsShorthand: true}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return ColumnSpec{}, unsupported(n)
	}
	steps := make([]Expression, 0, len(n.Content))
	for _, item := range n.Content {
		e, err := ParseExpression(item)
		if err != nil {
			return ColumnSpec{}, err
		}
		steps = append(steps, e)
	}
	return ColumnSpec{Steps: steps}, nil
}

// unsupported builds the error for a node that matches no shape. The
// offending literal is re-encoded in flow style so it fits on one line.
func unsupported(n *yaml.Node) error {
	return &diag.ConfigParseError{
		Operation:   literal(n),
		Kind:        diag.KindUnknownTransformation,
		Description: diag.UnsupportedTransformation,
		Line:        n.Line,
	}
}

func literal(n *yaml.Node) string {
	if n == nil {
		return ""
	}
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	cp := *n
	cp.Style |= yaml.FlowStyle
	out, err := yaml.Marshal(&cp)
	if err != nil {
		return fmt.Sprintf("<%s>", n.Tag)
	}
	return strings.TrimSpace(string(out))
}

// isScalar reports whether n is a non-null scalar.
func isScalar(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() != "!!null"
}

// lookup returns the value for key in mapping n.
func lookup(n *yaml.Node, key string) (*yaml.Node, bool) {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return deref(n.Content[i+1]), true
		}
	}
	return nil, false
}

// scalars returns the values of a sequence made only of scalars.
func scalars(n *yaml.Node) ([]string, bool) {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, false
	}
	out := make([]string, 0, len(n.Content))
	for _, c := range n.Content {
		c = deref(c)
		if !isScalar(c) {
			return nil, false
		}
		out = append(out, c.Value)
	}
	return out, true
}

func matchOperation(n *yaml.Node) (Expression, bool) {
	if !isScalar(n) {
		return Expression{}, false
	}
	return Expression{Kind: ExprOperation, Name: n.Value}, true
}

func matchInput(n *yaml.Node) (Expression, bool) {
	v, ok := lookup(n, "input")
	if !ok || !isScalar(v) {
		return Expression{}, false
	}
	return Expression{Kind: ExprInput, Name: v.Value}, true
}

func matchAliases(n *yaml.Node) (Expression, bool) {
	v, ok := lookup(n, "input")
	if !ok {
		return Expression{}, false
	}
	names, ok := scalars(v)
	if !ok {
		return Expression{}, false
	}
	return Expression{Kind: ExprAliases, Names: names}, true
}

func matchTrim(n *yaml.Node) (Expression, bool) {
	v, ok := lookup(n, "trim")
	if !ok || !isScalar(v) || v.ShortTag() != "!!int" {
		return Expression{}, false
	}
	var limit int
	if err := v.Decode(&limit); err != nil {
		return Expression{}, false
	}
	return Expression{Kind: ExprTrim, Max: limit}, true
}

func matchReplace(n *yaml.Node) (Expression, bool) {
	v, ok := lookup(n, "replace")
	if !ok || v.Kind != yaml.MappingNode {
		return Expression{}, false
	}
	pairs := make([]ReplacePair, 0, len(v.Content)/2)
	for i := 0; i+1 < len(v.Content); i += 2 {
		k, val := deref(v.Content[i]), deref(v.Content[i+1])
		if !isScalar(k) || !isScalar(val) {
			return Expression{}, false
		}
		pairs = append(pairs, ReplacePair{Old: k.Value, New: val.Value})
	}
	return Expression{Kind: ExprReplace, Pairs: pairs}, true
}

func matchReplaceRegex(n *yaml.Node) (Expression, bool) {
	v, ok := lookup(n, "replace_regex")
	if !ok {
		return Expression{}, false
	}
	p, okP := lookup(v, "pattern")
	r, okR := lookup(v, "replace")
	if !okP || !okR || !isScalar(p) || !isScalar(r) {
		return Expression{}, false
	}
	return Expression{Kind: ExprReplaceRegex, Pattern: p.Value, Template: r.Value}, true
}

func matchDates(n *yaml.Node) (Expression, bool) {
	v, ok := lookup(n, "date")
	if !ok {
		return Expression{}, false
	}
	formats, ok := scalars(v)
	if !ok {
		return Expression{}, false
	}
	return Expression{Kind: ExprDates, Formats: formats}, true
}

// scalarKey matches a mapping whose key holds a scalar.
func scalarKey(key string, kind ExprKind, set func(*Expression, string)) func(*yaml.Node) (Expression, bool) {
	return func(n *yaml.Node) (Expression, bool) {
		v, ok := lookup(n, key)
		if !ok || !isScalar(v) {
			return Expression{}, false
		}
		e := Expression{Kind: kind}
		set(&e, v.Value)
		return e, true
	}
}
