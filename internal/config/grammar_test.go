package config

import (
	"errors"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ysv-rs/ysv/internal/diag"
)

func parseNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return doc.Content[0]
}

// TestParseExpressionShapes covers every shape plus the inputs that could
// be read more than one way; the earlier shape always wins.
func TestParseExpressionShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		want Expression
	}{
		{"operation", `uppercase`, Expression{Kind: ExprOperation, Name: "uppercase"}},
		{"unknown_operation_still_parses", `shout`, Expression{Kind: ExprOperation, Name: "shout"}},
		{"numeric_scalar_is_operation", `42`, Expression{Kind: ExprOperation, Name: "42"}},
		{"input", `{input: Name}`, Expression{Kind: ExprInput, Name: "Name"}},
		{"input_numeric_name", `{input: 2020}`, Expression{Kind: ExprInput, Name: "2020"}},
		{"aliases", `{input: [Date, date]}`, Expression{Kind: ExprAliases, Names: []string{"Date", "date"}}},
		{"aliases_empty", `{input: []}`, Expression{Kind: ExprAliases, Names: []string{}}},
		{"trim", `{trim: 3}`, Expression{Kind: ExprTrim, Max: 3}},
		{"replace_keeps_order", `{replace: {b: c, a: b}}`, Expression{Kind: ExprReplace, Pairs: []ReplacePair{{"b", "c"}, {"a", "b"}}}},
		{"replace_regex", `{replace_regex: {pattern: '(\d+)', replace: '<$1>'}}`, Expression{Kind: ExprReplaceRegex, Pattern: `(\d+)`, Template: "<$1>"}},
		{"var", `{var: batch}`, Expression{Kind: ExprVar, Name: "batch"}},
		{"value", `{value: "constant"}`, Expression{Kind: ExprValue, Value: "constant"}},
		{"from", `{from: other}`, Expression{Kind: ExprFrom, Name: "other"}},
		{"date", `{date: "%Y-%m-%d"}`, Expression{Kind: ExprDate, Formats: []string{"%Y-%m-%d"}}},
		{"date_sentinel", `{date: excel-ordinal}`, Expression{Kind: ExprDate, Formats: []string{"excel-ordinal"}}},
		{"dates", `{date: ["%Y", "%m/%d/%Y"]}`, Expression{Kind: ExprDates, Formats: []string{"%Y", "%m/%d/%Y"}}},

		// Ambiguous mappings resolve to the first shape in priority order.
		{"input_beats_date", `{date: "%Y", input: A}`, Expression{Kind: ExprInput, Name: "A"}},
		{"trim_beats_value", `{value: v, trim: 2}`, Expression{Kind: ExprTrim, Max: 2}},
		{"var_beats_value", `{value: v, var: x}`, Expression{Kind: ExprVar, Name: "x"}},
		{"non_int_trim_falls_through", `{trim: "2", value: v}`, Expression{Kind: ExprValue, Value: "v"}},
		{"bad_regex_shape_falls_through", `{replace_regex: {pattern: x}, var: y}`, Expression{Kind: ExprVar, Name: "y"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseExpression(parseNode(t, tc.src))
			if err != nil {
				t.Fatalf("ParseExpression(%s): %v", tc.src, err)
			}
			got.Line = 0
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseExpression(%s)=%+v want %+v", tc.src, got, tc.want)
			}
		})
	}
}

func TestParseExpressionUnsupported(t *testing.T) {
	t.Parallel()

	cases := []struct {
		src     string
		literal string
	}{
		{`{shout: loud}`, "{shout: loud}"},
		{`{trim: abc}`, "{trim: abc}"},
		{`{input: [a, {b: c}]}`, "{input: [a, {b: c}]}"},
		{`[uppercase]`, "[uppercase]"},
		{`~`, "~"},
		{`{replace: {a: [b]}}`, "{replace: {a: [b]}}"},
	}
	for _, tc := range cases {
		_, err := ParseExpression(parseNode(t, tc.src))
		var cpe *diag.ConfigParseError
		if !errors.As(err, &cpe) {
			t.Fatalf("%s: want ConfigParseError, got %v", tc.src, err)
		}
		if cpe.Kind != diag.KindUnknownTransformation || cpe.Description != diag.UnsupportedTransformation {
			t.Fatalf("%s: unexpected error %+v", tc.src, cpe)
		}
		if cpe.Operation != tc.literal {
			t.Fatalf("%s: literal=%q want %q", tc.src, cpe.Operation, tc.literal)
		}
		if cpe.Line != 1 {
			t.Fatalf("%s: line=%d want 1", tc.src, cpe.Line)
		}
	}
}

func TestParseFollowsAnchors(t *testing.T) {
	t.Parallel()

	src := `
version: 1
steps: &shout
  - input: Name
  - uppercase
columns:
  a: *shout
  b: *shout
`
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Columns) != 2 {
		t.Fatalf("columns=%d", len(doc.Columns))
	}
	for _, c := range doc.Columns {
		if len(c.Spec.Steps) != 2 || c.Spec.Steps[1].Name != "uppercase" {
			t.Fatalf("column %s: %+v", c.Name, c.Spec)
		}
	}
}

func TestUnsupportedColumnCarriesName(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("version: 1\ncolumns:\n  ok: A\n  broken:\n    - {nope: 1}\n"))
	var cpe *diag.ConfigParseError
	if !errors.As(err, &cpe) {
		t.Fatalf("want ConfigParseError, got %v", err)
	}
	if cpe.Column != "broken" || cpe.Line != 5 {
		t.Fatalf("unexpected error %+v", cpe)
	}
}

func TestExprKindString(t *testing.T) {
	t.Parallel()

	if ExprReplaceRegex.String() != "replace_regex" || ExprDates.String() != "date" {
		t.Fatal("unexpected kind names")
	}
	if ExprKind(99).String() != "ExprKind(99)" {
		t.Fatalf("got %q", ExprKind(99).String())
	}
}
