// Package value defines the cell values that flow through a column chain.
//
// A Cell is a tagged value with exactly two variants, Text and Date. Either
// variant may be absent, and absence is distinct from the empty string: an
// absent Text renders as "" in the output but operations can tell the two
// apart (date parsing, for example, passes absence through instead of failing).
package value

import "time"

// Kind identifies the variant of a Cell. Kinds are bit flags so an operation
// can declare that it accepts several of them.
type Kind uint8

const (
	Text Kind = 1 << iota
	Date

	// Any accepts every variant.
	Any = Text | Date
)

// String returns the lower-case name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Date:
		return "date"
	case Any:
		return "any"
	case 0:
		return "none"
	default:
		return "invalid"
	}
}

// Has reports whether every bit of other is set in k.
func (k Kind) Has(other Kind) bool { return other != 0 && k&other == other }

// DateLayout is the canonical rendering of Date cells.
const DateLayout = "2006-01-02"

// Cell is a single tagged value. The zero Cell is an absent Text.
type Cell struct {
	kind  Kind
	valid bool
	s     string
	d     time.Time
}

// TextOf returns a present Text cell.
func TextOf(s string) Cell { return Cell{kind: Text, valid: true, s: s} }

// NullText returns an absent Text cell.
func NullText() Cell { return Cell{kind: Text} }

// DateOf returns a present Date cell normalized to midnight UTC.
func DateOf(t time.Time) Cell {
	y, m, d := t.Date()
	return Cell{kind: Date, valid: true, d: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// NullDate returns an absent Date cell.
func NullDate() Cell { return Cell{kind: Date} }

// Kind reports the variant of c.
func (c Cell) Kind() Kind {
	if c.kind == 0 {
		return Text
	}
	return c.kind
}

// IsNull reports whether the value is absent.
func (c Cell) IsNull() bool { return !c.valid }

// Text returns the text payload; ok is false for absent or non-Text cells.
func (c Cell) Text() (s string, ok bool) {
	if c.Kind() != Text || !c.valid {
		return "", false
	}
	return c.s, true
}

// Date returns the date payload; ok is false for absent or non-Date cells.
func (c Cell) Date() (t time.Time, ok bool) {
	if c.kind != Date || !c.valid {
		return time.Time{}, false
	}
	return c.d, true
}

// String renders the cell for output: absent values become "", dates use
// DateLayout.
func (c Cell) String() string {
	if !c.valid {
		return ""
	}
	if c.kind == Date {
		return c.d.Format(DateLayout)
	}
	return c.s
}
