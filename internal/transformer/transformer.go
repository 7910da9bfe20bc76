package transformer

import (
	"errors"

	"github.com/ysv-rs/ysv/internal/value"
)

// Chain is the ordered list of ops of one output column. A nil Chain always
// yields an absent value.
type Chain []Op

// Apply folds the chain over rec starting from an absent Text. The first
// failing op stops the fold and its error is returned.
func (c Chain) Apply(rec Record, line int) (value.Cell, *OpError) {
	v := value.NullText()
	for _, op := range c {
		next, err := op.Apply(v, rec, line)
		if err != nil {
			var oe *OpError
			if !errors.As(err, &oe) {
				oe = &OpError{Op: op.Name(), Kind: "operation", Description: err.Error()}
			}
			return value.Cell{}, oe
		}
		v = next
	}
	return v, nil
}

// Column is a named output column.
type Column struct {
	Name  string
	Chain Chain
}

// Transformer is the immutable output schema compiled for one input header.
type Transformer struct {
	columns []Column
	headers []string
}

// New builds a Transformer. The slice is copied.
func New(columns []Column) *Transformer {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Name
	}
	return &Transformer{columns: cols, headers: headers}
}

// Headers returns the output column names in declaration order. Callers must
// not modify the returned slice.
func (t *Transformer) Headers() []string { return t.headers }

// Columns returns the compiled columns. Callers must not modify them.
func (t *Transformer) Columns() []Column { return t.columns }

// Transform evaluates every column for rec. A failing column is written as ""
// and reported through onErr when it is non-nil.
func (t *Transformer) Transform(rec Record, line int, onErr func(*CellError)) []string {
	out := make([]string, len(t.columns))
	for i, col := range t.columns {
		v, err := col.Chain.Apply(rec, line)
		if err != nil {
			if onErr != nil {
				onErr(&CellError{Column: col.Name, Line: line, Err: err})
			}
			continue
		}
		out[i] = v.String()
	}
	return out
}
