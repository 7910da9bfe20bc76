// Package transformer is the execution half of ysv: compiled, schema-bound
// operations and the per-row evaluation of output columns.
//
// Every output column is a Chain of Ops folded left to right, starting from an
// absent Text value. Ops are immutable once built and carry no per-row state,
// so a single Transformer can be shared by any number of goroutines.
//
// Failures inside a chain never stop the stream. The first failing Op ends
// that column's chain for the current row, the cell is written as "", and a
// *CellError is handed to the caller's callback. The next column and the next
// row are processed as usual.
package transformer

import (
	"fmt"

	"github.com/ysv-rs/ysv/internal/diag"
	"github.com/ysv-rs/ysv/internal/value"
)

// Record is one raw input row. Fields are positional; a row may be shorter or
// longer than its header.
type Record []string

// Op is a compiled operation.
//
// Apply receives the value produced by the previous step (absent Text for the
// first one), the raw record and the 1-based global line number.
type Op interface {
	Name() string
	// Accepts reports the input variants the op is defined for.
	Accepts() value.Kind
	// Produces reports the output variant, or 0 when the op passes its input
	// variant through.
	Produces() value.Kind
	Apply(v value.Cell, rec Record, line int) (value.Cell, error)
}

// OpError is returned by Op.Apply. It is always recoverable.
type OpError struct {
	Op          string
	Kind        diag.Kind
	Description string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Description)
}

func typeMismatch(op Op, got value.Cell) *OpError {
	return &OpError{
		Op:          op.Name(),
		Kind:        diag.KindTypeMismatch,
		Description: fmt.Sprintf("'%s' transformation applied to a %s value", op.Name(), got.Kind()),
	}
}

// CellError describes the failure of one column on one row.
type CellError struct {
	Column string
	Line   int
	Err    *OpError
}

func (e *CellError) Error() string {
	return fmt.Sprintf("column %q line %d: %v", e.Column, e.Line, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Diagnostic converts e for a diag.Reporter.
func (e *CellError) Diagnostic() diag.Diagnostic {
	return diag.Diagnostic{
		Kind:        e.Err.Kind,
		Description: e.Err.Description,
		Column:      e.Column,
		Operation:   e.Err.Op,
		Line:        e.Line,
	}
}

// accepts checks v against op's declared input variants.
func accepts(op Op, v value.Cell) error {
	if op.Accepts().Has(v.Kind()) {
		return nil
	}
	return typeMismatch(op, v)
}
