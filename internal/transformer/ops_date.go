package transformer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/ysv-rs/ysv/internal/diag"
	"github.com/ysv-rs/ysv/internal/value"
)

// ExcelOrdinal is the date format token that selects ExcelDate.
const ExcelOrdinal = "excel-ordinal"

// excelEpoch is day zero of the spreadsheet serial date system.
var excelEpoch = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)

// DateFormat is a strftime format with its Go layout resolved up front.
type DateFormat struct {
	Format string
	layout string
}

// NewDateFormat converts a strftime format ("%Y-%m-%d") into a reusable
// parser. Unsupported specifiers are rejected here, not per row.
func NewDateFormat(format string) (DateFormat, error) {
	layout, err := strftime.Layout(format)
	if err != nil {
		return DateFormat{}, fmt.Errorf("date format %q: %w", format, err)
	}
	return DateFormat{Format: format, layout: layout}, nil
}

func (f DateFormat) parse(s string) (time.Time, error) {
	return time.ParseInLocation(f.layout, s, time.UTC)
}

// Date parses text with a single format.
type Date struct{ Format DateFormat }

func (Date) Name() string         { return "date" }
func (Date) Accepts() value.Kind  { return value.Text }
func (Date) Produces() value.Kind { return value.Date }

func (op Date) Apply(v value.Cell, _ Record, _ int) (value.Cell, error) {
	if err := accepts(op, v); err != nil {
		return value.Cell{}, err
	}
	s, ok := v.Text()
	if !ok {
		return value.NullDate(), nil
	}
	t, err := op.Format.parse(s)
	if err != nil {
		return value.Cell{}, &OpError{
			Op:          op.Name(),
			Kind:        diag.KindDateParse,
			Description: fmt.Sprintf("Cannot parse date %s with format %s.", s, op.Format.Format),
		}
	}
	return value.DateOf(t), nil
}

// DateMulti tries each format in order and keeps the first success.
type DateMulti struct{ Formats []DateFormat }

func (DateMulti) Name() string         { return "date" }
func (DateMulti) Accepts() value.Kind  { return value.Text }
func (DateMulti) Produces() value.Kind { return value.Date }

func (op DateMulti) Apply(v value.Cell, _ Record, _ int) (value.Cell, error) {
	if err := accepts(op, v); err != nil {
		return value.Cell{}, err
	}
	s, ok := v.Text()
	if !ok {
		return value.NullDate(), nil
	}
	tried := make([]string, 0, len(op.Formats))
	for _, f := range op.Formats {
		if t, err := f.parse(s); err == nil {
			return value.DateOf(t), nil
		}
		tried = append(tried, f.Format)
	}
	return value.Cell{}, &OpError{
		Op:          op.Name(),
		Kind:        diag.KindDateParse,
		Description: fmt.Sprintf("Cannot parse date %s with any of the formats: %s.", s, strings.Join(tried, ", ")),
	}
}

// ExcelDate reads a spreadsheet serial day number. Serials from 60 on are
// shifted back one day to undo the phantom 1900-02-29 of that system.
type ExcelDate struct{}

func (ExcelDate) Name() string         { return "date" }
func (ExcelDate) Accepts() value.Kind  { return value.Text }
func (ExcelDate) Produces() value.Kind { return value.Date }

func (op ExcelDate) Apply(v value.Cell, _ Record, _ int) (value.Cell, error) {
	if err := accepts(op, v); err != nil {
		return value.Cell{}, err
	}
	s, ok := v.Text()
	if !ok {
		return value.NullDate(), nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return value.Cell{}, &OpError{
			Op:          op.Name(),
			Kind:        diag.KindDateParse,
			Description: fmt.Sprintf("Cannot parse date %s as an %s day number.", s, ExcelOrdinal),
		}
	}
	return value.DateOf(ExcelSerialToDate(n)), nil
}

// ExcelSerialToDate converts a spreadsheet serial day number to a date.
func ExcelSerialToDate(n int64) time.Time {
	if n >= 60 {
		n--
	}
	return excelEpoch.AddDate(0, 0, int(n))
}
