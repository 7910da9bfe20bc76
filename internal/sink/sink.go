// Package sink writes transformed rows. The pipeline calls WriteHeader once,
// WriteRow per record and Close at the end, all from a single goroutine.
package sink

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"
)

// Sink receives the output table.
type Sink interface {
	WriteHeader(header []string) error
	WriteRow(row []string) error
	Close() error
}

// CSV writes RFC 4180 output through a buffered writer.
type CSV struct {
	buf *bufio.Writer
	w   *csv.Writer
}

// NewCSV writes to w with the given field delimiter (0 means ',').
// Close flushes but does not close w.
func NewCSV(w io.Writer, comma rune) (*CSV, error) {
	buf := bufio.NewWriterSize(w, 64<<10)
	cw := csv.NewWriter(buf)
	if comma != 0 {
		if !validDelim(comma) {
			return nil, fmt.Errorf("csv sink: invalid delimiter %q", comma)
		}
		cw.Comma = comma
	}
	return &CSV{buf: buf, w: cw}, nil
}

func (s *CSV) WriteHeader(header []string) error { return s.WriteRow(header) }

func (s *CSV) WriteRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	return nil
}

// validDelim mirrors encoding/csv, which only checks Comma on first Write.
func validDelim(r rune) bool {
	return r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

// Close flushes buffered output.
func (s *CSV) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	return nil
}
