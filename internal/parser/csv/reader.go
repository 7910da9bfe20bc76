// Package csv reads delimited input for the pipeline producer.
//
// A Reader yields the header first and then one record at a time, never
// buffering the whole input. Rows may be wider or narrower than the header.
// Non UTF-8 input can be transcoded on the fly by naming its charset.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Options configure a Reader. The zero value reads comma-separated UTF-8.
type Options struct {
	// Comma is the field delimiter (default ',').
	Comma rune
	// LazyQuotes tolerates stray quotes inside unquoted fields.
	LazyQuotes bool
	// Encoding is a WHATWG charset label ("windows-1250", "latin1", ...).
	// Empty or "utf-8" means no transcoding.
	Encoding string
}

// Reader streams records from one input.
type Reader struct {
	cr         *csv.Reader
	headerRead bool
}

// LookupEncoding resolves a charset label. It returns nil for UTF-8.
func LookupEncoding(label string) (encoding.Encoding, error) {
	if label == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return nil, nil
	}
	return enc, nil
}

// NewReader wraps r. It fails only for an unknown encoding label.
func NewReader(r io.Reader, opt Options) (*Reader, error) {
	enc, err := LookupEncoding(opt.Encoding)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return &Reader{cr: cr}, nil
}

// Header reads the first record. The returned slice is owned by the caller.
// An empty input has an empty, non-nil header and no records.
func (r *Reader) Header() ([]string, error) {
	if r.headerRead {
		return nil, errors.New("csv: header already read")
	}
	r.headerRead = true
	h, err := r.cr.Read()
	if err == io.EOF {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	out := make([]string, len(h))
	copy(out, h)
	return StripHeaderBOM(out), nil
}

// Next returns the next data record or io.EOF. The slice is reused by the
// following call; copy it to keep it.
func (r *Reader) Next() ([]string, error) {
	if !r.headerRead {
		if _, err := r.Header(); err != nil {
			return nil, err
		}
	}
	rec, err := r.cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read csv record: %w", err)
	}
	return rec, nil
}

// InputLine is the line in the input where the last record started.
func (r *Reader) InputLine() int {
	line, _ := r.cr.FieldPos(0)
	return line
}

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	return headers
}
