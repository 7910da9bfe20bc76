package csv

import (
	"io"
	"reflect"
	"strings"
	"testing"
)

func readAll(t *testing.T, r *Reader) [][]string {
	t.Helper()
	var out [][]string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, append([]string(nil), rec...))
	}
}

func TestReaderHeaderAndRows(t *testing.T) {
	t.Parallel()

	in := "\uFEFFname,city\nann,Brno\nbob\ncid,Praha,extra\n"
	r, err := NewReader(strings.NewReader(in), Options{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	h, err := r.Header()
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	if !reflect.DeepEqual(h, []string{"name", "city"}) {
		t.Fatalf("header=%q", h)
	}

	got := readAll(t, r)
	want := [][]string{{"ann", "Brno"}, {"bob"}, {"cid", "Praha", "extra"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows=%q want %q", got, want)
	}
}

func TestReaderDelimiterAndLine(t *testing.T) {
	t.Parallel()

	in := "a;b\n1;\"multi\nline\"\n2;x\n"
	r, err := NewReader(strings.NewReader(in), Options{Comma: ';'})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.Header(); err != nil {
		t.Fatalf("Header: %v", err)
	}
	if _, err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if r.InputLine() != 2 {
		t.Fatalf("line=%d want 2", r.InputLine())
	}
	rec, err := r.Next()
	if err != nil || rec[1] != "x" {
		t.Fatalf("rec=%q err=%v", rec, err)
	}
	if r.InputLine() != 4 {
		t.Fatalf("line=%d want 4", r.InputLine())
	}
}

func TestReaderEncoding(t *testing.T) {
	t.Parallel()

	// "Žluť" in windows-1250
	in := "n\n\x8Elu\x9D\n"
	r, err := NewReader(strings.NewReader(in), Options{Encoding: "windows-1250"})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got := readAll(t, r)
	if len(got) != 1 || got[0][0] != "Žluť" {
		t.Fatalf("rows=%q", got)
	}

	if _, err := NewReader(strings.NewReader(""), Options{Encoding: "klingon"}); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
	if enc, err := LookupEncoding("UTF-8"); err != nil || enc != nil {
		t.Fatalf("utf-8 should need no decoder: %v %v", enc, err)
	}
}

func TestReaderEmptyAndMalformed(t *testing.T) {
	t.Parallel()

	r, _ := NewReader(strings.NewReader(""), Options{})
	if h, err := r.Header(); err != nil || h == nil || len(h) != 0 {
		t.Fatalf("empty input: header=%#v err=%v", h, err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("empty input should have no records, got %v", err)
	}

	r, _ = NewReader(strings.NewReader("a\n\"unterminated\n"), Options{})
	if _, err := r.Header(); err != nil {
		t.Fatalf("Header: %v", err)
	}
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Fatalf("expected parse error, got %v", err)
	}

	lazy, _ := NewReader(strings.NewReader("a\nx\"y\n"), Options{LazyQuotes: true})
	rows := readAll(t, lazy)
	if len(rows) != 1 || rows[0][0] != `x"y` {
		t.Fatalf("lazy rows=%q", rows)
	}
}

func TestNextReadsHeaderImplicitly(t *testing.T) {
	t.Parallel()

	r, _ := NewReader(strings.NewReader("h\nv\n"), Options{})
	rec, err := r.Next()
	if err != nil || rec[0] != "v" {
		t.Fatalf("rec=%q err=%v", rec, err)
	}
	if _, err := r.Header(); err == nil {
		t.Fatal("second Header call should fail")
	}
}

func TestStripHeaderBOM(t *testing.T) {
	t.Parallel()

	if got := StripHeaderBOM(nil); got != nil {
		t.Fatalf("got %v", got)
	}
	got := StripHeaderBOM([]string{"\uFEFFid", "\uFEFFx"})
	if got[0] != "id" || got[1] != "\uFEFFx" {
		t.Fatalf("got %q", got)
	}
}
