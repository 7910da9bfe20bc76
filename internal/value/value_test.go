package value

import (
	"testing"
	"time"
)

func TestCellString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   Cell
		want string
	}{
		{"zero_is_absent_text", Cell{}, ""},
		{"null_text", NullText(), ""},
		{"empty_text", TextOf(""), ""},
		{"text", TextOf("abc"), "abc"},
		{"null_date", NullDate(), ""},
		{"date", DateOf(time.Date(2004, 6, 4, 13, 5, 0, 0, time.FixedZone("x", 3600))), "2004-06-04"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.in.String(); got != tc.want {
				t.Fatalf("String()=%q want %q", got, tc.want)
			}
		})
	}
}

func TestAbsentDistinctFromEmpty(t *testing.T) {
	t.Parallel()

	if !NullText().IsNull() {
		t.Fatal("NullText should be absent")
	}
	if TextOf("").IsNull() {
		t.Fatal("empty text must not be absent")
	}
	if _, ok := NullText().Text(); ok {
		t.Fatal("absent text should not report ok")
	}
	if s, ok := TextOf("").Text(); !ok || s != "" {
		t.Fatalf("TextOf(\"\").Text()=%q,%v", s, ok)
	}
}

func TestKinds(t *testing.T) {
	t.Parallel()

	if (Cell{}).Kind() != Text {
		t.Fatalf("zero cell kind=%v want text", (Cell{}).Kind())
	}
	if NullDate().Kind() != Date {
		t.Fatal("NullDate kind should be date")
	}
	if !Any.Has(Text) || !Any.Has(Date) {
		t.Fatal("Any must include both variants")
	}
	if Text.Has(Date) || Text.Has(0) {
		t.Fatal("Text must not include Date or the empty set")
	}
	if _, ok := TextOf("x").Date(); ok {
		t.Fatal("text cell should not yield a date")
	}
	if Any.String() != "any" || Date.String() != "date" {
		t.Fatalf("unexpected kind names %q %q", Any, Date)
	}
}
