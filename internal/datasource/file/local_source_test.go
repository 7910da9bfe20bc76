package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	present := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(present, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name      string
		path      string
		ctx       context.Context
		wantErrIs error
		want      string
	}{
		{"reads_content", present, context.Background(), nil, "a,b\n1,2\n"},
		{"missing_file", filepath.Join(dir, "missing.csv"), context.Background(), os.ErrNotExist, ""},
		{"canceled_context", present, canceled, context.Canceled, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			src := NewLocal(tc.path)
			if src.Name() != tc.path {
				t.Fatalf("Name()=%q", src.Name())
			}
			rc, err := src.Open(tc.ctx)
			if tc.wantErrIs != nil {
				if !errors.Is(err, tc.wantErrIs) {
					t.Fatalf("want %v, got %v", tc.wantErrIs, err)
				}
				if rc != nil {
					t.Fatalf("got reader on error: %T", rc)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer rc.Close()
			got, _ := io.ReadAll(rc)
			if string(got) != tc.want {
				t.Fatalf("content=%q want %q", got, tc.want)
			}
		})
	}
}

func BenchmarkLocalOpen(b *testing.B) {
	p := filepath.Join(b.TempDir(), "data.csv")
	if err := os.WriteFile(p, []byte("payload"), 0o644); err != nil {
		b.Fatalf("write: %v", err)
	}
	src := NewLocal(p)
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rc, err := src.Open(ctx)
		if err != nil {
			b.Fatal(err)
		}
		_ = rc.Close()
	}
}
