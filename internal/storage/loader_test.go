package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"
)

func feed(rows int) <-chan []any {
	in := make(chan []any, rows)
	for i := 0; i < rows; i++ {
		in <- TextRow([]string{strconv.Itoa(i + 1), "x"})
	}
	close(in)
	return in
}

func TestLoadBatchesShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		rows      int
		batchSize int
		want      []int
	}{
		{"remainder", 7, 3, []int{3, 3, 1}},
		{"exact", 6, 3, []int{3, 3}},
		{"single_batch", 2, 1000, []int{2}},
		{"one_per_row", 3, 1, []int{1, 1, 1}},
		{"empty_input", 0, 5, nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var sizes []int
			var first []string
			copyFn := func(_ context.Context, cols []string, rows [][]any) (int64, error) {
				sizes = append(sizes, len(rows))
				if first == nil {
					first = cols
				}
				return int64(len(rows)), nil
			}

			total, err := LoadBatches(context.Background(), []string{"n", "v"}, feed(tc.rows), tc.batchSize, copyFn)
			if err != nil {
				t.Fatalf("LoadBatches: %v", err)
			}
			if total != int64(tc.rows) {
				t.Fatalf("total=%d want %d", total, tc.rows)
			}
			if fmt.Sprint(sizes) != fmt.Sprint(tc.want) {
				t.Fatalf("batch sizes %v, want %v", sizes, tc.want)
			}
			if tc.rows > 0 && (len(first) != 2 || first[0] != "n") {
				t.Fatalf("columns passed through as %v", first)
			}
		})
	}
}

func TestLoadBatchesFirstErrorWins(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	var seen int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		seen++
		if seen == 2 {
			// Partial insert before the failure still counts.
			return 1, boom
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), []string{"n"}, feed(9), 2, copyFn)
	if !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}
	if total != 3 || seen != 2 {
		t.Fatalf("total=%d calls=%d, want 3 and 2", total, seen)
	}
}

func TestLoadBatchesContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	columns := []string{"c"}
	in := make(chan []any, 1)
	in <- []any{1}

	// copyFn sleeps to simulate slow I/O; cancel triggers early exit.
	copyFn := func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(2 * time.Second):
			return int64(len(rows)), nil
		}
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, columns, in, 2, copyFn)
		errCh <- err
	}()

	cancel() // cancel promptly
	close(in)

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected cancellation error, got nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after context cancel")
	}
}

func TestLoadBatchesArgs(t *testing.T) {
	t.Parallel()

	in := make(chan []any)
	if _, err := LoadBatches(context.Background(), nil, in, 0, nil); err == nil {
		t.Fatal("batchSize 0 should fail")
	}
	if _, err := LoadBatches(context.Background(), nil, in, 1, nil); err == nil {
		t.Fatal("nil copyFn should fail")
	}
}

func TestTextRow(t *testing.T) {
	t.Parallel()

	got := TextRow([]string{"a", ""})
	if len(got) != 2 || got[0] != "a" || got[1] != "" {
		t.Fatalf("TextRow = %#v", got)
	}
}
