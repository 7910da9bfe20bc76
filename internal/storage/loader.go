package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CopyFn is a backend's bulk insert, usually Repository.CopyFrom.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn per non-empty batch. It returns the total reported by copyFn
// and the first error. A canceled ctx returns (total, ctx.Err()).
//
// Each successful flush logs a progress line at debug level.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total     int64
		batches   int64
		batch     = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
		lastTotal int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		// copyFn must not retain rows past return.
		batch = batch[:0]
		if err != nil {
			slog.Error("loader: copy failed", "inserted", n, "total", total, "err", err)
			return err
		}

		batches++
		now := time.Now()
		since := now.Sub(lastFlush)
		rps := float64(0)
		if since > 0 {
			rps = float64(total-lastTotal) / since.Seconds()
		}
		slog.Debug("loader: batch flushed",
			"batch", batches,
			"rows", n,
			"total", total,
			"rps", int64(rps),
			"elapsed", now.Sub(start).Truncate(time.Millisecond),
		)
		lastFlush = now
		lastTotal = total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				slog.Debug("loader: input closed", "batches", batches, "total", total)
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// TextRow converts an output record to CopyFrom arguments. Empty fields are
// written as empty strings, not NULL, matching the CSV output.
func TextRow(rec []string) []any {
	out := make([]any, len(rec))
	for i, s := range rec {
		out[i] = s
	}
	return out
}
