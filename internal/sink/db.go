package sink

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ysv-rs/ysv/internal/storage"
)

// DefaultBatchSize is the number of rows per bulk insert.
const DefaultBatchSize = 1000

// DBConfig configures a database sink. Columns is taken from the header.
type DBConfig struct {
	Storage     storage.Config
	BatchSize   int
	CreateTable bool
}

// DB loads rows into a table through a storage.Repository. The repository is
// opened on WriteHeader, when the output columns are known, and rows are
// batched by storage.LoadBatches on a background goroutine.
type DB struct {
	ctx  context.Context
	cfg  DBConfig
	open storage.Factory

	repo     storage.Repository
	rows     chan []any
	done     chan struct{}
	loadErr  error
	inserted atomic.Int64
	batches  atomic.Int64
}

// NewDB returns a sink that opens cfg.Storage with storage.New.
func NewDB(ctx context.Context, cfg DBConfig) *DB {
	return newDB(ctx, cfg, storage.New)
}

func newDB(ctx context.Context, cfg DBConfig, open storage.Factory) *DB {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &DB{ctx: ctx, cfg: cfg, open: open}
}

func (s *DB) WriteHeader(header []string) error {
	if s.repo != nil {
		return errors.New("db sink: header already written")
	}
	cfg := s.cfg.Storage
	cfg.Columns = append([]string(nil), header...)

	repo, err := s.open(s.ctx, cfg)
	if err != nil {
		return fmt.Errorf("db sink: open %s: %w", cfg.Kind, err)
	}
	if s.cfg.CreateTable {
		if err := storage.EnsureTable(s.ctx, cfg, repo); err != nil {
			repo.Close()
			return fmt.Errorf("db sink: %w", err)
		}
	}

	s.repo = repo
	s.rows = make(chan []any, s.cfg.BatchSize)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		copyFn := func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			n, err := repo.CopyFrom(ctx, columns, rows)
			if err == nil {
				s.batches.Add(1)
			}
			return n, err
		}
		n, err := storage.LoadBatches(s.ctx, cfg.Columns, s.rows, s.cfg.BatchSize, copyFn)
		s.inserted.Store(n)
		s.loadErr = err
	}()
	return nil
}

func (s *DB) WriteRow(row []string) error {
	if s.repo == nil {
		return errors.New("db sink: row before header")
	}
	select {
	case s.rows <- storage.TextRow(row):
		return nil
	case <-s.done:
		if s.loadErr != nil {
			return fmt.Errorf("db sink: %w", s.loadErr)
		}
		return errors.New("db sink: loader stopped")
	}
}

// Close flushes the final batch and closes the repository.
func (s *DB) Close() error {
	if s.repo == nil {
		return nil
	}
	close(s.rows)
	<-s.done
	s.repo.Close()
	s.repo = nil
	if s.loadErr != nil {
		return fmt.Errorf("db sink: %w", s.loadErr)
	}
	return nil
}

// Inserted reports rows the backend acknowledged. It is final after Close.
func (s *DB) Inserted() int64 { return s.inserted.Load() }

// Batches reports successful bulk inserts.
func (s *DB) Batches() int64 { return s.batches.Load() }
