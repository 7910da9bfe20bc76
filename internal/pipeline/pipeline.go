// Package pipeline runs the streaming transform: one producer reads and
// transforms records from every source in order, one consumer writes them to
// the sink. The two are joined by a bounded FIFO channel, so output order is
// input order and a slow sink applies backpressure to the reader.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/ysv-rs/ysv/internal/compile"
	"github.com/ysv-rs/ysv/internal/config"
	"github.com/ysv-rs/ysv/internal/datasource"
	"github.com/ysv-rs/ysv/internal/diag"
	"github.com/ysv-rs/ysv/internal/logging"
	"github.com/ysv-rs/ysv/internal/metrics"
	csvparser "github.com/ysv-rs/ysv/internal/parser/csv"
	"github.com/ysv-rs/ysv/internal/sink"
	"github.com/ysv-rs/ysv/internal/transformer"
)

const (
	// DefaultBuffer is the capacity of the producer/consumer channel.
	DefaultBuffer = 1024
	// DefaultProgressEvery is the row interval between progress log lines.
	DefaultProgressEvery = 50000
	// DefaultJob labels metrics when Config.Job is empty.
	DefaultJob = "ysv"
)

// SourcePolicy decides what a source failure does to the run.
type SourcePolicy int

const (
	// Abort ends the run with the *SourceError.
	Abort SourcePolicy = iota
	// Skip reports the failure and continues with the next source. Rows
	// already produced from the failed source are kept.
	Skip
)

func (p SourcePolicy) String() string {
	if p == Skip {
		return "skip"
	}
	return "abort"
}

// Config wires one run.
type Config struct {
	Document  *config.Document
	Variables config.Variables
	Sources   []datasource.Source
	Sink      sink.Sink

	// CSV configures input parsing for every source.
	CSV csvparser.Options

	// Reporter receives non-fatal diagnostics. Nil discards them.
	Reporter diag.Reporter
	// Strict rejects chains whose value types cannot line up.
	Strict bool

	OnSourceError SourcePolicy
	Buffer        int
	ProgressEvery int
	Job           string
}

// Stats summarizes a run.
type Stats struct {
	Sources        int
	SkippedSources int
	Transformers   int // distinct headers compiled
	RowsRead       int64
	RowsWritten    int64
	CellErrors     int64
	Elapsed        time.Duration
}

// SourceError is a failure to open or read one source. Line is the global
// record number being read when it failed, 0 for open and header failures.
type SourceError struct {
	Source string
	Line   int
	Err    error
}

func (e *SourceError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("source %s: record %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// message is one hand-off item. The first message of a run carries the
// output header.
type message struct {
	header bool
	row    []string
}

// Run executes cfg. The sink is always closed before Run returns. A compile
// error on the first source is returned before anything is written.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	if cfg.Document == nil {
		return Stats{}, errors.New("pipeline: nil document")
	}
	if cfg.Sink == nil {
		return Stats{}, errors.New("pipeline: nil sink")
	}
	cfg = withDefaults(cfg)

	log := logging.FromContext(ctx)
	start := time.Now()
	cache := compile.NewCache(cfg.Document, cfg.Variables, compile.Options{
		Reporter: cfg.Reporter,
		Strict:   cfg.Strict,
	})

	g, gctx := errgroup.WithContext(ctx)
	ch := make(chan message, cfg.Buffer)

	p := &producer{cfg: cfg, cache: cache, out: ch, log: log}
	var written int64

	g.Go(func() error {
		defer close(ch)
		return p.run(gctx)
	})
	g.Go(func() error {
		n, err := consume(cfg, ch)
		written = n
		return err
	})
	err := g.Wait()

	st := p.stats
	st.Transformers = cache.Compiled()
	st.RowsWritten = written
	st.Elapsed = time.Since(start)

	metrics.RecordRow(cfg.Job, "read", st.RowsRead)
	metrics.RecordRow(cfg.Job, "written", st.RowsWritten)
	metrics.RecordRow(cfg.Job, "cell_errors", st.CellErrors)
	metrics.RecordRow(cfg.Job, "skipped_sources", int64(st.SkippedSources))
	if b, ok := cfg.Sink.(interface{ Batches() int64 }); ok {
		metrics.RecordBatches(cfg.Job, b.Batches())
	}
	logSummary(log, st, p.cellErrs, err)
	return st, err
}

func withDefaults(cfg Config) Config {
	if cfg.Reporter == nil {
		cfg.Reporter = diag.Discard
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	if cfg.Job == "" {
		cfg.Job = DefaultJob
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = []datasource.Source{datasource.Stdin{}}
	}
	return cfg
}

// consume is the only goroutine that touches the sink.
func consume(cfg Config, in <-chan message) (written int64, err error) {
	start := time.Now()
	defer func() {
		if cerr := cfg.Sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close sink: %w", cerr)
		}
		metrics.RecordStep(cfg.Job, "write", err, time.Since(start))
	}()

	for m := range in {
		if m.header {
			if err := cfg.Sink.WriteHeader(m.row); err != nil {
				return written, fmt.Errorf("write header: %w", err)
			}
			continue
		}
		if err := cfg.Sink.WriteRow(m.row); err != nil {
			return written, fmt.Errorf("write row %d: %w", written+1, err)
		}
		written++
	}
	return written, nil
}

// producer reads every source in order. Its fields are only touched by the
// producer goroutine until Run's Wait returns.
type producer struct {
	cfg   Config
	cache *compile.Cache
	out   chan<- message
	log   *slog.Logger

	line       int // last global record number
	headerSent bool
	stats      Stats
	cellErrs   *errAgg
	lastReport time.Time
	lastRows   int64
}

func (p *producer) run(ctx context.Context) error {
	p.cellErrs = newErrAgg(5)
	p.lastReport = time.Now()
	for _, src := range p.cfg.Sources {
		p.stats.Sources++
		start := time.Now()
		err := p.source(ctx, src)
		metrics.RecordStep(p.cfg.Job, "transform", err, time.Since(start))
		if err == nil {
			continue
		}
		var se *SourceError
		if errors.As(err, &se) && p.cfg.OnSourceError == Skip {
			p.stats.SkippedSources++
			p.cfg.Reporter.Report(diag.Diagnostic{
				Kind:        diag.KindSourceIO,
				Description: fmt.Sprintf("skipping source: %v", se.Err),
				Source:      se.Source,
				Line:        se.Line,
			})
			continue
		}
		return err
	}
	return nil
}

func (p *producer) source(ctx context.Context, src datasource.Source) error {
	name := src.Name()
	rc, err := src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &SourceError{Source: name, Err: err}
	}
	defer rc.Close()

	r, err := csvparser.NewReader(rc, p.cfg.CSV)
	if err != nil {
		return fmt.Errorf("source %s: %w", name, err)
	}
	header, err := r.Header()
	if err != nil {
		return &SourceError{Source: name, Err: err}
	}

	compileStart := time.Now()
	tr, hit, err := p.cache.Get(header)
	if !hit {
		metrics.RecordStep(p.cfg.Job, "compile", err, time.Since(compileStart))
	}
	if err != nil {
		return fmt.Errorf("compile against %s: %w", name, err)
	}
	p.log.Debug("source opened", "source", name, "columns", len(header), "reused_transformer", hit)

	if !p.headerSent {
		if err := p.send(ctx, message{header: true, row: tr.Headers()}); err != nil {
			return err
		}
		p.headerSent = true
	}

	onErr := func(ce *transformer.CellError) {
		p.stats.CellErrors++
		p.cellErrs.add(ce.Error())
		d := ce.Diagnostic()
		d.Source = name
		p.cfg.Reporter.Report(d)
	}

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &SourceError{Source: name, Line: p.line + 1, Err: err}
		}
		p.line++
		p.stats.RowsRead++
		row := tr.Transform(transformer.Record(rec), p.line, onErr)
		if err := p.send(ctx, message{row: row}); err != nil {
			return err
		}
		if p.stats.RowsRead%int64(p.cfg.ProgressEvery) == 0 {
			p.progress(name)
		}
	}
}

func (p *producer) send(ctx context.Context, m message) error {
	select {
	case p.out <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *producer) progress(source string) {
	now := time.Now()
	since := now.Sub(p.lastReport)
	rps := float64(0)
	if since > 0 {
		rps = float64(p.stats.RowsRead-p.lastRows) / since.Seconds()
	}
	p.log.Info("progress",
		"source", source,
		"rows", humanize.Comma(p.stats.RowsRead),
		"rows_per_sec", humanize.Comma(int64(rps)),
		"cell_errors", p.stats.CellErrors,
	)
	p.lastReport = now
	p.lastRows = p.stats.RowsRead
}

func logSummary(log *slog.Logger, st Stats, cellErrs *errAgg, err error) {
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	log.Log(context.Background(), level, "summary",
		"sources", st.Sources,
		"skipped_sources", st.SkippedSources,
		"transformers", st.Transformers,
		"rows_read", humanize.Comma(st.RowsRead),
		"rows_written", humanize.Comma(st.RowsWritten),
		"cell_errors", humanize.Comma(st.CellErrors),
		"elapsed", st.Elapsed.Truncate(time.Millisecond).String(),
	)
	if cellErrs != nil && cellErrs.count > 0 {
		for i, s := range cellErrs.first {
			log.Debug("cell error sample", "n", i+1, "of", cellErrs.count, "err", s)
		}
	}
}

// errAgg counts messages and keeps the first few.
type errAgg struct {
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg { return &errAgg{limit: limit} }

func (a *errAgg) add(msg string) {
	a.count++
	if len(a.first) < a.limit {
		a.first = append(a.first, msg)
	}
}
