package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ysv-rs/ysv/internal/config"
	"github.com/ysv-rs/ysv/internal/datasource"
	"github.com/ysv-rs/ysv/internal/datasource/file"
	"github.com/ysv-rs/ysv/internal/datasource/httpds"
	"github.com/ysv-rs/ysv/internal/diag"
	"github.com/ysv-rs/ysv/internal/logging"
	"github.com/ysv-rs/ysv/internal/metrics"
	"github.com/ysv-rs/ysv/internal/metrics/datadog"
	"github.com/ysv-rs/ysv/internal/metrics/prompush"
	csvparser "github.com/ysv-rs/ysv/internal/parser/csv"
	"github.com/ysv-rs/ysv/internal/pipeline"
	"github.com/ysv-rs/ysv/internal/sink"
	"github.com/ysv-rs/ysv/internal/storage"
)

// environ is the process environment; replaced in tests.
var environ = os.Environ

// run loads the configuration, wires sources, sink and metrics, and streams
// every input through the pipeline.
//
// A fatal error is reported before returning: as a structured error record
// when logs are JSON, as a plain "ysv: ..." line otherwise.
func run(ctx context.Context, o options, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	log := logging.Setup(stderr, o.logLevel, o.logFormat)
	ctx = logging.WithLogger(ctx, log)
	defer func() {
		if err == nil {
			return
		}
		if logging.ResolveFormat(stderr, o.logFormat) == "json" {
			reportFatal(ctx, log, err)
			return
		}
		fmt.Fprintf(stderr, "ysv: %v\n", err)
	}()

	doc, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	issues := config.Validate(doc)
	for _, iss := range issues {
		level := slog.LevelWarn
		if iss.Severity == config.SeverityError {
			level = slog.LevelError
		}
		log.Log(ctx, level, "config", "path", iss.Path, "message", iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration %s is invalid", o.configPath)
	}
	if o.validate {
		log.Info("configuration is valid", "path", o.configPath, "columns", len(doc.Columns))
		return nil
	}

	vars, err := loadVariables(o)
	if err != nil {
		return err
	}
	sources, err := resolveSources(o, stdin)
	if err != nil {
		return err
	}

	out, closeOut, err := openSink(ctx, o, stdout)
	if err != nil {
		return err
	}
	defer closeOut()

	flush := setupMetrics(o, log)
	defer flush()

	log.Debug("starting",
		"config", o.configPath,
		"sources", len(sources),
		"sink", o.sinkKind,
		"buffer", o.buffer,
		"on_source_error", policy(o).String(),
	)

	_, err = pipeline.Run(ctx, pipeline.Config{
		Document:  doc,
		Variables: vars,
		Sources:   sources,
		Sink:      out,
		CSV: csvparser.Options{
			Comma:      o.delimiter,
			LazyQuotes: o.lazyQuotes,
			Encoding:   o.encoding,
		},
		Reporter:      diag.NewSlogReporter(log),
		Strict:        o.strict,
		OnSourceError: policy(o),
		Buffer:        o.buffer,
		Job:           o.job,
	})
	if err != nil {
		return err
	}
	return closeOut()
}

// reportFatal logs err at error level with the fields of a configuration or
// source error as attributes.
func reportFatal(ctx context.Context, log *slog.Logger, err error) {
	attrs := []slog.Attr{slog.String("err", err.Error())}

	var (
		cpe *diag.ConfigParseError
		se  *pipeline.SourceError
	)
	switch {
	case errors.As(err, &cpe):
		attrs = append(attrs, slog.String("kind", string(cpe.Kind)))
		if cpe.Column != "" {
			attrs = append(attrs, slog.String("column", cpe.Column))
		}
		if cpe.Operation != "" {
			attrs = append(attrs, slog.String("operation", cpe.Operation))
		}
		if cpe.Line > 0 {
			attrs = append(attrs, slog.Int("line", cpe.Line))
		}
		attrs = append(attrs, slog.String("description", cpe.Description))
	case errors.As(err, &se):
		attrs = append(attrs,
			slog.String("kind", string(diag.KindSourceIO)),
			slog.String("source", se.Source),
		)
		if se.Line > 0 {
			attrs = append(attrs, slog.Int("line", se.Line))
		}
	}
	log.LogAttrs(ctx, slog.LevelError, "fatal", attrs...)
}

func policy(o options) pipeline.SourcePolicy {
	if o.skipBadSources {
		return pipeline.Skip
	}
	return pipeline.Abort
}

// loadVariables builds {var: name} values from the environment. Entries
// from -env-file come first so the process environment wins.
func loadVariables(o options) (config.Variables, error) {
	env := environ()
	if o.envFile != "" {
		fromFile, err := config.ReadEnvFile(o.envFile)
		if err != nil {
			return nil, err
		}
		env = append(fromFile, env...)
	}
	return config.VariablesFromEnviron(env, o.varPrefix), nil
}

func resolveSources(o options, stdin io.Reader) ([]datasource.Source, error) {
	inputs := o.inputs
	if o.inputList != "" {
		listed, err := file.ReadList(o.inputList)
		if err != nil {
			return nil, err
		}
		inputs = append(append([]string(nil), inputs...), listed...)
	}

	client := httpds.NewClient(httpds.Config{
		MaxRetries: getenvInt("YSV_HTTP_RETRIES", 3),
		UserAgent:  "ysv/" + version,
	})
	sources := datasource.Resolve(inputs, client)
	for i, s := range sources {
		if _, ok := s.(datasource.Stdin); ok {
			sources[i] = datasource.Stdin{R: stdin}
		}
	}
	return sources, nil
}

// openSink returns the sink for o and a close function for the underlying
// output. The close function is safe to call more than once.
func openSink(ctx context.Context, o options, stdout io.Writer) (sink.Sink, func() error, error) {
	if o.sinkKind != "csv" {
		s := sink.NewDB(ctx, sink.DBConfig{
			Storage: storage.Config{
				Kind:  o.sinkKind,
				DSN:   o.dsn,
				Table: o.table,
			},
			BatchSize:   o.batchSize,
			CreateTable: o.createTable,
		})
		return s, func() error { return nil }, nil
	}

	w := stdout
	closeOut := func() error { return nil }
	if o.output != "" && o.output != "-" {
		f := &lazyFile{path: o.output}
		w, closeOut = f, f.Close
	}
	s, err := sink.NewCSV(w, o.outputDelimiter)
	if err != nil {
		return nil, nil, err
	}
	return s, closeOut, nil
}

// lazyFile creates its file on the first write, so a run that fails before
// producing a header leaves no output file behind.
type lazyFile struct {
	path string
	f    *os.File
}

func (l *lazyFile) Write(p []byte) (int, error) {
	if l.f == nil {
		f, err := os.Create(l.path)
		if err != nil {
			return 0, err
		}
		l.f = f
	}
	return l.f.Write(p)
}

func (l *lazyFile) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// setupMetrics installs the selected backend. A backend that fails to
// initialize is logged and metrics stay disabled.
func setupMetrics(o options, log *slog.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch o.metricsBackend {
	case "pushgateway":
		b, err = prompush.NewBackend(o.job, o.pushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       o.statsdAddr,
			GlobalTags: []string{"job:" + o.job},
		})
	default:
		log.Debug("metrics: disabled", "backend", o.metricsBackend)
		return func() {}
	}
	if err != nil {
		log.Warn("metrics: init failed; using nop", "backend", o.metricsBackend, "err", err)
		return func() {}
	}

	log.Debug("metrics: enabled", "backend", o.metricsBackend, "job", o.job)
	prev := metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush error", "err", err)
		}
		metrics.SetBackend(prev)
	}
}
