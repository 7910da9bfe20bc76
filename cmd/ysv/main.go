// Command ysv rewrites CSV inputs according to a YAML column configuration.
//
//	ysv [flags] CONFIG.yaml [INPUT ...]
//
// INPUT is a path, "-" for stdin or an http(s) URL. Without inputs stdin is
// read. Output goes to stdout (or -o) unless a database sink is selected.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/ysv-rs/ysv/internal/metrics/prompush"
	"github.com/ysv-rs/ysv/internal/pipeline"
	"github.com/ysv-rs/ysv/internal/sink"
	"github.com/ysv-rs/ysv/internal/storage"

	// register all backends with the storage factory.
	_ "github.com/ysv-rs/ysv/internal/storage/all"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// options is the parsed command line.
type options struct {
	configPath string
	inputs     []string
	inputList  string
	output     string

	logFormat string
	logLevel  string

	varPrefix string
	envFile   string

	delimiter       rune
	outputDelimiter rune
	encoding        string
	lazyQuotes      bool

	buffer         int
	skipBadSources bool
	strict         bool
	validate       bool

	sinkKind    string
	dsn         string
	table       string
	createTable bool
	batchSize   int

	metricsBackend string
	pushgatewayURL string
	statsdAddr     string
	job            string

	showVersion bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// runMain maps the outcome of a run to an exit code: 0 ok, 1 fatal error,
// 2 usage error. run reports its own fatal error.
func runMain(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "ysv %s\n", version)
		return 0
	}
	if err := run(ctx, o, stdin, stdout, stderr); err != nil {
		return 1
	}
	return 0
}

// parseFlags reads args into options. Usage problems are printed to stderr
// together with the help text.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var (
		o               options
		delim, outDelim string
	)

	fs := flag.NewFlagSet("ysv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: ysv [flags] CONFIG.yaml [INPUT ...]\n\n")
		fmt.Fprintf(fs.Output(), "INPUT is a file path, - for stdin, or an http(s) URL. No INPUT reads stdin.\n\nflags:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&o.output, "o", "", "output CSV path (default stdout)")
	fs.StringVar(&o.inputList, "input-list", "", "file listing inputs, one per line, read after positional inputs")
	fs.StringVar(&o.logFormat, "log-format", getenv("YSV_LOG_FORMAT", "auto"), "log format: text, json or auto (env YSV_LOG_FORMAT)")
	fs.StringVar(&o.logLevel, "log-level", getenv("YSV_LOG_LEVEL", "info"), "log level: debug, info, warn, error (env YSV_LOG_LEVEL)")
	fs.StringVar(&o.varPrefix, "var-prefix", "YSV_VAR_", "environment prefix for {var: name} values")
	fs.StringVar(&o.envFile, "env-file", "", "dotenv file with extra variables; the process environment wins")
	fs.StringVar(&delim, "delimiter", ",", `input field delimiter ("tab" or \t for TAB)`)
	fs.StringVar(&outDelim, "output-delimiter", ",", "output field delimiter")
	fs.StringVar(&o.encoding, "encoding", "", "input charset label, e.g. windows-1250 (default utf-8)")
	fs.BoolVar(&o.lazyQuotes, "lazy-quotes", false, "tolerate stray quotes in unquoted input fields")
	fs.IntVar(&o.buffer, "buffer", 0, "rows buffered between reader and writer (env YSV_BUFFER)")
	fs.BoolVar(&o.skipBadSources, "skip-bad-sources", false, "report and skip inputs that fail to open or read instead of aborting")
	fs.BoolVar(&o.strict, "strict", false, "reject columns whose operations cannot accept each other's values")
	fs.BoolVar(&o.validate, "validate", false, "validate the configuration and exit")
	fs.StringVar(&o.sinkKind, "sink", "csv", "output sink: csv or a database kind ("+strings.Join(storage.ListKinds(), ", ")+")")
	fs.StringVar(&o.dsn, "dsn", "", "database DSN for database sinks (env YSV_DSN)")
	fs.StringVar(&o.table, "table", "", "target table for database sinks, optionally schema-qualified")
	fs.BoolVar(&o.createTable, "create-table", false, "create the target table with one text column per output column")
	fs.IntVar(&o.batchSize, "batch-size", 0, "rows per bulk insert for database sinks (env YSV_BATCH_SIZE)")
	fs.StringVar(&o.metricsBackend, "metrics-backend", getenv("METRICS_BACKEND", "none"), "metrics backend: none, pushgateway or datadog (env METRICS_BACKEND)")
	fs.StringVar(&o.pushgatewayURL, "pushgateway-url", getenv("PUSHGATEWAY_URL", "http://localhost:9091"), "Pushgateway base URL (env PUSHGATEWAY_URL)")
	fs.StringVar(&o.statsdAddr, "statsd-addr", getenv("DD_DOGSTATSD_URL", "127.0.0.1:8125"), "DogStatsD address (env DD_DOGSTATSD_URL)")
	fs.StringVar(&o.job, "job", prompush.DefaultJob, "job name attached to metrics")
	fs.BoolVar(&o.showVersion, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.showVersion {
		return o, nil
	}

	fail := func(format string, a ...any) (options, error) {
		err := fmt.Errorf(format, a...)
		fmt.Fprintf(stderr, "ysv: %v\n", err)
		fs.Usage()
		return o, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fail("missing CONFIG argument")
	}
	o.configPath, o.inputs = rest[0], rest[1:]

	var err error
	if o.delimiter, err = parseDelim(delim); err != nil {
		return fail("-delimiter: %v", err)
	}
	if o.outputDelimiter, err = parseDelim(outDelim); err != nil {
		return fail("-output-delimiter: %v", err)
	}

	o.buffer = pickInt(o.buffer, getenvInt("YSV_BUFFER", pipeline.DefaultBuffer))
	o.batchSize = pickInt(o.batchSize, getenvInt("YSV_BATCH_SIZE", sink.DefaultBatchSize))
	if o.dsn == "" {
		o.dsn = os.Getenv("YSV_DSN")
	}

	switch o.metricsBackend {
	case "", "none", "pushgateway", "datadog":
	default:
		return fail("-metrics-backend: unknown backend %q", o.metricsBackend)
	}

	if o.sinkKind == "csv" {
		return o, nil
	}
	if !isStorageKind(o.sinkKind) {
		return fail("-sink: unknown sink %q", o.sinkKind)
	}
	if o.output != "" {
		return fail("-o cannot be combined with -sink %s", o.sinkKind)
	}
	if o.dsn == "" || o.table == "" {
		return fail("-sink %s requires -dsn and -table", o.sinkKind)
	}
	return o, nil
}

func isStorageKind(kind string) bool {
	for _, k := range storage.ListKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// parseDelim accepts a single character, or "tab" / `\t` for TAB.
func parseDelim(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("want a single character, got %q", s)
	}
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("%q cannot be used as a delimiter", r)
	}
	return r, nil
}

func getenv(k, def string) string {
	if s := os.Getenv(k); s != "" {
		return s
	}
	return def
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
