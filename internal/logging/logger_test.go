package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// Not parallel: Setup replaces slog's default logger and the isTerminal seam.
func TestSetupFormats(t *testing.T) {
	orig := isTerminal
	prevDefault := slog.Default()
	t.Cleanup(func() {
		isTerminal = orig
		slog.SetDefault(prevDefault)
	})

	cases := []struct {
		name     string
		format   string
		terminal bool
		wantJSON bool
	}{
		{"explicit_json", "json", true, true},
		{"explicit_text", "TEXT", false, false},
		{"auto_terminal", "auto", true, false},
		{"auto_pipe", "", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isTerminal = func(io.Writer) bool { return tc.terminal }

			var buf bytes.Buffer
			l := Setup(&buf, "info", tc.format)
			l.Info("hello", "k", "v")

			line := strings.TrimSpace(buf.String())
			var rec map[string]any
			isJSON := json.Unmarshal([]byte(line), &rec) == nil
			if isJSON != tc.wantJSON {
				t.Fatalf("json=%v want %v: %q", isJSON, tc.wantJSON, line)
			}
			if !strings.Contains(line, "run_id") {
				t.Fatalf("missing run_id: %q", line)
			}
		})
	}
}

func TestSetupLevelFilters(t *testing.T) {
	prevDefault := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prevDefault) })

	var buf bytes.Buffer
	l := Setup(&buf, "warn", "text")
	l.Info("dropped")
	l.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("level filter not applied: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("logger not returned from context")
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("expected default logger")
	}
}
