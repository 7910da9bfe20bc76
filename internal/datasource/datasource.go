// Package datasource resolves command-line input arguments into Sources.
package datasource

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/ysv-rs/ysv/internal/datasource/file"
	"github.com/ysv-rs/ysv/internal/datasource/httpds"
)

// Source is one input stream. Open is called once, by the pipeline producer,
// when the previous source has been fully consumed.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the source in diagnostics.
	Name() string
}

// StdinName is the argument that selects standard input.
const StdinName = "-"

// Stdin reads standard input. Closing it does not close os.Stdin.
type Stdin struct {
	// R defaults to os.Stdin.
	R io.Reader
}

func (s Stdin) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := s.R
	if r == nil {
		r = os.Stdin
	}
	return io.NopCloser(r), nil
}

func (Stdin) Name() string { return "<stdin>" }

// Resolve maps each argument to a Source: "-" is stdin, http:// and https://
// URLs are fetched with client, anything else is a local path. No arguments
// means stdin.
func Resolve(args []string, client *httpds.Client) []Source {
	if len(args) == 0 {
		return []Source{Stdin{}}
	}
	out := make([]Source, 0, len(args))
	for _, a := range args {
		switch {
		case a == StdinName:
			out = append(out, Stdin{})
		case isURL(a):
			out = append(out, httpds.NewSource(client, a))
		default:
			out = append(out, file.NewLocal(a))
		}
	}
	return out
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
