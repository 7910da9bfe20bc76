// Package file opens inputs from the local filesystem.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is one file on disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the path.
func (l *Local) Name() string { return l.path }

// Open opens the file for a single sequential pass. A canceled ctx is
// reported without touching the filesystem. Filesystem errors wrap the
// underlying *PathError so errors.Is(err, os.ErrNotExist) works.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}
