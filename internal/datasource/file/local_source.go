// Package file reads input files from the local filesystem.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens one file from local disk. Safe for concurrent use.
type Local struct{ path string }

func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the file path this source is bound to.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading. A context that is already done is honored
// before the filesystem is touched. Filesystem errors are wrapped with the
// path and remain inspectable with errors.Is (e.g. os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
