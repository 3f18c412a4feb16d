// Package datasource abstracts where input files come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a single input for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
