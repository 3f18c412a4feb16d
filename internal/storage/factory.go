package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a Repository for one backend kind.
type Constructor func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu        sync.RWMutex
	constructors = map[string]Constructor{}
)

// Register registers (or replaces) a backend constructor for kind. It is
// typically called from backend packages' init() functions; importing
// storage/all pulls every backend in.
func Register(kind string, fn Constructor) {
	regMu.Lock()
	defer regMu.Unlock()
	constructors[kind] = fn
}

// New constructs a Repository for cfg.Kind. An unknown kind lists the
// registered backends in the error to make missing blank imports obvious.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := constructors[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return fn(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(constructors))
	for k := range constructors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
