// Package storage remembers which credential requests were already issued.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// Store tracks issued request keys.
type Store interface {
	Close() error
	SeenRequest(key string) (bool, error)
	MarkRequest(key string) error
}

// Counter is implemented by stores that can report how many keys they hold.
type Counter interface {
	Len() (int, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	RequestTTL      time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRequestTTL      = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RequestTTL <= 0 {
		opts.RequestTTL = defaultRequestTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                     { return nil }
func (noopStore) SeenRequest(string) (bool, error) { return false, nil }
func (noopStore) MarkRequest(string) error         { return nil }
