package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/Pawan459/url-shortener/pkg/logx"
)

// Store is the persistence API for short-code mappings.
type Store interface {
	// Put stores a mapping. Overwriting an existing code is an error.
	Put(ctx context.Context, link Link) error
	// Get resolves a code. ErrNotFound when absent.
	Get(ctx context.Context, code string) (Link, error)
	// LookupByURL finds an existing code for a target URL, so repeated
	// shorten calls reuse one code. ErrNotFound when absent.
	LookupByURL(ctx context.Context, url string) (Link, error)
	// RecordVisit bumps the visit counter. Unknown codes are a no-op.
	RecordVisit(ctx context.Context, code string) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return newMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
