package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")

	// ErrNotFound is returned by lookups that match nothing.
	ErrNotFound = errors.New("not found")
)

// Config configures storage.
//
// Driver values:
//   - "memory": process-local map, nothing survives a restart
//   - "file": dependency-free file backend (snapshot + jsonl journal)
//   - "sqlite": SQLite database file (optional build tag)
//
// An empty Driver means "memory".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Link is one stored short-code mapping. ClientID, when set, names the
// client that owns the link and receives visit notifications.
type Link struct {
	Code      string `json:"code"`
	URL       string `json:"url"`
	ClientID  string `json:"client_id,omitempty"`
	CreatedAt int64  `json:"created_at"` // unix milli
	Visits    int64  `json:"visits"`
}
