package storage

// Package storage provides the persistence layer for short-code mappings.
//
// It currently supports:
//   - In-memory maps (tests, throwaway deployments)
//   - A file backend (snapshot + journal)
//   - Optional SQLite (build tag "sqlite")
