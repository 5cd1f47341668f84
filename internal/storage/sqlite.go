//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Pawan459/url-shortener/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Put(ctx context.Context, link Link) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO links(code, url, client_id, created_at, visits) VALUES(?,?,?,?,?)`,
		link.Code, link.URL, link.ClientID, link.CreatedAt, link.Visits,
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, code string) (Link, error) {
	if s == nil || s.db == nil {
		return Link{}, ErrDisabled
	}
	var l Link
	err := s.db.QueryRowContext(ctx,
		`SELECT code, url, client_id, created_at, visits FROM links WHERE code = ?`, code,
	).Scan(&l.Code, &l.URL, &l.ClientID, &l.CreatedAt, &l.Visits)
	if errors.Is(err, sql.ErrNoRows) {
		return Link{}, ErrNotFound
	}
	if err != nil {
		return Link{}, err
	}
	return l, nil
}

func (s *sqliteStore) LookupByURL(ctx context.Context, url string) (Link, error) {
	if s == nil || s.db == nil {
		return Link{}, ErrDisabled
	}
	var l Link
	err := s.db.QueryRowContext(ctx,
		`SELECT code, url, client_id, created_at, visits FROM links WHERE url = ? LIMIT 1`, url,
	).Scan(&l.Code, &l.URL, &l.ClientID, &l.CreatedAt, &l.Visits)
	if errors.Is(err, sql.ErrNoRows) {
		return Link{}, ErrNotFound
	}
	if err != nil {
		return Link{}, err
	}
	return l, nil
}

func (s *sqliteStore) RecordVisit(ctx context.Context, code string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE links SET visits = visits + 1 WHERE code = ?`, code)
	return err
}
