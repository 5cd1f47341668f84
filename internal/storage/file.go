package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Pawan459/url-shortener/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.links.snapshot.json (periodic snapshot, code -> Link)
//   - <prefix>.links.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File

	byCode map[string]Link
	byURL  map[string]string

	writes int
}

type journalRecord struct {
	Op   string `json:"op"` // "put" or "visit"
	Link *Link  `json:"link,omitempty"`
	Code string `json:"code,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".links.snapshot.json"
	journalPath := prefix + ".links.journal.jsonl"

	byCode := map[string]Link{}
	_ = loadLinkSnapshot(snapPath, byCode)
	_ = replayLinkJournal(journalPath, byCode)

	byURL := make(map[string]string, len(byCode))
	for code, l := range byCode {
		byURL[l.URL] = code
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journalFile:  jf,
		byCode:       byCode,
		byURL:        byURL,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) Put(ctx context.Context, link Link) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("link journal closed")
	}
	if _, ok := s.byCode[link.Code]; ok {
		return fmt.Errorf("code %q already taken", link.Code)
	}
	if err := s.appendLocked(journalRecord{Op: "put", Link: &link}); err != nil {
		return err
	}
	s.byCode[link.Code] = link
	s.byURL[link.URL] = link.Code
	return nil
}

func (s *fileStore) Get(ctx context.Context, code string) (Link, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byCode[code]
	if !ok {
		return Link{}, ErrNotFound
	}
	return l, nil
}

func (s *fileStore) LookupByURL(ctx context.Context, url string) (Link, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.byURL[url]
	if !ok {
		return Link{}, ErrNotFound
	}
	return s.byCode[code], nil
}

func (s *fileStore) RecordVisit(ctx context.Context, code string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("link journal closed")
	}
	l, ok := s.byCode[code]
	if !ok {
		return nil
	}
	if err := s.appendLocked(journalRecord{Op: "visit", Code: code}); err != nil {
		return err
	}
	l.Visits++
	s.byCode[code] = l
	return nil
}

func (s *fileStore) appendLocked(r journalRecord) error {
	if err := json.NewEncoder(s.journalFile).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%1000 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("link compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.byCode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func loadLinkSnapshot(path string, out map[string]Link) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]Link
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayLinkJournal(path string, out map[string]Link) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		switch r.Op {
		case "put":
			if r.Link != nil && r.Link.Code != "" {
				out[r.Link.Code] = *r.Link
			}
		case "visit":
			if l, ok := out[r.Code]; ok {
				l.Visits++
				out[r.Code] = l
			}
		}
	}
	return sc.Err()
}
