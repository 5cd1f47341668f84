package storage

import (
	"context"
	"fmt"
	"sync"
)

// memoryStore backs tests and throwaway deployments.
type memoryStore struct {
	mu     sync.RWMutex
	byCode map[string]Link
	byURL  map[string]string // url -> code
}

func newMemory() *memoryStore {
	return &memoryStore{
		byCode: map[string]Link{},
		byURL:  map[string]string{},
	}
}

func (s *memoryStore) Put(ctx context.Context, link Link) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[link.Code]; ok {
		return fmt.Errorf("code %q already taken", link.Code)
	}
	s.byCode[link.Code] = link
	s.byURL[link.URL] = link.Code
	return nil
}

func (s *memoryStore) Get(ctx context.Context, code string) (Link, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byCode[code]
	if !ok {
		return Link{}, ErrNotFound
	}
	return l, nil
}

func (s *memoryStore) LookupByURL(ctx context.Context, url string) (Link, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.byURL[url]
	if !ok {
		return Link{}, ErrNotFound
	}
	return s.byCode[code], nil
}

func (s *memoryStore) RecordVisit(ctx context.Context, code string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byCode[code]
	if !ok {
		return nil
	}
	l.Visits++
	s.byCode[code] = l
	return nil
}

func (s *memoryStore) Close() error { return nil }
