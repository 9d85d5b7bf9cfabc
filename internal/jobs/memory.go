// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	rec     Record
	expires time.Time
}

// MemoryStore keeps records in process memory. Expired records are dropped
// lazily on access.
type MemoryStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[string]memEntry
}

// NewMemoryStore returns an empty in-memory store. A zero ttl keeps records forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, data: make(map[string]memEntry)}
}

func (s *MemoryStore) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return now().Add(s.ttl)
}

func (e memEntry) expired() bool {
	return !e.expires.IsZero() && now().After(e.expires)
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.ID] = memEntry{rec: rec.Clone(), expires: s.expiry()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	e, ok := s.data[id]
	s.mu.RUnlock()
	if !ok || e.expired() {
		return Record{}, ErrNotFound
	}
	return e.rec.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Record) error) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[id]
	if !ok || e.expired() {
		delete(s.data, id)
		return Record{}, ErrNotFound
	}
	rec := e.rec.Clone()
	if err := fn(&rec); err != nil {
		return Record{}, err
	}
	rec.UpdatedAt = now()
	s.data[id] = memEntry{rec: rec, expires: s.expiry()}
	return rec.Clone(), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
