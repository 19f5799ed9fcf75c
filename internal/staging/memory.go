package staging

import (
	"encoding/json"
	"fmt"
	"sync"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/groupkey"
)

// MemoryStore keeps staged chunks in memory. Meant for small inputs and tests.
// Appends fail with a staging I/O error once limit bytes are held.
type MemoryStore struct {
	mu     sync.RWMutex
	limit  int64
	size   int64
	units  map[groupkey.Identifier][][]byte
	order  []groupkey.Identifier
	closed bool
}

// NewMemoryStore creates an in-memory store. limit <= 0 means unbounded.
func NewMemoryStore(limit int64) *MemoryStore {
	return &MemoryStore{
		limit: limit,
		units: make(map[groupkey.Identifier][][]byte),
	}
}

func (s *MemoryStore) Append(id groupkey.Identifier, chunk []byte) error {
	if err := checkChunk(chunk); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return coreerr.Wrap(coreerr.ErrStagingIO, errClosed, "append to unit %q", id)
	}
	if s.limit > 0 && s.size+int64(len(chunk)) > s.limit {
		return coreerr.Wrap(coreerr.ErrStagingIO, fmt.Errorf("memory limit of %d bytes reached", s.limit), "append to unit %q", id)
	}

	if _, ok := s.units[id]; !ok {
		s.order = append(s.order, id)
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.units[id] = append(s.units[id], cp)
	s.size += int64(len(chunk))
	return nil
}

func (s *MemoryStore) Units() ([]groupkey.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, coreerr.Wrap(coreerr.ErrStagingIO, errClosed, "list units")
	}
	out := make([]groupkey.Identifier, len(s.order))
	copy(out, s.order)
	return out, nil
}

func (s *MemoryStore) ReadAll(id groupkey.Identifier) ([]json.RawMessage, error) {
	s.mu.RLock()
	chunks, ok := s.units[id]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, coreerr.Wrap(coreerr.ErrStagingIO, errClosed, "read unit %q", id)
	}
	if !ok {
		return nil, coreerr.Wrap(coreerr.ErrStagingIO, fmt.Errorf("unknown unit"), "read unit %q", id)
	}
	return decodeChunks(id, chunks)
}

// Close drops all staged data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.units = nil
	s.order = nil
	s.size = 0
	return nil
}

// Size returns the number of chunk bytes held.
func (s *MemoryStore) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}
