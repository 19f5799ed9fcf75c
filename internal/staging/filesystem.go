package staging

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/groupkey"
)

// FileSystemStore stages each unit as a newline-delimited file inside a private workspace.
// File names are sequence numbers, so identifiers of any length or script stage safely.
type FileSystemStore struct {
	ws      *Workspace
	handles *handleCache

	mu     sync.RWMutex
	files  map[groupkey.Identifier]string
	order  []groupkey.Identifier
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// NewFileSystemStore creates a workspace under parent and a store on top of it.
// maxOpen bounds the number of simultaneously open unit files.
func NewFileSystemStore(parent string, maxOpen int) (*FileSystemStore, error) {
	ws, err := NewWorkspace(parent)
	if err != nil {
		return nil, err
	}
	return &FileSystemStore{
		ws:      ws,
		handles: newHandleCache(maxOpen),
		files:   make(map[groupkey.Identifier]string),
	}, nil
}

// Dir returns the workspace directory.
func (s *FileSystemStore) Dir() string {
	return s.ws.Dir()
}

func (s *FileSystemStore) Append(id groupkey.Identifier, chunk []byte) error {
	if err := checkChunk(chunk); err != nil {
		return err
	}

	path, err := s.pathFor(id)
	if err != nil {
		return err
	}

	h, err := s.handles.get(id, func() (*os.File, error) {
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	})
	if err != nil {
		return coreerr.Wrap(coreerr.ErrStagingIO, err, "open unit %q", id)
	}
	if _, err := h.w.Write(chunk); err != nil {
		return coreerr.Wrap(coreerr.ErrStagingIO, err, "append to unit %q", id)
	}
	if err := h.w.WriteByte(separator); err != nil {
		return coreerr.Wrap(coreerr.ErrStagingIO, err, "append to unit %q", id)
	}
	return nil
}

func (s *FileSystemStore) Units() ([]groupkey.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, coreerr.Wrap(coreerr.ErrStagingIO, errClosed, "list units")
	}
	out := make([]groupkey.Identifier, len(s.order))
	copy(out, s.order)
	return out, nil
}

func (s *FileSystemStore) ReadAll(id groupkey.Identifier) ([]json.RawMessage, error) {
	s.mu.RLock()
	path, ok := s.files[id]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, coreerr.Wrap(coreerr.ErrStagingIO, errClosed, "read unit %q", id)
	}
	if !ok {
		return nil, coreerr.Wrap(coreerr.ErrStagingIO, os.ErrNotExist, "read unit %q", id)
	}

	// Pending writes must reach the file before it is read back.
	if err := s.handles.release(id); err != nil {
		return nil, coreerr.Wrap(coreerr.ErrStagingIO, err, "flush unit %q", id)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ErrStagingIO, err, "open unit %q", id)
	}
	defer f.Close()

	var chunks [][]byte
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes(separator)
		if len(line) > 0 {
			if line[len(line)-1] == separator {
				line = line[:len(line)-1]
			}
			chunks = append(chunks, line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, coreerr.Wrap(coreerr.ErrStagingIO, err, "read unit %q", id)
		}
	}
	return decodeChunks(id, chunks)
}

// Close flushes open handles and removes the workspace. Only the first call does any work.
func (s *FileSystemStore) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		handlesErr := s.handles.closeAll()
		if handlesErr != nil {
			slog.Warn("[Staging] Failed to close unit files", "error", handlesErr)
		}
		s.closeErr = s.ws.Remove()
	})
	return s.closeErr
}

func (s *FileSystemStore) pathFor(id groupkey.Identifier) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", coreerr.Wrap(coreerr.ErrStagingIO, errClosed, "append to unit %q", id)
	}
	if path, ok := s.files[id]; ok {
		return path, nil
	}
	path := filepath.Join(s.ws.Dir(), fmt.Sprintf("unit-%06d.ndjson", len(s.order)))
	s.files[id] = path
	s.order = append(s.order, id)
	return path, nil
}

var errClosed = errors.New("store closed")
