package staging

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
)

// Workspace is the temporary directory that holds all staging units of one run.
// It is removed exactly once, whichever of success or failure gets there first.
type Workspace struct {
	dir string

	once      sync.Once
	removeErr error
}

// NewWorkspace creates a fresh workspace under parent (os.TempDir() when empty).
func NewWorkspace(parent string) (*Workspace, error) {
	dir, err := os.MkdirTemp(parent, "geosplit-*")
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ErrStagingIO, err, "create workspace")
	}
	slog.Debug("[Staging] Workspace created", "dir", dir)
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace path.
func (w *Workspace) Dir() string {
	return w.dir
}

// Remove deletes the workspace and everything in it. Only the first call does any work;
// later calls return the first call's result.
func (w *Workspace) Remove() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.removeErr = fmt.Errorf("remove workspace %s: %w", w.dir, err)
			return
		}
		slog.Debug("[Staging] Workspace removed", "dir", w.dir)
	})
	return w.removeErr
}
