package destination

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
)

// DefaultRootName is the folder under the user's home directory that holds split output
// when no root is configured.
const DefaultRootName = "Shapefiles"

// Folder writes documents as files into one local directory.
type Folder struct {
	dir string
}

// NewFolder resolves root/sub and creates it if needed. An empty root means ~/Shapefiles.
func NewFolder(root, sub string) (*Folder, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, coreerr.Wrap(coreerr.ErrDestinationWrite, err, "resolve home directory")
		}
		root = filepath.Join(home, DefaultRootName)
	}

	dir := root
	if sub != "" {
		dir = filepath.Join(root, filepath.FromSlash(sub))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, coreerr.Wrap(coreerr.ErrDestinationWrite, err, "create destination %s", dir)
	}
	slog.Debug("[Destination] Folder ready", "dir", dir)
	return &Folder{dir: dir}, nil
}

func (f *Folder) Location() string {
	return f.dir
}

// Put writes data to a temporary file next to the target and renames it into place, so a
// reader never sees a half-written document.
func (f *Folder) Put(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(f.dir, name)
	tmp, err := os.CreateTemp(f.dir, ".geosplit-*.tmp")
	if err != nil {
		return coreerr.Wrap(coreerr.ErrDestinationWrite, err, "write %s", target)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return coreerr.Wrap(coreerr.ErrDestinationWrite, err, "write %s", target)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return coreerr.Wrap(coreerr.ErrDestinationWrite, err, "write %s", target)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return coreerr.Wrap(coreerr.ErrDestinationWrite, err, "write %s", target)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return coreerr.Wrap(coreerr.ErrDestinationWrite, fmt.Errorf("rename: %w", err), "write %s", target)
	}
	return nil
}
