package destination

import (
	"context"
	"fmt"
	"strings"

	"github.com/aevon-lab/geosplit/internal/core/config"
	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/groupkey"
)

// Sink receives finished group documents. Put overwrites an existing document of the
// same name. Put is called concurrently for distinct names.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	// Location describes where documents end up, for the run summary.
	Location() string
}

// New builds the sink selected by cfg.
func New(ctx context.Context, cfg config.OutputConfig) (Sink, error) {
	switch cfg.Type {
	case config.OutputMinio:
		return NewBucket(ctx, cfg.Minio, cfg.Folder)
	case config.OutputFilesystem, "":
		return NewFolder(cfg.Root, cfg.Folder)
	default:
		return nil, fmt.Errorf("%w: unsupported output.type %q", coreerr.ErrInvalidConfig, cfg.Type)
	}
}

// DocumentName is the file name of the document for one group.
func DocumentName(id groupkey.Identifier, extension string) string {
	return id.String() + "." + extension
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return coreerr.Wrap(coreerr.ErrDestinationWrite, fmt.Errorf("invalid document name %q", name), "put")
	}
	return nil
}
