package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/record"
)

// Source is one lazy pass over a dataset. Next returns io.EOF at the end of the stream
// and a *errors.DecodeError when a record cannot be decoded.
type Source interface {
	Next(ctx context.Context) (record.Record, error)
	Close() error
}

// Reader opens independent passes over the same dataset. Discovery and partitioning
// each take their own pass.
type Reader interface {
	Open() (Source, error)
	Path() string
}

// Dataset formats.
const (
	FormatShapefile = "shapefile"
	FormatGeoJSON   = "geojson"
)

// NewReader resolves path to a dataset reader. The path is cleaned first; a bare path
// with no known extension is treated as a shapefile, whose opener appends ".shp".
// One pass is opened and closed right away so an unreadable dataset fails here.
func NewReader(path string) (Reader, error) {
	clean := CleanPath(path)
	if clean == "" {
		return nil, coreerr.Wrap(coreerr.ErrSourceUnreadable, fmt.Errorf("empty path"), "open dataset")
	}

	var r Reader
	switch DetectFormat(clean) {
	case FormatGeoJSON:
		r = &GeoJSONReader{path: clean}
	default:
		r = &ShapefileReader{path: clean}
	}

	src, err := r.Open()
	if err != nil {
		return nil, err
	}
	if err := src.Close(); err != nil {
		return nil, coreerr.Wrap(coreerr.ErrSourceUnreadable, err, "close %s", r.Path())
	}
	return r, nil
}

// DetectFormat picks the decoder for a cleaned path by its extension.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return FormatGeoJSON
	default:
		return FormatShapefile
	}
}

// CleanPath normalizes a user-supplied dataset path: surrounding whitespace and quote
// characters go, Windows separators become '/', and a trailing ".shp" is dropped.
func CleanPath(path string) string {
	p := strings.TrimSpace(path)
	p = strings.NewReplacer(`"`, "", `'`, "").Replace(p)
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasSuffix(strings.ToLower(p), ".shp") {
		p = p[:len(p)-len(".shp")]
	}
	return strings.TrimSpace(p)
}

func statDataset(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return coreerr.Wrap(coreerr.ErrSourceUnreadable, err, "open %s", path)
	}
	if info.IsDir() {
		return coreerr.Wrap(coreerr.ErrSourceUnreadable, fmt.Errorf("is a directory"), "open %s", path)
	}
	return nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
