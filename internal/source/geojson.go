package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/record"
)

// GeoJSONReader reads a GeoJSON FeatureCollection one feature at a time, without
// holding the whole document in memory.
type GeoJSONReader struct {
	path string
}

// NewGeoJSONReader returns a reader for the FeatureCollection at path.
func NewGeoJSONReader(path string) *GeoJSONReader {
	return &GeoJSONReader{path: CleanPath(path)}
}

func (r *GeoJSONReader) Path() string {
	return r.path
}

func (r *GeoJSONReader) Open() (Source, error) {
	if err := statDataset(r.path); err != nil {
		return nil, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ErrSourceUnreadable, err, "open %s", r.path)
	}

	src := newGeoJSONSource(f)
	if err := src.seekFeatures(); err != nil {
		f.Close()
		return nil, coreerr.Wrap(coreerr.ErrSourceUnreadable, err, "open %s", r.path)
	}
	return src, nil
}

type geoJSONSource struct {
	c     io.Closer
	dec   *json.Decoder
	index int64
	done  bool
}

func newGeoJSONSource(rc io.ReadCloser) *geoJSONSource {
	dec := json.NewDecoder(bufio.NewReader(rc))
	dec.UseNumber()
	return &geoJSONSource{c: rc, dec: dec}
}

// seekFeatures advances the decoder to the first element of the top-level "features" array.
func (s *geoJSONSource) seekFeatures() error {
	if err := s.expectDelim('{'); err != nil {
		return err
	}
	for s.dec.More() {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		if name == "features" {
			return s.expectDelim('[')
		}
		// Skip members that precede the feature list ("type", "crs", "bbox", ...).
		var skip json.RawMessage
		if err := s.dec.Decode(&skip); err != nil {
			return err
		}
	}
	return fmt.Errorf("document has no features array")
}

func (s *geoJSONSource) expectDelim(want json.Delim) error {
	tok, err := s.dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func (s *geoJSONSource) Next(ctx context.Context) (record.Record, error) {
	if err := checkContext(ctx); err != nil {
		return record.Record{}, err
	}
	if s.done {
		return record.Record{}, io.EOF
	}
	if !s.dec.More() {
		// Members after the feature list are not read.
		if err := s.expectDelim(']'); err != nil {
			return record.Record{}, &coreerr.DecodeError{Index: s.index, Err: err}
		}
		s.done = true
		return record.Record{}, io.EOF
	}

	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		return record.Record{}, &coreerr.DecodeError{Index: s.index, Err: err}
	}
	rec, err := record.DecodeFeature(raw)
	if err != nil {
		return record.Record{}, &coreerr.DecodeError{Index: s.index, Err: err}
	}
	s.index++
	return rec, nil
}

func (s *geoJSONSource) Close() error {
	return s.c.Close()
}
