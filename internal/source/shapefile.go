package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/record"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// ShapefileReader reads an ESRI shapefile (.shp geometry + .dbf attributes).
// Attribute text is decoded with the encoding named in the optional .cpg sidecar,
// falling back to Windows-1252 for bytes that are not valid UTF-8.
type ShapefileReader struct {
	// path is the dataset path without the ".shp" suffix.
	path string
}

// NewShapefileReader returns a reader for the shapefile at path (".shp" optional).
func NewShapefileReader(path string) *ShapefileReader {
	return &ShapefileReader{path: CleanPath(path)}
}

func (r *ShapefileReader) Path() string {
	return r.path + ".shp"
}

func (r *ShapefileReader) Open() (Source, error) {
	if err := statDataset(r.Path()); err != nil {
		return nil, err
	}
	// go-shp opens the attribute table lazily and does not survive a missing one.
	if err := statDataset(r.path + ".dbf"); err != nil {
		return nil, err
	}

	dec, err := sidecarDecoder(r.path + ".cpg")
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ErrSourceUnreadable, err, "open %s", r.Path())
	}

	rd, err := shp.Open(r.Path())
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ErrSourceUnreadable, err, "open %s", r.Path())
	}
	return &shapefileSource{r: rd, fields: rd.Fields(), decoder: dec}, nil
}

type shapefileSource struct {
	r       *shp.Reader
	fields  []shp.Field
	decoder *encoding.Decoder
	index   int64
}

func (s *shapefileSource) Next(ctx context.Context) (record.Record, error) {
	if err := checkContext(ctx); err != nil {
		return record.Record{}, err
	}
	if !s.r.Next() {
		if err := s.r.Err(); err != nil {
			return record.Record{}, &coreerr.DecodeError{Index: s.index, Err: err}
		}
		return record.Record{}, io.EOF
	}

	row, shape := s.r.Shape()
	geom, err := convertShape(shape)
	if err != nil {
		return record.Record{}, &coreerr.DecodeError{Index: s.index, Err: err}
	}

	attrs := make(map[string]record.Value, len(s.fields))
	for i, f := range s.fields {
		raw := s.r.ReadAttribute(row, i)
		v, err := s.parseAttribute(f, raw)
		if err != nil {
			return record.Record{}, &coreerr.DecodeError{Index: s.index, Err: fmt.Errorf("field %s: %w", f.String(), err)}
		}
		attrs[f.String()] = v
	}

	s.index++
	return record.Record{Geometry: geom, Attributes: attrs}, nil
}

func (s *shapefileSource) Close() error {
	s.r.Close()
	return nil
}

// parseAttribute converts one dBASE cell by field type. Blank and unparseable cells are Null.
func (s *shapefileSource) parseAttribute(f shp.Field, raw string) (record.Value, error) {
	raw = strings.TrimRight(raw, "\x00")
	switch f.Fieldtype {
	case 'N', 'F':
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return record.Null(), nil
		}
		return record.Number(d), nil
	case 'L':
		switch strings.TrimSpace(raw) {
		case "Y", "y", "T", "t":
			return record.Bool(true), nil
		case "N", "n", "F", "f":
			return record.Bool(false), nil
		default:
			return record.Null(), nil
		}
	case 'D':
		d := strings.TrimSpace(raw)
		if len(d) != 8 {
			return record.Null(), nil
		}
		return record.String(d[0:4] + "-" + d[4:6] + "-" + d[6:8]), nil
	default:
		text, err := s.decode(strings.TrimSpace(raw))
		if err != nil {
			return record.Value{}, err
		}
		if text == "" {
			return record.Null(), nil
		}
		return record.String(text), nil
	}
}

func (s *shapefileSource) decode(raw string) (string, error) {
	if s.decoder != nil {
		return s.decoder.String(raw)
	}
	if utf8.ValidString(raw) {
		return raw, nil
	}
	return charmap.Windows1252.NewDecoder().String(raw)
}

// sidecarDecoder returns the decoder named by a .cpg file. A missing sidecar or a UTF-8
// code page yields nil, which means "UTF-8, falling back to Windows-1252".
func sidecarDecoder(path string) (*encoding.Decoder, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(string(data))
	if name == "" {
		return nil, nil
	}
	if isDigits(name) {
		name = "windows-" + name
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown code page %q in %s", name, path)
	}
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return enc.NewDecoder(), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func convertShape(s shp.Shape) (orb.Geometry, error) {
	switch g := s.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return orb.Point{g.X, g.Y}, nil
	case *shp.PointZ:
		return orb.Point{g.X, g.Y}, nil
	case *shp.PointM:
		return orb.Point{g.X, g.Y}, nil
	case *shp.MultiPoint:
		return multiPoint(g.Points), nil
	case *shp.MultiPointZ:
		return multiPoint(g.Points), nil
	case *shp.MultiPointM:
		return multiPoint(g.Points), nil
	case *shp.PolyLine:
		return lines(g.Parts, g.Points)
	case *shp.PolyLineZ:
		return lines(g.Parts, g.Points)
	case *shp.PolyLineM:
		return lines(g.Parts, g.Points)
	case *shp.Polygon:
		return polygons(g.Parts, g.Points)
	case *shp.PolygonZ:
		return polygons(g.Parts, g.Points)
	case *shp.PolygonM:
		return polygons(g.Parts, g.Points)
	default:
		return nil, fmt.Errorf("unsupported shape type %T", s)
	}
}

func multiPoint(pts []shp.Point) orb.MultiPoint {
	mp := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

// splitParts cuts the flat point list of a multi-part shape at the part offsets.
func splitParts(parts []int32, pts []shp.Point) ([][]orb.Point, error) {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || end > int32(len(pts)) {
			return nil, fmt.Errorf("part %d spans invalid point range [%d, %d)", i, start, end)
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out, nil
}

func lines(parts []int32, pts []shp.Point) (orb.Geometry, error) {
	split, err := splitParts(parts, pts)
	if err != nil {
		return nil, err
	}
	switch len(split) {
	case 0:
		return nil, nil
	case 1:
		return orb.LineString(split[0]), nil
	}
	mls := make(orb.MultiLineString, len(split))
	for i, p := range split {
		mls[i] = orb.LineString(p)
	}
	return mls, nil
}

// polygons assembles rings into polygons. Clockwise rings are outer rings; every other
// ring is a hole of the first outer ring that contains it, or an outer ring of its own
// when none does.
func polygons(parts []int32, pts []shp.Point) (orb.Geometry, error) {
	split, err := splitParts(parts, pts)
	if err != nil {
		return nil, err
	}

	var polys []orb.Polygon
	var holes []orb.Ring
	for _, p := range split {
		ring := orb.Ring(p)
		if ring.Orientation() == orb.CW {
			polys = append(polys, orb.Polygon{ring})
		} else {
			holes = append(holes, ring)
		}
	}

	for _, hole := range holes {
		owner := -1
		if len(hole) > 0 {
			for i, poly := range polys {
				if planar.RingContains(poly[0], hole[0]) {
					owner = i
					break
				}
			}
		}
		if owner < 0 {
			polys = append(polys, orb.Polygon{hole})
			continue
		}
		polys[owner] = append(polys[owner], hole)
	}

	switch len(polys) {
	case 0:
		return nil, nil
	case 1:
		return polys[0], nil
	}
	return orb.MultiPolygon(polys), nil
}
