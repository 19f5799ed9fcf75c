package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

const (
	typeFeature           = "Feature"
	typeFeatureCollection = "FeatureCollection"
)

// ErrNotFeature is returned when a JSON document is not a GeoJSON Feature.
var ErrNotFeature = errors.New("not a geojson feature")

type feature struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id,omitempty"`
	BBox       []float64              `json:"bbox,omitempty"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type rawFeature struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id"`
	BBox       []float64              `json:"bbox"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type collection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// Encode serializes a record as a single-line GeoJSON Feature.
func Encode(r Record) ([]byte, error) {
	if err := checkID(r.ID); err != nil {
		return nil, fmt.Errorf("encode feature: %w", err)
	}
	f := feature{
		Type:       typeFeature,
		ID:         r.ID,
		BBox:       r.BBox,
		Properties: make(map[string]interface{}, len(r.Attributes)),
	}
	if r.Geometry != nil {
		f.Geometry = geojson.NewGeometry(r.Geometry)
	}
	for k, v := range r.Attributes {
		f.Properties[k] = v.Interface()
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode feature: %w", err)
	}
	return data, nil
}

// DecodeFeature parses one GeoJSON Feature into a Record.
func DecodeFeature(data []byte) (Record, error) {
	raw, err := parseFeature(data)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:         raw.ID,
		BBox:       raw.BBox,
		Attributes: make(map[string]Value, len(raw.Properties)),
	}
	if !isNullJSON(raw.Geometry) {
		g, err := geojson.UnmarshalGeometry(raw.Geometry)
		if err != nil {
			return Record{}, fmt.Errorf("decode geometry: %w", err)
		}
		rec.Geometry = g.Geometry()
	}
	for k, v := range raw.Properties {
		val, err := FromAny(v)
		if err != nil {
			return Record{}, fmt.Errorf("property %q: %w", k, err)
		}
		rec.Attributes[k] = val
	}
	return rec, nil
}

// DecodeChunk checks that a staged chunk is a well-formed Feature and returns it untouched,
// so numbers and property order survive the round trip byte for byte.
func DecodeChunk(chunk []byte) (json.RawMessage, error) {
	raw, err := parseFeature(chunk)
	if err != nil {
		return nil, err
	}
	if !isNullJSON(raw.Geometry) {
		if _, err := geojson.UnmarshalGeometry(raw.Geometry); err != nil {
			return nil, fmt.Errorf("decode geometry: %w", err)
		}
	}
	return json.RawMessage(chunk), nil
}

// AssembleCollection wraps already-encoded features into one FeatureCollection document.
func AssembleCollection(features []json.RawMessage) ([]byte, error) {
	if features == nil {
		features = []json.RawMessage{}
	}
	data, err := json.Marshal(collection{Type: typeFeatureCollection, Features: features})
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return data, nil
}

// DecodeCollection reads a FeatureCollection document back into records.
func DecodeCollection(data []byte) ([]Record, error) {
	var c collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if c.Type != typeFeatureCollection {
		return nil, fmt.Errorf("unexpected document type %q", c.Type)
	}
	out := make([]Record, 0, len(c.Features))
	for i, raw := range c.Features {
		rec, err := DecodeFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseFeature(data []byte) (*rawFeature, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw rawFeature
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode feature: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode feature: trailing data after feature")
	}
	if raw.Type != typeFeature {
		return nil, fmt.Errorf("%w: type=%q", ErrNotFeature, raw.Type)
	}
	if err := checkID(raw.ID); err != nil {
		return nil, fmt.Errorf("decode feature: %w", err)
	}
	return &raw, nil
}

// checkID accepts the identifier forms GeoJSON allows: absent, string or number.
func checkID(id interface{}) error {
	switch id.(type) {
	case nil, string, json.Number, int, int64, float64:
		return nil
	}
	return fmt.Errorf("feature id must be a string or number, got %T", id)
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
