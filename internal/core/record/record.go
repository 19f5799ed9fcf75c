package record

import "github.com/paulmach/orb"

// Record is one geometry + attribute unit read from a dataset.
// Records are treated as immutable once a source hands them out.
type Record struct {
	// ID is the feature identifier of GeoJSON inputs: a string, a json.Number, or nil.
	ID interface{}
	// BBox is the feature bounding box of GeoJSON inputs, nil when the input has none.
	BBox []float64
	// Geometry is nil for null shapes.
	Geometry   orb.Geometry
	Attributes map[string]Value
}

// Attr returns the attribute value for key, or Null when the key is missing.
func (r Record) Attr(key string) Value {
	if r.Attributes == nil {
		return Null()
	}
	return r.Attributes[key]
}

// Keys returns the attribute names in no particular order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.Attributes))
	for k := range r.Attributes {
		keys = append(keys, k)
	}
	return keys
}
