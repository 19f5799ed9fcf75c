package record

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEncode_FeatureShape(t *testing.T) {
	rec := Record{
		Geometry: orb.Point{1.5, -2},
		Attributes: map[string]Value{
			"region": String("North"),
			"pop":    Number(decimal.RequireFromString("12345678901234567890")),
			"empty":  Null(),
		},
	}

	data, err := Encode(rec)
	require.NoError(t, err)
	require.NotContains(t, string(data), "\n")
	require.JSONEq(t, `{
		"type": "Feature",
		"geometry": {"type": "Point", "coordinates": [1.5, -2]},
		"properties": {"region": "North", "pop": 12345678901234567890, "empty": null}
	}`, string(data))
}

func TestEncode_NullGeometry(t *testing.T) {
	data, err := Encode(Record{Attributes: map[string]Value{"a": Int(1)}})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"Feature","geometry":null,"properties":{"a":1}}`, string(data))

	rec, err := DecodeFeature(data)
	require.NoError(t, err)
	require.Nil(t, rec.Geometry)
	require.True(t, rec.Attr("a").Equal(Int(1)))
}

func TestDecodeFeature_Polygon(t *testing.T) {
	rec, err := DecodeFeature([]byte(`{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"name":"a/b","flag":false}}`))
	require.NoError(t, err)

	poly, ok := rec.Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1)
	require.Equal(t, "a/b", rec.Attr("name").String())
	require.True(t, rec.Attr("flag").Equal(Bool(false)))
	require.True(t, rec.Attr("missing").IsNull())
}

func TestDecodeChunk_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
	}{
		{name: "not json", chunk: `{"type":"Feature",`},
		{name: "wrong type", chunk: `{"type":"FeatureCollection","features":[]}`},
		{name: "bad geometry", chunk: `{"type":"Feature","geometry":{"type":"Blob"},"properties":{}}`},
		{name: "trailing data", chunk: `{"type":"Feature","geometry":null,"properties":{}} {}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeChunk([]byte(tc.chunk))
			require.Error(t, err)
		})
	}
}

func TestAssembleCollection_PreservesOrderAndBytes(t *testing.T) {
	first := json.RawMessage(`{"type":"Feature","geometry":null,"properties":{"n":1.10}}`)
	second := json.RawMessage(`{"type":"Feature","geometry":null,"properties":{"n":2}}`)

	doc, err := AssembleCollection([]json.RawMessage{first, second})
	require.NoError(t, err)
	require.Contains(t, string(doc), `"n":1.10`)

	records, err := DecodeCollection(doc)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "1.1", records[0].Attr("n").String())
	require.Equal(t, "2", records[1].Attr("n").String())
}

func TestAssembleCollection_Empty(t *testing.T) {
	doc, err := AssembleCollection(nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(doc))
}

func TestDecodeFeature_KeepsIDAndBBox(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "string id",
			in:   `{"type":"Feature","id":"parcel-7","bbox":[0,0,1,1],"geometry":null,"properties":{}}`,
			want: `{"type":"Feature","id":"parcel-7","bbox":[0,0,1,1],"geometry":null,"properties":{}}`,
		},
		{
			name: "numeric id keeps its digits",
			in:   `{"type":"Feature","id":12345678901234567890,"geometry":null,"properties":{}}`,
			want: `{"type":"Feature","id":12345678901234567890,"geometry":null,"properties":{}}`,
		},
		{
			name: "null id is dropped",
			in:   `{"type":"Feature","id":null,"geometry":null,"properties":{}}`,
			want: `{"type":"Feature","geometry":null,"properties":{}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := DecodeFeature([]byte(tc.in))
			require.NoError(t, err)

			data, err := Encode(rec)
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(data))
			// JSONEq compares numbers as float64, so check the digits too.
			require.NotContains(t, string(data), "e+")
		})
	}
}

func TestDecodeFeature_RejectsObjectID(t *testing.T) {
	_, err := DecodeFeature([]byte(`{"type":"Feature","id":{"a":1},"geometry":null,"properties":{}}`))
	require.Error(t, err)

	_, err = Encode(Record{ID: []string{"a"}})
	require.Error(t, err)
}
