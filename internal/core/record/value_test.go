package record

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValue_StringAndKey(t *testing.T) {
	tests := []struct {
		name    string
		value   Value
		wantStr string
		wantKey string
	}{
		{name: "null", value: Null(), wantStr: "", wantKey: "null:"},
		{name: "string", value: String("North"), wantStr: "North", wantKey: "string:North"},
		{name: "integer", value: Int(42), wantStr: "42", wantKey: "number:42"},
		{name: "trailing zeros trimmed", value: Number(decimal.RequireFromString("1.50")), wantStr: "1.5", wantKey: "number:1.5"},
		{name: "bool", value: Bool(true), wantStr: "true", wantKey: "bool:true"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.wantStr, tc.value.String())
			require.Equal(t, tc.wantKey, tc.value.Key())
		})
	}
}

func TestValue_EqualIsStrictOnKind(t *testing.T) {
	require.True(t, Null().Equal(Null()))
	require.True(t, Number(decimal.RequireFromString("2.0")).Equal(Int(2)))
	require.False(t, String("1").Equal(Int(1)))
	require.False(t, String("true").Equal(Bool(true)))
	require.NotEqual(t, String("1").Key(), Int(1).Key())
}

func TestValue_IsAbsent(t *testing.T) {
	require.True(t, Null().IsAbsent())
	require.True(t, String("").IsAbsent())
	require.False(t, String(" ").IsAbsent())
	require.False(t, Int(0).IsAbsent())
	require.False(t, Bool(false).IsAbsent())
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(json.Number("12.30"))
	require.NoError(t, err)
	require.Equal(t, KindNumber, v.Kind())
	require.Equal(t, "12.3", v.String())

	v, err = FromAny(map[string]interface{}{"a": json.Number("1")})
	require.NoError(t, err)
	require.Equal(t, KindJSON, v.Kind())
	require.Equal(t, `{"a":1}`, v.String())

	_, err = FromAny(json.Number("nope"))
	require.Error(t, err)

	_, err = FromAny(struct{}{})
	require.Error(t, err)
}
