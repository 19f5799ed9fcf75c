package record

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	// KindJSON holds a non-scalar attribute (object or array) as compact JSON text.
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged attribute scalar. The zero Value is Null.
// Numbers are kept as decimals so that stringification is exact and stable
// between runs, which the group identifiers depend on.
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
	b    bool
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int is a convenience constructor for integral numbers.
func Int(n int64) Value { return Number(decimal.NewFromInt(n)) }

// FromAny converts a decoded JSON value (decoded with UseNumber) into a Value.
func FromAny(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(d), nil
	case float64:
		return Number(decimal.NewFromFloat(t)), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(t)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindJSON, str: string(raw)}, nil
	default:
		return Value{}, fmt.Errorf("unsupported attribute type %T", v)
	}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsAbsent reports whether the value cannot name a group: null or the empty string.
func (v Value) IsAbsent() bool {
	return v.kind == KindNull || (v.kind == KindString && v.str == "")
}

// String renders the value the way it appears in file names and filters.
func (v Value) String() string {
	switch v.kind {
	case KindString, KindJSON:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Equal is strict: kinds must match, numbers compare by value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindNumber:
		return v.num.Equal(o.num)
	case KindBool:
		return v.b == o.b
	default:
		return v.str == o.str
	}
}

// Key returns a comparable form of the value, usable as a map key.
// Two values have the same Key iff they are Equal.
func (v Value) Key() string {
	return v.kind.String() + ":" + v.String()
}

// Interface returns the value in the shape encoding/json should emit.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return json.Number(v.num.String())
	case KindBool:
		return v.b
	case KindJSON:
		return json.RawMessage(v.str)
	default:
		return nil
	}
}
