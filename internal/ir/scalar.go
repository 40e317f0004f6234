package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Scalar is a sealed interface for literal values in the IR.
// Only Null, String, Number, and Bool implement it.
//
// Unlike event-log IRs that forbid floats for replay determinism, query
// literals require fractional numbers (prices, rates), so Number is a
// float64. Integral values render without a decimal point.
type Scalar interface {
	scalarValue() // Sealed - only these types implement it
}

// Null represents SQL NULL.
type Null struct{}

func (Null) scalarValue() {}

// String represents a string literal.
type String string

func (String) scalarValue() {}

// Number represents a numeric literal. Integral values render as integers.
type Number float64

func (Number) scalarValue() {}

// Bool represents a boolean literal.
type Bool bool

func (Bool) scalarValue() {}

// ScalarFromJSON converts a decoded JSON value into a Scalar.
// Accepts nil, string, bool, float64, json.Number, and integer types.
func ScalarFromJSON(v any) (Scalar, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case float64:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number out of range: %s", val)
		}
		return Number(f), nil
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

// GoValue returns the plain Go representation of a Scalar, suitable for
// JSON serialization of the IR.
func GoValue(s Scalar) any {
	switch val := s.(type) {
	case Null:
		return nil
	case String:
		return string(val)
	case Bool:
		return bool(val)
	case Number:
		f := float64(val)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f)
		}
		return f
	default:
		return nil
	}
}

// RenderScalar renders a Scalar as inline SQL text.
//
// CRITICAL: string literals escape internal single quotes by doubling
// them. Because literals are inlined rather than parameter-bound, this
// escaping is the sole defense at the generator trust boundary and must
// be preserved by any change to this function.
func RenderScalar(s Scalar) string {
	switch val := s.(type) {
	case Null:
		return "NULL"
	case Bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case Number:
		f := float64(val)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case String:
		return quoteString(string(val))
	default:
		return "NULL"
	}
}

// quoteString single-quotes s, doubling internal single quotes.
// 'O''Brien' style - see RenderScalar.
func quoteString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
		} else {
			out = append(out, s[i])
		}
	}
	out = append(out, '\'')
	return string(out)
}
