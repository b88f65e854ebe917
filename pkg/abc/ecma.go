package abc

import "math"

type nullValue struct{}
type undefinedValue struct{}

var (
	// Null is the ECMAScript null value
	Null = nullValue{}
	// Undefined is the ECMAScript undefined value
	Undefined = undefinedValue{}
)

// ToBoolean converts a constant to boolean with the ECMAScript ToBoolean
// algorithm: null, undefined, false, +0, -0, NaN and "" are false;
// everything else is true.
func ToBoolean(v any) bool {
	switch v := v.(type) {
	case nil, nullValue, undefinedValue:
		return false
	case bool:
		return v
	case string:
		return StringToBoolean(v)
	case float64:
		return NumberToBoolean(v)
	case float32:
		return NumberToBoolean(float64(v))
	case int:
		return v != 0
	case int8:
		return v != 0
	case int16:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case uint:
		return v != 0
	case uint8:
		return v != 0
	case uint16:
		return v != 0
	case uint32:
		return v != 0
	case uint64:
		return v != 0
	default:
		// non-null object
		return true
	}
}

// NumberToBoolean is ToBoolean for Number values
func NumberToBoolean(n float64) bool {
	if math.IsNaN(n) {
		return false
	}
	return n != 0
}

// StringToBoolean is ToBoolean for String values
func StringToBoolean(s string) bool {
	return s != ""
}

// ByteToDouble converts a pushbyte immediate to the Number it pushes.
// The immediate is a signed byte.
func ByteToDouble(imm int) float64 {
	return float64(int8(imm))
}
