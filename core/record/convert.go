package record

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// ToInt64 converts numeric values and numeric text to an int64. Floats are
// accepted only when they hold a whole number.
func ToInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float32:
		return int64(val), float32(int64(val)) == val
	case float64:
		return int64(val), float64(int64(val)) == val
	case decimal.Decimal:
		return val.IntPart(), val.IsInteger()
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(val), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// ToFloat64 converts numeric values and numeric text to a float64.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case decimal.Decimal:
		return val.InexactFloat64(), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(val), 64)
		return f, err == nil
	}
	if n, ok := ToInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
