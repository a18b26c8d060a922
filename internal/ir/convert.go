package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scalar coercions used when a dynamic value meets a declared native type.
// They follow loose dynamic-language rules: numeric strings are numbers,
// numbers and booleans render as text.

// AsString renders a scalar as text.
func AsString(v IRValue) (string, error) {
	switch val := v.(type) {
	case IRString:
		return string(val), nil
	case IRInt:
		return strconv.FormatInt(int64(val), 10), nil
	case IRFloat:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case IRBool:
		if val {
			return "1", nil
		}
		return "", nil
	case IRBytes:
		return string(val), nil
	case nil, IRNull:
		return "", nil
	default:
		return "", fmt.Errorf("cannot use %s as a string", TypeName(v))
	}
}

// AsFloat coerces a scalar to a float64.
func AsFloat(v IRValue) (float64, error) {
	switch val := v.(type) {
	case IRInt:
		return float64(val), nil
	case IRFloat:
		return float64(val), nil
	case IRBool:
		if val {
			return 1, nil
		}
		return 0, nil
	case IRString:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		if err != nil {
			return 0, fmt.Errorf("string %q is not numeric", string(val))
		}
		return f, nil
	case nil, IRNull:
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot use %s as a number", TypeName(v))
	}
}

// AsInt coerces a scalar to an int64. Floats truncate toward zero.
func AsInt(v IRValue) (int64, error) {
	switch val := v.(type) {
	case IRInt:
		return int64(val), nil
	case IRString:
		s := strings.TrimSpace(string(val))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := AsFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is out of integer range", f)
	}
	return int64(f), nil
}

// IsNumeric reports whether v is an int, float or numeric string.
func IsNumeric(v IRValue) bool {
	switch val := v.(type) {
	case IRInt, IRFloat:
		return true
	case IRString:
		_, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		return err == nil
	}
	return false
}

// Truthy applies dynamic-language truthiness: zero, empty and null are false.
func Truthy(v IRValue) bool {
	switch val := v.(type) {
	case nil, IRNull:
		return false
	case IRBool:
		return bool(val)
	case IRInt:
		return val != 0
	case IRFloat:
		return val != 0
	case IRString:
		return val != "" && val != "0"
	case IRBytes:
		return len(val) > 0
	case IRArray:
		return len(val) > 0
	case IRObject:
		return len(val) > 0
	case *Handle:
		return !val.Closed()
	}
	return false
}

// FromAny converts plain Go values (as produced by YAML or CUE decoding)
// into IRValues.
func FromAny(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return IRFloat(val), nil
		}
		return IRInt(val), nil
	case float32:
		return IRFloat(val), nil
	case float64:
		return IRFloat(val), nil
	case []byte:
		return IRBytes(val), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		if enc, ok := val[bytesKey]; ok && len(val) == 1 {
			return convertToIRValue(map[string]any{bytesKey: enc})
		}
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToAny converts an IRValue into plain Go values. Handles are replaced by
// their description.
func ToAny(v IRValue) any {
	switch val := v.(type) {
	case nil, IRNull:
		return nil
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRFloat:
		return float64(val)
	case IRBool:
		return bool(val)
	case IRBytes:
		return []byte(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	case *Handle:
		return ToAny(val.Describe())
	}
	return nil
}
