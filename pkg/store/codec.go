package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EncodeValue converts a value to its stored string form. Scalars keep their
// native Redis string representation so counters stay incrementable;
// structured values become JSON; times become RFC 3339.
func EncodeValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode value: %w", err)
		}
		return string(data), nil
	}
}

// DecodeValue recovers a typed value from its stored string form: integers
// come back as int64, decimals as float64, JSON objects/arrays as their
// unmarshaled form, everything else as the raw string.
func DecodeValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if len(s) > 0 && (s[0] == '{' || s[0] == '[') {
		var v interface{}
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}
