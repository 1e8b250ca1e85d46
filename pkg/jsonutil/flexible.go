package jsonutil

import (
	"fmt"
	"strconv"
	"strings"
)

// String coerces a decoded JSON value to a string. County and state feeds
// are loosely typed: numeric parcel ids, boolean flags, and numbers-as-text
// all show up where strings are expected. Returns "" for nil.
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	}
	return fmt.Sprintf("%v", v)
}

// Float coerces a decoded JSON value to a float64. String values may carry
// currency formatting ("$485,000"); those are stripped before parsing.
// The second return reports whether a usable number was found.
func Float(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(val, ",", ""), "$", ""))
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
