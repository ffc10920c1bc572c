package replica

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ExtractCount unwraps a COUNT(*) result. It accepts a flat row list
// ([]map or []any), a doubly nested one ([][]map, as returned alongside
// field metadata), a single row, or a bare scalar. Anything absent,
// negative, non-numeric or malformed yields 0.
func ExtractCount(result any) int64 {
	n, ok := ExtractNumber(result)
	if !ok || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int64(n)
}

// ExtractNumber returns the first column of the first row of result as a
// float64.
func ExtractNumber(result any) (float64, bool) {
	return extract(result, 0)
}

// ExtractField returns the named column of the first row of result.
func ExtractField(result any, field string) (float64, bool) {
	row, ok := firstRow(result, 0)
	if !ok {
		return 0, false
	}
	m, ok := row.(map[string]any)
	if !ok {
		return 0, false
	}
	for k, v := range m {
		if strings.EqualFold(k, field) {
			return toNumber(v)
		}
	}
	return 0, false
}

const maxDepth = 4

func extract(v any, depth int) (float64, bool) {
	row, ok := firstRow(v, depth)
	if !ok {
		return 0, false
	}
	switch r := row.(type) {
	case map[string]any:
		return firstValue(r)
	default:
		return toNumber(r)
	}
}

// firstRow descends through nested lists until it reaches something that
// is not a list.
func firstRow(v any, depth int) (any, bool) {
	if depth > maxDepth || v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case []byte:
		return t, true
	case map[string]any:
		return t, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return nil, false
		}
		return firstRow(rv.Index(0).Interface(), depth+1)
	}
	return v, true
}

// firstValue prefers a column named count, then any single column.
func firstValue(row map[string]any) (float64, bool) {
	for _, key := range []string{"count", "COUNT(*)", "count(*)", "total"} {
		if v, ok := row[key]; ok {
			return toNumber(v)
		}
	}
	if len(row) == 1 {
		for _, v := range row {
			return toNumber(v)
		}
	}
	return 0, false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		return parseNumber(n)
	case []byte:
		return parseNumber(string(n))
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
