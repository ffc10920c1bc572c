package replica

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCount(t *testing.T) {
	tests := []struct {
		name   string
		result any
		want   int64
	}{
		{"flat rows", []map[string]any{{"count": int64(120)}}, 120},
		{"nested rows", [][]map[string]any{{{"count": int64(45)}}, {}}, 45},
		{"nested any", []any{[]any{map[string]any{"count": "100"}}, []any{}}, 100},
		{"count star column", []map[string]any{{"COUNT(*)": int64(7)}}, 7},
		{"single unnamed column", []map[string]any{{"c": uint64(9)}}, 9},
		{"byte slice from text protocol", []map[string]any{{"count": []byte("50")}}, 50},
		{"numeric string", "12", 12},
		{"bare int", 3, 3},
		{"float", 4.0, 4},
		{"row map", map[string]any{"count": int32(8)}, 8},
		{"array of scalars", [][]any{{int64(11)}}, 11},
		{"nil", nil, 0},
		{"empty rows", []map[string]any{}, 0},
		{"empty nested", [][]map[string]any{}, 0},
		{"non numeric string", []map[string]any{{"count": "many"}}, 0},
		{"negative", -5, 0},
		{"nan", math.NaN(), 0},
		{"ambiguous row", []map[string]any{{"a": 1, "b": 2}}, 0},
		{"bool", true, 0},
		{"too deep", [][][][][][]any{{{{{{int64(1)}}}}}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCount(tt.result))
		})
	}
}

func TestExtractField(t *testing.T) {
	rows := []map[string]any{{"size_mb": []byte("12.50"), "row_estimate": int64(1000)}}

	size, ok := ExtractField(rows, "size_mb")
	assert.True(t, ok)
	assert.Equal(t, 12.5, size)

	est, ok := ExtractField([][]map[string]any{rows}, "ROW_ESTIMATE")
	assert.True(t, ok)
	assert.Equal(t, 1000.0, est)

	_, ok = ExtractField(rows, "missing")
	assert.False(t, ok)
	_, ok = ExtractField(5, "size_mb")
	assert.False(t, ok)
}
