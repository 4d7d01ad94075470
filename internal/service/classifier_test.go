package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squirll/receiptd/internal/models"
)

func TestParseClassifierResponse(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		raw := `{"categorized_items": [{"id": 1, "category": 1}, {"id": 2, "category": 3}]}`
		items, err := parseClassifierResponse(raw)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, models.CategoryGroceries, items[0].Category)
		assert.Equal(t, models.CategoryDiningOut, items[1].Category)
	})

	t.Run("category out of range", func(t *testing.T) {
		raw := `{"categorized_items": [{"id": 1, "category": 42}]}`
		_, err := parseClassifierResponse(raw)
		assert.ErrorContains(t, err, "out of range")
	})

	t.Run("category zero rejected", func(t *testing.T) {
		raw := `{"categorized_items": [{"id": 1, "category": 0}]}`
		_, err := parseClassifierResponse(raw)
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := parseClassifierResponse(`{"categorized_items": [`)
		assert.ErrorContains(t, err, "malformed")
	})

	t.Run("empty list", func(t *testing.T) {
		items, err := parseClassifierResponse(`{"categorized_items": []}`)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.in))
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "Trader Joe's", sanitizeUTF8("Trader Joe's"))
	assert.Equal(t, "caf", sanitizeUTF8("caf\xff"))
	assert.Equal(t, "café", sanitizeUTF8("café"))
}
