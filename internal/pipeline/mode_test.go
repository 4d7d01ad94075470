package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/squirll/receiptd/internal/models"
)

func TestModeCategory(t *testing.T) {
	tests := []struct {
		name       string
		categories []models.Category
		want       models.Category
	}{
		{
			name:       "clear majority",
			categories: []models.Category{models.CategoryGroceries, models.CategoryGroceries, models.CategoryDiningOut},
			want:       models.CategoryGroceries,
		},
		{
			name:       "tie breaks toward lowest code",
			categories: []models.Category{models.CategoryDiningOut, models.CategoryGroceries},
			want:       models.CategoryGroceries,
		},
		{
			name:       "single item",
			categories: []models.Category{models.CategoryTravel},
			want:       models.CategoryTravel,
		},
		{
			name:       "empty falls back to Other",
			categories: nil,
			want:       models.CategoryOther,
		},
		{
			name: "majority beats lower code",
			categories: []models.Category{
				models.CategoryGroceries,
				models.CategoryPets, models.CategoryPets, models.CategoryPets,
			},
			want: models.CategoryPets,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ModeCategory(tt.categories))
		})
	}
}
