package pipeline

import "github.com/squirll/receiptd/internal/models"

// ModeCategory returns the most frequent category in the list. Ties break
// toward the lowest category code so the result is deterministic. An empty
// list yields Other.
func ModeCategory(categories []models.Category) models.Category {
	if len(categories) == 0 {
		return models.CategoryOther
	}

	counts := make(map[models.Category]int, len(categories))
	for _, c := range categories {
		counts[c]++
	}

	best := models.CategoryOther
	bestCount := 0
	for c := models.CategoryGroceries; c <= models.CategoryOther; c++ {
		if n := counts[c]; n > bestCount {
			best = c
			bestCount = n
		}
	}
	return best
}
