package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategory(t *testing.T) {
	assert.Equal(t, "Groceries", CategoryGroceries.String())
	assert.Equal(t, "Dining Out", CategoryDiningOut.String())
	assert.Equal(t, "Other", CategoryOther.String())
	assert.Equal(t, "Unknown", Category(0).String())
	assert.Equal(t, "Unknown", Category(18).String())

	assert.True(t, CategoryGroceries.Valid())
	assert.True(t, CategoryOther.Valid())
	assert.False(t, Category(0).Valid())
	assert.False(t, Category(18).Valid())

	all := AllCategories()
	assert.Len(t, all, 17)
	assert.Equal(t, CategoryGroceries, all[0])
	assert.Equal(t, CategoryOther, all[16])
}
