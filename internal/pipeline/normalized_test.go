package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squirll/receiptd/internal/models"
)

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func validReceipt() NormalizedReceipt {
	return NormalizedReceipt{
		Company: "Trader Joe's",
		Date:    "2026-08-01",
		Total:   money("42.50"),
		Items: []NormalizedItem{
			{Description: "Bananas", TotalPrice: decimal.RequireFromString("1.50")},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid receipt passes", func(t *testing.T) {
		r := validReceipt()
		assert.NoError(t, r.Validate())
	})

	t.Run("missing company", func(t *testing.T) {
		r := validReceipt()
		r.Company = ""
		var verr *ValidationError
		require.ErrorAs(t, r.Validate(), &verr)
		assert.Equal(t, "company", verr.Field)
	})

	t.Run("missing total", func(t *testing.T) {
		r := validReceipt()
		r.Total = decimal.NullDecimal{}
		var verr *ValidationError
		require.ErrorAs(t, r.Validate(), &verr)
		assert.Equal(t, "total", verr.Field)
	})

	t.Run("negative tax", func(t *testing.T) {
		r := validReceipt()
		r.Tax = money("-0.01")
		var verr *ValidationError
		require.ErrorAs(t, r.Validate(), &verr)
		assert.Equal(t, "tax", verr.Field)
	})

	t.Run("item without description", func(t *testing.T) {
		r := validReceipt()
		r.Items = append(r.Items, NormalizedItem{TotalPrice: decimal.Zero})
		assert.Error(t, r.Validate())
	})

	t.Run("negative item total", func(t *testing.T) {
		r := validReceipt()
		r.Items[0].TotalPrice = decimal.RequireFromString("-1")
		assert.Error(t, r.Validate())
	})
}

func TestToReceipt(t *testing.T) {
	t.Run("applies item defaults", func(t *testing.T) {
		r := validReceipt()
		receipt, err := r.ToReceipt()
		require.NoError(t, err)

		require.Len(t, receipt.Items, 1)
		item := receipt.Items[0]
		assert.True(t, item.Quantity.Equal(decimal.NewFromInt(1)))
		assert.Equal(t, "Unit(s)", item.QuantityUnit)
		assert.True(t, item.Price.IsZero())
		assert.Equal(t, models.CategoryOther, item.ItemCategory)
		assert.Equal(t, models.CategoryOther, receipt.ReceiptType)
		assert.Equal(t, 1, receipt.ItemCount)
	})

	t.Run("keeps provided quantities", func(t *testing.T) {
		r := validReceipt()
		r.Items[0].Quantity = money("2.5")
		r.Items[0].QuantityUnit = "kg"
		r.Items[0].Price = money("0.60")

		receipt, err := r.ToReceipt()
		require.NoError(t, err)
		item := receipt.Items[0]
		assert.Equal(t, "2.5", item.Quantity.String())
		assert.Equal(t, "kg", item.QuantityUnit)
		assert.Equal(t, "0.6", item.Price.String())
	})

	t.Run("parses date and time", func(t *testing.T) {
		r := validReceipt()
		r.Time = "13:45:10"
		receipt, err := r.ToReceipt()
		require.NoError(t, err)
		assert.Equal(t, 2026, receipt.Date.Year())
		assert.Equal(t, time.August, receipt.Date.Month())
		require.NotNil(t, receipt.Time)
		assert.Equal(t, "13:45:10", receipt.Time.Format("15:04:05"))
	})

	t.Run("missing date falls back to today", func(t *testing.T) {
		r := validReceipt()
		r.Date = ""
		receipt, err := r.ToReceipt()
		require.NoError(t, err)
		assert.Equal(t, time.Now().UTC().Format("2006-01-02"), receipt.Date.Format("2006-01-02"))
	})

	t.Run("malformed date rejected", func(t *testing.T) {
		r := validReceipt()
		r.Date = "08/01/2026"
		_, err := r.ToReceipt()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "date", verr.Field)
	})

	t.Run("unparseable time is dropped", func(t *testing.T) {
		r := validReceipt()
		r.Time = "around noon"
		receipt, err := r.ToReceipt()
		require.NoError(t, err)
		assert.Nil(t, receipt.Time)
	})
}
