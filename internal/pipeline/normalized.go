package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/squirll/receiptd/internal/models"
)

// NormalizedReceipt is the backend-independent output of receipt extraction.
// Absent fields stay null rather than being zero-filled; the two exceptions
// are the currency fields, which default to empty strings, and item total
// price, which defaults to 0.
type NormalizedReceipt struct {
	Company        string
	Address        string
	CompanyPhone   string
	Date           string // YYYY-MM-DD
	Time           string // HH:MM:SS, optional
	SubTotal       decimal.NullDecimal
	Tax            decimal.NullDecimal
	TaxRate        decimal.NullDecimal
	Total          decimal.NullDecimal
	Tip            decimal.NullDecimal
	CurrencySymbol string
	CurrencyCode   string
	Items          []NormalizedItem
}

type NormalizedItem struct {
	Description  string
	ProductID    string
	Quantity     decimal.NullDecimal
	QuantityUnit string
	Price        decimal.NullDecimal
	TotalPrice   decimal.Decimal
}

// Validate enforces the schema constraints that gate persistence: total must
// be present, no monetary field may be negative, and every item needs a
// description.
func (r *NormalizedReceipt) Validate() error {
	if r.Company == "" {
		return &ValidationError{Field: "company", Reason: "is required"}
	}
	if !r.Total.Valid {
		return &ValidationError{Field: "total", Reason: "is required"}
	}
	if r.Total.Decimal.IsNegative() {
		return &ValidationError{Field: "total", Reason: "must not be negative"}
	}
	optional := map[string]decimal.NullDecimal{
		"sub_total": r.SubTotal,
		"tax":       r.Tax,
		"tax_rate":  r.TaxRate,
		"tip":       r.Tip,
	}
	for field, v := range optional {
		if v.Valid && v.Decimal.IsNegative() {
			return &ValidationError{Field: field, Reason: "must not be negative"}
		}
	}
	for _, item := range r.Items {
		if item.Description == "" {
			return &ValidationError{Field: "items.description", Reason: "is required"}
		}
		if item.TotalPrice.IsNegative() {
			return &ValidationError{Field: "items.total_price", Reason: "must not be negative"}
		}
	}
	return nil
}

// ToReceipt converts the normalized record into a persistable receipt with
// its items. Items get their documented defaults: quantity 1, unit "Unit(s)",
// price and total price 0, category Other.
func (r *NormalizedReceipt) ToReceipt() (*models.Receipt, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	receipt := &models.Receipt{
		Company:        r.Company,
		Address:        r.Address,
		CompanyPhone:   r.CompanyPhone,
		SubTotal:       r.SubTotal,
		Tax:            r.Tax,
		TaxRate:        r.TaxRate,
		Total:          r.Total.Decimal,
		Tip:            r.Tip,
		CurrencySymbol: r.CurrencySymbol,
		CurrencyCode:   r.CurrencyCode,
		ReceiptType:    models.CategoryOther,
		ItemCount:      len(r.Items),
	}

	date, err := parseDate(r.Date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "is not a valid YYYY-MM-DD date"}
	}
	receipt.Date = date
	if r.Time != "" {
		if t, err := parseTime(r.Time); err == nil {
			receipt.Time = &t
		}
	}

	for _, ni := range r.Items {
		item := models.Item{
			Description:  ni.Description,
			ProductID:    ni.ProductID,
			Quantity:     decimal.NewFromInt(1),
			QuantityUnit: "Unit(s)",
			TotalPrice:   ni.TotalPrice,
			ItemCategory: models.CategoryOther,
		}
		if ni.Quantity.Valid {
			item.Quantity = ni.Quantity.Decimal
		}
		if ni.QuantityUnit != "" {
			item.QuantityUnit = ni.QuantityUnit
		}
		if ni.Price.Valid {
			item.Price = ni.Price.Decimal
		}
		receipt.Items = append(receipt.Items, item)
	}

	return receipt, nil
}
