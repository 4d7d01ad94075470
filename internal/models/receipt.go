package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is a single purchase transaction owned by one user. Total is always
// present; sub_total, tax, tax_rate and tip may be absent because not every
// receipt itemizes them.
type Receipt struct {
	ID             int64               `db:"id"`
	UserID         int64               `db:"user_id"`
	Company        string              `db:"company"`
	Address        string              `db:"address"`
	CompanyPhone   string              `db:"company_phone"`
	Date           time.Time           `db:"date"`
	Time           *time.Time          `db:"time"`
	SubTotal       decimal.NullDecimal `db:"sub_total"`
	Tax            decimal.NullDecimal `db:"tax"`
	TaxRate        decimal.NullDecimal `db:"tax_rate"`
	Total          decimal.Decimal     `db:"total"`
	Tip            decimal.NullDecimal `db:"tip"`
	CurrencySymbol string              `db:"currency_symbol"`
	CurrencyCode   string              `db:"currency_code"`
	ReceiptType    Category            `db:"receipt_type"`
	ItemCount      int                 `db:"item_count"`
	RawEmail       string              `db:"raw_email"`
	RawImages      []string            `db:"raw_images"`
	ManualEntry    bool                `db:"manual_entry"`
	CreatedAt      time.Time           `db:"created_at"`

	Items []Item `db:"-"`
	Tags  []Tag  `db:"-"`
}

// Item is a single line on a receipt. Items are exclusively owned by their
// receipt and deleted with it.
type Item struct {
	ID           int64           `db:"id"`
	ReceiptID    int64           `db:"receipt_id"`
	Description  string          `db:"description"`
	ProductID    string          `db:"product_id"`
	Quantity     decimal.Decimal `db:"quantity"`
	QuantityUnit string          `db:"quantity_unit"`
	Price        decimal.Decimal `db:"price"`
	TotalPrice   decimal.Decimal `db:"total_price"`
	ItemCategory Category        `db:"item_category"`
}

// Tag is a user-scoped label, unique per (user, name), attached to receipts
// many-to-many.
type Tag struct {
	ID     int64  `db:"id"`
	UserID int64  `db:"user_id"`
	Name   string `db:"name"`
}
