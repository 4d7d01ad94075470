package dto

import (
	"time"

	"github.com/squirll/receiptd/internal/models"
)

type ItemResponse struct {
	ID           int64  `json:"id"`
	Description  string `json:"description"`
	ProductID    string `json:"product_id"`
	Quantity     string `json:"quantity"`
	QuantityUnit string `json:"quantity_unit"`
	Price        string `json:"price"`
	TotalPrice   string `json:"total_price"`
	Category     int    `json:"item_category"`
	CategoryName string `json:"item_category_display"`
}

type ReceiptResponse struct {
	ID             int64          `json:"id"`
	Company        string         `json:"company"`
	Address        string         `json:"address,omitempty"`
	CompanyPhone   string         `json:"company_phone,omitempty"`
	Date           string         `json:"date"`
	Time           string         `json:"time,omitempty"`
	SubTotal       *string        `json:"sub_total"`
	Tax            *string        `json:"tax"`
	TaxRate        *string        `json:"tax_rate"`
	Total          string         `json:"total"`
	Tip            *string        `json:"tip"`
	CurrencySymbol string         `json:"currency_symbol"`
	CurrencyCode   string         `json:"currency_code"`
	Category       int            `json:"receipt_type"`
	CategoryName   string         `json:"receipt_type_display"`
	ItemCount      int            `json:"item_count"`
	ManualEntry    bool           `json:"manual_entry"`
	CreatedAt      string         `json:"created_at"`
	Items          []ItemResponse `json:"items,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
}

type UploadResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ReceiptID int64  `json:"receipt_id"`
}

type SignedImageResponse struct {
	URLs []string `json:"urls"`
}

func NewReceiptResponse(receipt *models.Receipt) *ReceiptResponse {
	resp := &ReceiptResponse{
		ID:             receipt.ID,
		Company:        receipt.Company,
		Address:        receipt.Address,
		CompanyPhone:   receipt.CompanyPhone,
		Date:           receipt.Date.Format("2006-01-02"),
		SubTotal:       nullMoney(receipt.SubTotal.Decimal.StringFixed(2), receipt.SubTotal.Valid),
		Tax:            nullMoney(receipt.Tax.Decimal.StringFixed(2), receipt.Tax.Valid),
		TaxRate:        nullMoney(receipt.TaxRate.Decimal.String(), receipt.TaxRate.Valid),
		Total:          receipt.Total.StringFixed(2),
		Tip:            nullMoney(receipt.Tip.Decimal.StringFixed(2), receipt.Tip.Valid),
		CurrencySymbol: receipt.CurrencySymbol,
		CurrencyCode:   receipt.CurrencyCode,
		Category:       int(receipt.ReceiptType),
		CategoryName:   receipt.ReceiptType.String(),
		ItemCount:      receipt.ItemCount,
		ManualEntry:    receipt.ManualEntry,
		CreatedAt:      receipt.CreatedAt.Format(time.RFC3339),
	}
	if receipt.Time != nil {
		resp.Time = receipt.Time.Format("15:04:05")
	}
	for _, item := range receipt.Items {
		resp.Items = append(resp.Items, ItemResponse{
			ID:           item.ID,
			Description:  item.Description,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity.StringFixed(5),
			QuantityUnit: item.QuantityUnit,
			Price:        item.Price.StringFixed(2),
			TotalPrice:   item.TotalPrice.StringFixed(2),
			Category:     int(item.ItemCategory),
			CategoryName: item.ItemCategory.String(),
		})
	}
	for _, tag := range receipt.Tags {
		resp.Tags = append(resp.Tags, tag.Name)
	}
	return resp
}

func nullMoney(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}
