package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/squirll/receiptd/internal/imaging"
	"github.com/squirll/receiptd/internal/pipeline"
	"github.com/squirll/receiptd/pkg/config"
)

const geminiExtractionPrompt = `You are a receipt parser. Read the attached receipt and fill the response schema.

Rules:
- Extract the merchant name, address and phone number exactly as printed.
- "date" must be ISO format YYYY-MM-DD; "time" must be HH:MM:SS (24h) or omitted.
- Monetary fields are plain numbers without currency signs.
- Omit any field you cannot read. Never guess amounts and never fill missing
  values with zero.
- "currency_symbol" and "currency_code" are empty strings when not printed.
- List every line item. "total_price" is the line total after quantity.`

// geminiReceipt mirrors the response schema. Pointer fields distinguish
// "absent" from zero.
type geminiReceipt struct {
	Company        string       `json:"company"`
	Address        string       `json:"address"`
	CompanyPhone   string       `json:"company_phone"`
	Date           string       `json:"date"`
	Time           string       `json:"time"`
	SubTotal       *float64     `json:"sub_total"`
	Tax            *float64     `json:"tax"`
	TaxRate        *float64     `json:"tax_rate"`
	Total          *float64     `json:"total"`
	Tip            *float64     `json:"tip"`
	CurrencySymbol string       `json:"currency_symbol"`
	CurrencyCode   string       `json:"currency_code"`
	Items          []geminiItem `json:"items"`
}

type geminiItem struct {
	Description  string   `json:"description"`
	ProductID    string   `json:"product_id"`
	Quantity     *float64 `json:"quantity"`
	QuantityUnit string   `json:"quantity_unit"`
	Price        *float64 `json:"price"`
	TotalPrice   *float64 `json:"total_price"`
}

// GeminiExtractor is the vision-language-model backend. Multiple images are
// first stitched vertically into one taller image; a fragmented receipt
// recognizes noticeably worse as separate photos.
type GeminiExtractor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewGeminiExtractor(cfg *config.GeminiConfig, timeout time.Duration, logger *zap.Logger) (*GeminiExtractor, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiExtractor{
		client:  client,
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (e *GeminiExtractor) Name() string { return "gemini" }

func (e *GeminiExtractor) Extract(ctx context.Context, input ExtractionInput) (*pipeline.NormalizedReceipt, error) {
	parts := []*genai.Part{{Text: geminiExtractionPrompt}}

	switch {
	case len(input.Images) > 0:
		data := input.Images[0]
		if len(input.Images) > 1 {
			stitched, err := imaging.StitchVertical(input.Images)
			if err != nil {
				return nil, &pipeline.ExtractionError{Backend: e.Name(), Err: err}
			}
			data = stitched
		}
		contentType := input.ContentType
		if len(input.Images) > 1 || contentType == "" {
			// StitchVertical always emits JPEG.
			contentType = "image/jpeg"
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: contentType,
				Data:     data,
			},
		})
	case input.HTML != "":
		parts = append(parts, &genai.Part{Text: "Receipt email HTML:\n" + input.HTML})
	default:
		return nil, &pipeline.ExtractionError{Backend: e.Name(), Err: fmt.Errorf("no images or HTML provided")}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiReceiptSchema(),
	})
	if err != nil {
		return nil, &pipeline.ExtractionError{Backend: e.Name(), Err: err}
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return nil, &pipeline.ExtractionError{Backend: e.Name(), Err: fmt.Errorf("empty model response")}
	}

	var parsed geminiReceipt
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &parsed); err != nil {
		return nil, &pipeline.ExtractionError{Backend: e.Name(), Err: fmt.Errorf("malformed model response: %w", err)}
	}

	e.logger.Info("Gemini extraction completed",
		zap.String("company", parsed.Company),
		zap.Int("items", len(parsed.Items)),
	)

	return parsed.normalize(), nil
}

func (r *geminiReceipt) normalize() *pipeline.NormalizedReceipt {
	out := &pipeline.NormalizedReceipt{
		Company:        sanitizeUTF8(r.Company),
		Address:        r.Address,
		CompanyPhone:   r.CompanyPhone,
		Date:           r.Date,
		Time:           r.Time,
		SubTotal:       nullDecimal(r.SubTotal, 2),
		Tax:            nullDecimal(r.Tax, 2),
		TaxRate:        nullDecimal(r.TaxRate, 4),
		Total:          nullDecimal(r.Total, 2),
		Tip:            nullDecimal(r.Tip, 2),
		CurrencySymbol: r.CurrencySymbol,
		CurrencyCode:   r.CurrencyCode,
	}

	for _, item := range r.Items {
		ni := pipeline.NormalizedItem{
			Description:  sanitizeUTF8(item.Description),
			ProductID:    item.ProductID,
			Quantity:     nullDecimal(item.Quantity, 5),
			QuantityUnit: item.QuantityUnit,
			Price:        nullDecimal(item.Price, 2),
		}
		if item.TotalPrice != nil {
			ni.TotalPrice = decimal.NewFromFloat(*item.TotalPrice).Round(2)
		}
		out.Items = append(out.Items, ni)
	}
	return out
}

func nullDecimal(v *float64, places int32) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{
		Decimal: decimal.NewFromFloat(*v).Round(places),
		Valid:   true,
	}
}

// cleanModelJSON strips Markdown fences when the model ignores the
// plain-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func geminiReceiptSchema() *genai.Schema {
	money := &genai.Schema{Type: genai.TypeNumber}
	str := &genai.Schema{Type: genai.TypeString}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"company":         str,
			"address":         str,
			"company_phone":   str,
			"date":            {Type: genai.TypeString, Description: "YYYY-MM-DD"},
			"time":            {Type: genai.TypeString, Description: "HH:MM:SS"},
			"sub_total":       money,
			"tax":             money,
			"tax_rate":        money,
			"total":           money,
			"tip":             money,
			"currency_symbol": str,
			"currency_code":   str,
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"description":   str,
						"product_id":    str,
						"quantity":      {Type: genai.TypeNumber},
						"quantity_unit": str,
						"price":         money,
						"total_price":   money,
					},
					Required: []string{"description"},
				},
			},
		},
		Required: []string{"company", "total", "items"},
	}
}
