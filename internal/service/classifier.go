package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/squirll/receiptd/internal/models"
	"github.com/squirll/receiptd/pkg/config"
)

// ClassifyItem is one line item submitted for classification.
type ClassifyItem struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	ProductID   string `json:"product_id"`
}

// ClassifiedItem is the classifier's verdict for one item.
type ClassifiedItem struct {
	ID       int64
	Category models.Category
}

// ItemClassifier assigns a spending category to each submitted item. One
// call covers a whole receipt; implementations must not be called per item.
type ItemClassifier interface {
	ClassifyItems(ctx context.Context, items []ClassifyItem) ([]ClassifiedItem, error)
}

const classifierSystemPrompt = `You are an expert at categorizing shopping items into spending categories.

Analyze each item's description and product_id to determine the most appropriate category.

Categorization guidelines:
1. Groceries: food items, beverages, household consumables
2. Apparel: clothing, shoes, accessories, jewelry
3. Dining Out: restaurant meals, takeout, food delivery
4. Electronics: gadgets, computers, phones, tech accessories
5. Supplies: office supplies, school supplies, general supplies
6. Healthcare: medicine, medical supplies, health products
7. Home: furniture, home decor, household items, appliances
8. Utilities: electric, gas, water, internet, phone bills
9. Transportation: fuel, car maintenance, public transit, rideshare
10. Insurance: health, car, home, life insurance
11. Personal Care: cosmetics, toiletries, grooming products
12. Subscriptions: streaming services, magazines, software subscriptions
13. Entertainment: movies, games, books, hobbies, sports
14. Education: books, courses, school supplies, tuition
15. Pets: pet food, toys, veterinary, pet supplies
16. Travel: hotels, flights, vacation expenses
17. Other: items that don't fit other categories

For each item, consider its primary purpose, where it would typically be
purchased, and what expense category it represents for budgeting.

If uncertain, use category 17 (Other).`

// GeminiClassifier classifies items with one structured-output model call
// per receipt.
type GeminiClassifier struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewGeminiClassifier(cfg *config.GeminiConfig, timeout time.Duration, logger *zap.Logger) (*GeminiClassifier, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClassifier{
		client:  client,
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (c *GeminiClassifier) ClassifyItems(ctx context.Context, items []ClassifyItem) ([]ClassifiedItem, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	prompt := classifierSystemPrompt + "\n\nCategorize these items:\n" + string(payload)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
		ResponseSchema:   classifierSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("classify items: %w", err)
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return nil, fmt.Errorf("classify items: empty model response")
	}

	return parseClassifierResponse(cleanModelJSON(raw))
}

// parseClassifierResponse decodes the structured output and rejects any
// category outside the enumerated domain.
func parseClassifierResponse(raw string) ([]ClassifiedItem, error) {
	var parsed struct {
		CategorizedItems []struct {
			ID       int64 `json:"id"`
			Category int   `json:"category"`
		} `json:"categorized_items"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("classify items: malformed response: %w", err)
	}

	out := make([]ClassifiedItem, 0, len(parsed.CategorizedItems))
	for _, ci := range parsed.CategorizedItems {
		category := models.Category(ci.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("classify items: category %d out of range for item %d", ci.Category, ci.ID)
		}
		out = append(out, ClassifiedItem{ID: ci.ID, Category: category})
	}
	return out, nil
}

func classifierSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"categorized_items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":       {Type: genai.TypeInteger},
						"category": {Type: genai.TypeInteger, Description: "Category code 1-17"},
					},
					Required: []string{"id", "category"},
				},
			},
		},
		Required: []string{"categorized_items"},
	}
}
