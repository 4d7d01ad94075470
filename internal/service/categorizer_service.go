package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/models"
	"github.com/squirll/receiptd/internal/pipeline"
)

// CategorizationResult reports what a categorization pass changed.
type CategorizationResult struct {
	ItemsUpdated           int
	ReceiptCategoryChanged bool
	OldReceiptCategory     models.Category
	NewReceiptCategory     models.Category
	Distribution           map[models.Category]int
	Method                 string
}

// ReceiptStore is the persistence surface the categorizer and orchestrator
// depend on.
type ReceiptStore interface {
	CreateWithItems(ctx context.Context, receipt *models.Receipt) error
	GetByID(ctx context.Context, id int64) (*models.Receipt, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Receipt, error)
	UpdateRawImages(ctx context.Context, id int64, blobNames []string) error
	UpdateCategories(ctx context.Context, receiptID int64, itemCategories map[int64]models.Category, receiptCategory models.Category) error
}

// CategorizerService assigns a category to every item of a receipt in one
// batched classifier call, then derives the receipt category as the mode of
// its items' categories. Writes are all-or-nothing per receipt: a classifier
// failure leaves every prior category intact.
type CategorizerService struct {
	receipts   ReceiptStore
	classifier ItemClassifier
	logger     *zap.Logger
}

func NewCategorizerService(receipts ReceiptStore, classifier ItemClassifier, logger *zap.Logger) *CategorizerService {
	return &CategorizerService{
		receipts:   receipts,
		classifier: classifier,
		logger:     logger,
	}
}

func (s *CategorizerService) CategorizeReceipt(ctx context.Context, receiptID int64) (*CategorizationResult, error) {
	receipt, err := s.receipts.GetByID(ctx, receiptID)
	if err != nil {
		return nil, &pipeline.CategorizationError{ReceiptID: receiptID, Err: err}
	}

	if len(receipt.Items) == 0 {
		return s.categorizeEmpty(ctx, receipt)
	}

	request := make([]ClassifyItem, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		description := item.Description
		if description == "" {
			description = "Unknown"
		}
		request = append(request, ClassifyItem{
			ID:          item.ID,
			Description: description,
			ProductID:   item.ProductID,
		})
	}

	classified, err := s.classifier.ClassifyItems(ctx, request)
	if err != nil {
		return nil, &pipeline.CategorizationError{ReceiptID: receiptID, Err: err}
	}

	known := make(map[int64]models.Category, len(receipt.Items))
	for _, item := range receipt.Items {
		known[item.ID] = item.ItemCategory
	}

	updates := make(map[int64]models.Category)
	categories := make([]models.Category, 0, len(classified))
	distribution := make(map[models.Category]int)
	for _, ci := range classified {
		prior, ok := known[ci.ID]
		if !ok {
			s.logger.Warn("Classifier returned unknown item",
				zap.Int64("receipt_id", receiptID),
				zap.Int64("item_id", ci.ID),
			)
			continue
		}
		if prior != ci.Category {
			updates[ci.ID] = ci.Category
		}
		categories = append(categories, ci.Category)
		distribution[ci.Category]++
	}

	newCategory := pipeline.ModeCategory(categories)
	if err := s.receipts.UpdateCategories(ctx, receiptID, updates, newCategory); err != nil {
		return nil, &pipeline.CategorizationError{ReceiptID: receiptID, Err: err}
	}

	result := &CategorizationResult{
		ItemsUpdated:           len(updates),
		ReceiptCategoryChanged: receipt.ReceiptType != newCategory,
		OldReceiptCategory:     receipt.ReceiptType,
		NewReceiptCategory:     newCategory,
		Distribution:           distribution,
		Method:                 "item_analysis",
	}

	s.logger.Info("Receipt categorized",
		zap.Int64("receipt_id", receiptID),
		zap.Int("items_updated", result.ItemsUpdated),
		zap.Bool("receipt_category_changed", result.ReceiptCategoryChanged),
		zap.String("category", newCategory.String()),
	)
	return result, nil
}

// categorizeEmpty handles receipts without line items: no classifier call,
// the receipt itself falls back to Other.
func (s *CategorizerService) categorizeEmpty(ctx context.Context, receipt *models.Receipt) (*CategorizationResult, error) {
	result := &CategorizationResult{
		OldReceiptCategory: receipt.ReceiptType,
		NewReceiptCategory: models.CategoryOther,
		Distribution:       map[models.Category]int{},
		Method:             "no_items",
	}

	if receipt.ReceiptType != models.CategoryOther {
		if err := s.receipts.UpdateCategories(ctx, receipt.ID, nil, models.CategoryOther); err != nil {
			return nil, &pipeline.CategorizationError{ReceiptID: receipt.ID, Err: err}
		}
		result.ReceiptCategoryChanged = true
	}
	return result, nil
}
