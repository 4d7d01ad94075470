package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/models"
	"github.com/squirll/receiptd/internal/pipeline"
)

type fakeReceiptStore struct {
	mu       sync.Mutex
	receipts map[int64]*models.Receipt
	nextID   int64

	lastRawImages    []string
	updateCalls      int
	lastItemUpdates  map[int64]models.Category
	lastReceiptValue models.Category
	updateErr        error
}

func newFakeReceiptStore(receipts ...*models.Receipt) *fakeReceiptStore {
	store := &fakeReceiptStore{receipts: make(map[int64]*models.Receipt)}
	for _, r := range receipts {
		store.receipts[r.ID] = r
	}
	return store
}

func (f *fakeReceiptStore) CreateWithItems(ctx context.Context, receipt *models.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if receipt.ID == 0 {
		f.nextID++
		receipt.ID = f.nextID
	}
	for i := range receipt.Items {
		f.nextID++
		receipt.Items[i].ID = f.nextID
	}
	f.receipts[receipt.ID] = receipt
	return nil
}

func (f *fakeReceiptStore) GetByID(ctx context.Context, id int64) (*models.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[id]
	if !ok {
		return nil, fmt.Errorf("receipt %d not found", id)
	}
	return r, nil
}

func (f *fakeReceiptStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Receipt, error) {
	return nil, nil
}

func (f *fakeReceiptStore) UpdateRawImages(ctx context.Context, id int64, blobNames []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRawImages = blobNames
	return nil
}

func (f *fakeReceiptStore) rawImages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRawImages
}

func (f *fakeReceiptStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.receipts)
}

func (f *fakeReceiptStore) UpdateCategories(ctx context.Context, receiptID int64, itemCategories map[int64]models.Category, receiptCategory models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updateCalls++
	f.lastItemUpdates = itemCategories
	f.lastReceiptValue = receiptCategory
	return nil
}

type fakeClassifier struct {
	result []ClassifiedItem
	err    error
	calls  int
}

func (f *fakeClassifier) ClassifyItems(ctx context.Context, items []ClassifyItem) ([]ClassifiedItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testReceipt() *models.Receipt {
	return &models.Receipt{
		ID:          7,
		UserID:      1,
		Company:     "Safeway",
		Total:       decimal.RequireFromString("30.00"),
		ReceiptType: models.CategoryOther,
		Items: []models.Item{
			{ID: 101, Description: "Milk", ItemCategory: models.CategoryOther},
			{ID: 102, Description: "Bread", ItemCategory: models.CategoryOther},
			{ID: 103, Description: "Leash", ItemCategory: models.CategoryOther},
		},
	}
}

func TestCategorizeReceipt(t *testing.T) {
	logger := zap.NewNop()

	t.Run("assigns mode of item categories", func(t *testing.T) {
		store := newFakeReceiptStore(testReceipt())
		classifier := &fakeClassifier{result: []ClassifiedItem{
			{ID: 101, Category: models.CategoryGroceries},
			{ID: 102, Category: models.CategoryGroceries},
			{ID: 103, Category: models.CategoryPets},
		}}

		svc := NewCategorizerService(store, classifier, logger)
		result, err := svc.CategorizeReceipt(context.Background(), 7)
		require.NoError(t, err)

		assert.Equal(t, 1, classifier.calls)
		assert.Equal(t, 3, result.ItemsUpdated)
		assert.True(t, result.ReceiptCategoryChanged)
		assert.Equal(t, models.CategoryGroceries, result.NewReceiptCategory)
		assert.Equal(t, "item_analysis", result.Method)
		assert.Equal(t, map[models.Category]int{
			models.CategoryGroceries: 2,
			models.CategoryPets:      1,
		}, result.Distribution)
		assert.Equal(t, models.CategoryGroceries, store.lastReceiptValue)
	})

	t.Run("unchanged items are not rewritten", func(t *testing.T) {
		receipt := testReceipt()
		receipt.Items[0].ItemCategory = models.CategoryGroceries
		store := newFakeReceiptStore(receipt)
		classifier := &fakeClassifier{result: []ClassifiedItem{
			{ID: 101, Category: models.CategoryGroceries},
			{ID: 102, Category: models.CategoryGroceries},
			{ID: 103, Category: models.CategoryPets},
		}}

		svc := NewCategorizerService(store, classifier, logger)
		result, err := svc.CategorizeReceipt(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, 2, result.ItemsUpdated)
		assert.NotContains(t, store.lastItemUpdates, int64(101))
	})

	t.Run("classifier failure leaves categories untouched", func(t *testing.T) {
		store := newFakeReceiptStore(testReceipt())
		classifier := &fakeClassifier{err: fmt.Errorf("model unavailable")}

		svc := NewCategorizerService(store, classifier, logger)
		_, err := svc.CategorizeReceipt(context.Background(), 7)

		var catErr *pipeline.CategorizationError
		require.ErrorAs(t, err, &catErr)
		assert.Equal(t, int64(7), catErr.ReceiptID)
		assert.Zero(t, store.updateCalls)
	})

	t.Run("unknown item ids are skipped", func(t *testing.T) {
		store := newFakeReceiptStore(testReceipt())
		classifier := &fakeClassifier{result: []ClassifiedItem{
			{ID: 101, Category: models.CategoryGroceries},
			{ID: 999, Category: models.CategoryTravel},
		}}

		svc := NewCategorizerService(store, classifier, logger)
		result, err := svc.CategorizeReceipt(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, 1, result.ItemsUpdated)
		assert.NotContains(t, result.Distribution, models.CategoryTravel)
	})

	t.Run("empty receipt skips the classifier", func(t *testing.T) {
		receipt := testReceipt()
		receipt.Items = nil
		receipt.ReceiptType = models.CategoryGroceries
		store := newFakeReceiptStore(receipt)
		classifier := &fakeClassifier{}

		svc := NewCategorizerService(store, classifier, logger)
		result, err := svc.CategorizeReceipt(context.Background(), 7)
		require.NoError(t, err)

		assert.Zero(t, classifier.calls)
		assert.Equal(t, "no_items", result.Method)
		assert.True(t, result.ReceiptCategoryChanged)
		assert.Equal(t, models.CategoryOther, result.NewReceiptCategory)
	})

	t.Run("empty receipt already Other writes nothing", func(t *testing.T) {
		receipt := testReceipt()
		receipt.Items = nil
		store := newFakeReceiptStore(receipt)

		svc := NewCategorizerService(store, &fakeClassifier{}, logger)
		result, err := svc.CategorizeReceipt(context.Background(), 7)
		require.NoError(t, err)
		assert.False(t, result.ReceiptCategoryChanged)
		assert.Zero(t, store.updateCalls)
	})
}
