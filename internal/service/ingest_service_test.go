package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/jobs"
	"github.com/squirll/receiptd/internal/notify"
	"github.com/squirll/receiptd/internal/pipeline"
)

type fakeExtractor struct {
	out *pipeline.NormalizedReceipt
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, input ExtractionInput) (*pipeline.NormalizedReceipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.out
	return &out, nil
}

func (f *fakeExtractor) Name() string { return "fake" }

type fakeBlobStore struct {
	uploads int
	err     error
}

func (f *fakeBlobStore) Upload(ctx context.Context, data []byte, contentType string, userID int64) (string, error) {
	f.uploads++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("receipts/%d/blob-%d", userID, f.uploads), nil
}

func (f *fakeBlobStore) SignedURL(object string) (string, error) {
	return "https://signed.example/" + object, nil
}

func normalizedFixture() *pipeline.NormalizedReceipt {
	return &pipeline.NormalizedReceipt{
		Company: "Safeway",
		Date:    "2026-08-27",
		Total:   decimal.NewNullDecimal(decimal.RequireFromString("18.20")),
		Items: []pipeline.NormalizedItem{
			{Description: "Milk", TotalPrice: decimal.RequireFromString("4.20")},
			{Description: "Eggs", TotalPrice: decimal.RequireFromString("6.00")},
		},
	}
}

type ingestFixture struct {
	store     *fakeReceiptStore
	blobs     *fakeBlobStore
	extractor *fakeExtractor
	queue     *jobs.Queue
	hub       *notify.Hub
	service   *IngestService
}

func newIngestFixture(t *testing.T, extractor *fakeExtractor) *ingestFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := zap.NewNop()
	store := newFakeReceiptStore()
	blobs := &fakeBlobStore{}
	hub := notify.NewHub(logger)
	go hub.Run(ctx)

	queue := jobs.NewQueue(8, logger)
	queue.Start(ctx, 1)
	t.Cleanup(queue.Stop)

	classifier := &fakeClassifier{result: []ClassifiedItem{}}
	categorizer := NewCategorizerService(store, classifier, logger)
	svc := NewIngestService(store, blobs, extractor, categorizer, queue, hub, logger)
	return &ingestFixture{store: store, blobs: blobs, extractor: extractor, queue: queue, hub: hub, service: svc}
}

func TestIngestImages(t *testing.T) {
	t.Run("persists receipt and schedules background work", func(t *testing.T) {
		fx := newIngestFixture(t, &fakeExtractor{out: normalizedFixture()})
		sub := fx.hub.Subscribe(3)
		defer fx.hub.Unsubscribe(sub)

		receipt, err := fx.service.IngestImages(context.Background(), 3, []UploadedImage{
			{Data: []byte("img-a"), ContentType: "image/jpeg"},
			{Data: []byte("img-b"), ContentType: "image/jpeg"},
		})
		require.NoError(t, err)
		assert.NotZero(t, receipt.ID)
		assert.Equal(t, int64(3), receipt.UserID)
		assert.Len(t, receipt.Items, 2)

		select {
		case <-sub.C:
		case <-time.After(time.Second):
			t.Fatal("no upload notification received")
		}

		require.Eventually(t, func() bool {
			return len(fx.store.rawImages()) == 2
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, 2, fx.blobs.uploads)
	})

	t.Run("extraction failure persists nothing", func(t *testing.T) {
		extractErr := &pipeline.ExtractionError{Backend: "fake", Err: fmt.Errorf("unreadable")}
		fx := newIngestFixture(t, &fakeExtractor{err: extractErr})

		_, err := fx.service.IngestImages(context.Background(), 3, []UploadedImage{{Data: []byte("x")}})
		var target *pipeline.ExtractionError
		require.ErrorAs(t, err, &target)
		assert.Zero(t, fx.store.count())
	})

	t.Run("validation failure persists nothing", func(t *testing.T) {
		bad := normalizedFixture()
		bad.Total = decimal.NullDecimal{}
		fx := newIngestFixture(t, &fakeExtractor{out: bad})

		_, err := fx.service.IngestImages(context.Background(), 3, []UploadedImage{{Data: []byte("x")}})
		var target *pipeline.ValidationError
		require.ErrorAs(t, err, &target)
		assert.Zero(t, fx.store.count())
	})

	t.Run("failed blob upload records sentinel", func(t *testing.T) {
		fx := newIngestFixture(t, &fakeExtractor{out: normalizedFixture()})
		fx.blobs.err = fmt.Errorf("bucket unavailable")

		_, err := fx.service.IngestImages(context.Background(), 3, []UploadedImage{{Data: []byte("x"), ContentType: "image/png"}})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return len(fx.store.rawImages()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"upload_failed"}, fx.store.rawImages())
	})
}

func TestIngestEmailHTML(t *testing.T) {
	fx := newIngestFixture(t, &fakeExtractor{out: normalizedFixture()})

	receipt, err := fx.service.IngestEmailHTML(context.Background(), 5, "<html>receipt</html>")
	require.NoError(t, err)
	assert.Equal(t, "<html>receipt</html>", receipt.RawEmail)
	assert.Zero(t, fx.blobs.uploads)
	assert.Nil(t, fx.store.rawImages())
}
