package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/jobs"
	"github.com/squirll/receiptd/internal/models"
	"github.com/squirll/receiptd/internal/notify"
	"github.com/squirll/receiptd/internal/pipeline"
)

// IngestState tracks one ingestion request through the pipeline. Failure is
// only reachable from extracting and persisting; the steps after persistence
// are best-effort and never fail the request.
type IngestState string

const (
	StateReceived       IngestState = "received"
	StateExtracting     IngestState = "extracting"
	StateExtracted      IngestState = "extracted"
	StatePersisting     IngestState = "persisting"
	StatePersisted      IngestState = "persisted"
	StateUploadingMedia IngestState = "uploading_media"
	StateCategorizing   IngestState = "categorizing"
	StateComplete       IngestState = "complete"
	StateFailed         IngestState = "failed"
)

// UploadedImage is one receipt photo as received from the client.
type UploadedImage struct {
	Data        []byte
	ContentType string
}

// IngestService coordinates extraction, persistence, media upload,
// categorization and notification for each new receipt. Image upload and
// inbound email converge here.
type IngestService struct {
	receipts    ReceiptStore
	storage     BlobStore
	extractor   Extractor
	categorizer *CategorizerService
	queue       *jobs.Queue
	hub         *notify.Hub
	logger      *zap.Logger
}

func NewIngestService(
	receipts ReceiptStore,
	storage BlobStore,
	extractor Extractor,
	categorizer *CategorizerService,
	queue *jobs.Queue,
	hub *notify.Hub,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		receipts:    receipts,
		storage:     storage,
		extractor:   extractor,
		categorizer: categorizer,
		queue:       queue,
		hub:         hub,
		logger:      logger,
	}
}

// IngestImages runs the pipeline for a direct image upload. It returns once
// the receipt and its items are persisted; blob upload and the
// categorization pass continue in the background.
func (s *IngestService) IngestImages(ctx context.Context, userID int64, images []UploadedImage) (*models.Receipt, error) {
	log := s.logger.With(zap.Int64("user_id", userID), zap.String("source", "image_upload"))
	log.Info("Ingestion started", zap.String("state", string(StateReceived)), zap.Int("images", len(images)))

	input := ExtractionInput{}
	for _, img := range images {
		input.Images = append(input.Images, img.Data)
	}
	if len(images) > 0 {
		input.ContentType = images[0].ContentType
	}

	receipt, err := s.extractAndPersist(ctx, log, userID, input, "")
	if err != nil {
		return nil, err
	}

	s.enqueueMediaUpload(log, receipt, images)
	s.enqueueCategorization(log, receipt.ID)

	s.hub.Publish(notify.ReceiptUploaded(userID, receipt.ID))
	log.Info("Ingestion persisted", zap.String("state", string(StateComplete)), zap.Int64("receipt_id", receipt.ID))
	return receipt, nil
}

// IngestEmailHTML runs the pipeline for a receipt found in a forwarded
// email. The raw email text is kept as provenance instead of image blobs.
func (s *IngestService) IngestEmailHTML(ctx context.Context, userID int64, html string) (*models.Receipt, error) {
	log := s.logger.With(zap.Int64("user_id", userID), zap.String("source", "email"))
	log.Info("Ingestion started", zap.String("state", string(StateReceived)))

	receipt, err := s.extractAndPersist(ctx, log, userID, ExtractionInput{HTML: html}, html)
	if err != nil {
		return nil, err
	}

	s.enqueueCategorization(log, receipt.ID)

	s.hub.Publish(notify.ReceiptUploaded(userID, receipt.ID))
	log.Info("Ingestion persisted", zap.String("state", string(StateComplete)), zap.Int64("receipt_id", receipt.ID))
	return receipt, nil
}

// extractAndPersist covers received → extracting → extracted → persisting →
// persisted. Any failure here aborts before or rolls back the database
// write, so a failed extraction never leaves a half-written receipt.
func (s *IngestService) extractAndPersist(ctx context.Context, log *zap.Logger, userID int64, input ExtractionInput, rawEmail string) (*models.Receipt, error) {
	log.Info("Extracting receipt", zap.String("state", string(StateExtracting)), zap.String("backend", s.extractor.Name()))

	normalized, err := s.extractor.Extract(ctx, input)
	if err != nil {
		log.Error("Extraction failed", zap.String("state", string(StateFailed)), zap.Error(err))
		return nil, err
	}
	log.Info("Extraction completed", zap.String("state", string(StateExtracted)), zap.Int("items", len(normalized.Items)))

	receipt, err := normalized.ToReceipt()
	if err != nil {
		log.Error("Validation failed", zap.String("state", string(StateFailed)), zap.Error(err))
		return nil, err
	}
	receipt.UserID = userID
	receipt.RawEmail = rawEmail

	log.Info("Persisting receipt", zap.String("state", string(StatePersisting)))
	if err := s.receipts.CreateWithItems(ctx, receipt); err != nil {
		log.Error("Persistence failed", zap.String("state", string(StateFailed)), zap.Error(err))
		return nil, err
	}
	log.Info("Receipt persisted", zap.String("state", string(StatePersisted)), zap.Int64("receipt_id", receipt.ID))
	return receipt, nil
}

// enqueueMediaUpload defers the original images to the background queue.
// Failures are logged per image; a sentinel marks blobs that never made it.
func (s *IngestService) enqueueMediaUpload(log *zap.Logger, receipt *models.Receipt, images []UploadedImage) {
	if len(images) == 0 {
		return
	}

	receiptID := receipt.ID
	userID := receipt.UserID
	err := s.queue.Enqueue(context.Background(), jobs.KindUploadMedia, func(ctx context.Context) error {
		log.Info("Uploading media", zap.String("state", string(StateUploadingMedia)), zap.Int64("receipt_id", receiptID))
		blobNames := make([]string, 0, len(images))
		for _, img := range images {
			name, err := s.storage.Upload(ctx, img.Data, img.ContentType, userID)
			if err != nil {
				log.Error("Blob upload failed", zap.Int64("receipt_id", receiptID), zap.Error(err))
				name = "upload_failed"
			}
			blobNames = append(blobNames, name)
		}
		return s.receipts.UpdateRawImages(ctx, receiptID, blobNames)
	})
	if err != nil {
		log.Error("Failed to enqueue media upload", zap.Int64("receipt_id", receiptID), zap.Error(err))
	}
}

// enqueueCategorization defers the secondary categorization pass. A failure
// leaves the receipt and its items exactly as persisted.
func (s *IngestService) enqueueCategorization(log *zap.Logger, receiptID int64) {
	err := s.queue.Enqueue(context.Background(), jobs.KindCategorize, func(ctx context.Context) error {
		log.Info("Categorizing receipt", zap.String("state", string(StateCategorizing)), zap.Int64("receipt_id", receiptID))
		result, err := s.categorizer.CategorizeReceipt(ctx, receiptID)
		if err != nil {
			var catErr *pipeline.CategorizationError
			if errors.As(err, &catErr) {
				log.Error("Categorization failed, categories unchanged",
					zap.Int64("receipt_id", receiptID),
					zap.Error(err),
				)
				return nil
			}
			return err
		}
		log.Info("Categorization completed",
			zap.Int64("receipt_id", receiptID),
			zap.Int("items_updated", result.ItemsUpdated),
			zap.String("category", result.NewReceiptCategory.String()),
		)
		return nil
	})
	if err != nil {
		log.Error("Failed to enqueue categorization", zap.Int64("receipt_id", receiptID), zap.Error(err))
	}
}
