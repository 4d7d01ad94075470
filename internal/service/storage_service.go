package service

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/pkg/config"
)

// BlobStore uploads receipt media to a private bucket and mints time-limited
// signed URLs for retrieval.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, contentType string, userID int64) (string, error)
	SignedURL(object string) (string, error)
}

// GCSStorage implements BlobStore against Google Cloud Storage. Application
// Default Credentials are assumed.
type GCSStorage struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
	logger *zap.Logger
}

func NewGCSStorage(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: cfg.Bucket,
		ttl:    cfg.SignedURLTTL,
		logger: logger,
	}, nil
}

// Upload writes the blob under receipts/<user>/<uuid> and returns the object
// name. The name, not a URL, is what gets persisted: the bucket stays
// private and access goes through signed URLs.
func (s *GCSStorage) Upload(ctx context.Context, data []byte, contentType string, userID int64) (string, error) {
	objectName := fmt.Sprintf("receipts/%d/%s", userID, uuid.New().String())

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write blob %q: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize blob %q: %w", objectName, err)
	}

	s.logger.Info("Receipt image uploaded",
		zap.String("object", objectName),
		zap.Int("bytes", len(data)),
	)
	return objectName, nil
}

// SignedURL mints a V4 read URL valid for the configured TTL.
func (s *GCSStorage) SignedURL(object string) (string, error) {
	url, err := s.client.Bucket(s.bucket).SignedURL(object, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(s.ttl),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %q: %w", object, err)
	}
	return url, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}
