package handlers

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/dto"
	"github.com/squirll/receiptd/internal/pipeline"
	"github.com/squirll/receiptd/internal/repository"
	"github.com/squirll/receiptd/internal/service"
)

type ReceiptHandler struct {
	ingest   *service.IngestService
	receipts service.ReceiptStore
	tags     *repository.TagRepository
	storage  service.BlobStore
	logger   *zap.Logger
}

func NewReceiptHandler(
	ingest *service.IngestService,
	receipts service.ReceiptStore,
	tags *repository.TagRepository,
	storage service.BlobStore,
	logger *zap.Logger,
) *ReceiptHandler {
	return &ReceiptHandler{
		ingest:   ingest,
		receipts: receipts,
		tags:     tags,
		storage:  storage,
		logger:   logger,
	}
}

// UploadReceipt receives one or more receipt images and runs them through
// the ingestion pipeline. The response returns as soon as the receipt and
// its items are persisted; media upload and categorization continue in the
// background.
func (h *ReceiptHandler) UploadReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Multipart form is required",
		})
	}

	files := form.File["receipt_images"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No 'receipt_images' file(s) found in the request",
		})
	}

	var images []service.UploadedImage
	for _, file := range files {
		src, err := file.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Failed to open file %q", file.Filename),
			})
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Failed to read file %q", file.Filename),
			})
		}
		images = append(images, service.UploadedImage{
			Data:        data,
			ContentType: file.Header.Get("Content-Type"),
		})
	}

	receipt, err := h.ingest.IngestImages(c.Context(), userID, images)
	if err != nil {
		var extractionErr *pipeline.ExtractionError
		var validationErr *pipeline.ValidationError
		switch {
		case errors.As(err, &extractionErr):
			h.logger.Error("Receipt extraction failed", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": fmt.Sprintf("Error processing receipt: %v", err),
			})
		case errors.As(err, &validationErr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			h.logger.Error("Receipt ingestion failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to process receipt",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(dto.UploadResponse{
		Status:    "success",
		Message:   "Receipt processed and stored successfully.",
		ReceiptID: receipt.ID,
	})
}

func (h *ReceiptHandler) GetReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	receiptID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid receipt id",
		})
	}

	receipt, err := h.receipts.GetByID(c.Context(), receiptID)
	if err != nil || receipt.UserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Receipt not found",
		})
	}

	tags, err := h.tags.ListByReceipt(c.Context(), receipt.ID)
	if err != nil {
		h.logger.Warn("Failed to load receipt tags", zap.Int64("receipt_id", receipt.ID), zap.Error(err))
	}
	receipt.Tags = tags

	return c.JSON(dto.NewReceiptResponse(receipt))
}

func (h *ReceiptHandler) ListReceipts(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	receipts, err := h.receipts.ListByUser(c.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list receipts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list receipts",
		})
	}

	responses := make([]*dto.ReceiptResponse, 0, len(receipts))
	for _, receipt := range receipts {
		responses = append(responses, dto.NewReceiptResponse(receipt))
	}
	return c.JSON(responses)
}

// GetReceiptImages returns short-lived signed URLs for the receipt's stored
// images. The bucket is private; these URLs are the only read path.
func (h *ReceiptHandler) GetReceiptImages(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	receiptID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid receipt id",
		})
	}

	receipt, err := h.receipts.GetByID(c.Context(), receiptID)
	if err != nil || receipt.UserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Receipt not found",
		})
	}

	urls := make([]string, 0, len(receipt.RawImages))
	for _, object := range receipt.RawImages {
		if object == "upload_failed" {
			continue
		}
		url, err := h.storage.SignedURL(object)
		if err != nil {
			h.logger.Error("Failed to sign image URL",
				zap.Int64("receipt_id", receipt.ID),
				zap.String("object", object),
				zap.Error(err),
			)
			continue
		}
		urls = append(urls, url)
	}

	return c.JSON(dto.SignedImageResponse{URLs: urls})
}

// AddTag attaches a user-scoped tag to a receipt, creating the tag on first
// use.
func (h *ReceiptHandler) AddTag(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	receiptID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid receipt id",
		})
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tag name is required",
		})
	}

	receipt, err := h.receipts.GetByID(c.Context(), receiptID)
	if err != nil || receipt.UserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Receipt not found",
		})
	}

	tag, err := h.tags.GetOrCreate(c.Context(), userID, body.Name)
	if err != nil {
		h.logger.Error("Failed to create tag", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create tag",
		})
	}
	if err := h.tags.AttachToReceipt(c.Context(), tag.ID, receipt.ID); err != nil {
		h.logger.Error("Failed to attach tag", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to attach tag",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"tag":    tag.Name,
	})
}

// RemoveTag detaches a tag from a receipt. The tag itself survives for reuse
// on other receipts.
func (h *ReceiptHandler) RemoveTag(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	receiptID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid receipt id",
		})
	}
	tagID, err := strconv.ParseInt(c.Params("tagID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid tag id",
		})
	}

	receipt, err := h.receipts.GetByID(c.Context(), receiptID)
	if err != nil || receipt.UserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Receipt not found",
		})
	}

	if err := h.tags.DetachFromReceipt(c.Context(), tagID, receipt.ID); err != nil {
		h.logger.Error("Failed to detach tag", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to detach tag",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
