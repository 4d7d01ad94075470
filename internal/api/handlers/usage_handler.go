package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/models"
	"github.com/squirll/receiptd/internal/repository"
)

type UsageHandler struct {
	usage  *repository.UsageRepository
	logger *zap.Logger
}

func NewUsageHandler(usage *repository.UsageRepository, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// GetUsage returns the caller's counters for the current day, one entry per
// usage kind. Kinds without activity report zero.
func (h *UsageHandler) GetUsage(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	today := time.Now()
	counts := make(map[string]int, 3)
	for _, kind := range []models.UsageKind{
		models.UsageReceiptUpload,
		models.UsageChatbotUse,
		models.UsageReportDownload,
	} {
		count, err := h.usage.GetCount(c.Context(), userID, kind, today)
		if err != nil {
			h.logger.Error("Failed to read usage counter",
				zap.Int64("user_id", userID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to read usage",
			})
		}
		counts[string(kind)] = count
	}

	return c.JSON(fiber.Map{
		"date":  today.Format("2006-01-02"),
		"usage": counts,
	})
}
