package handlers

import (
	"encoding/base64"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/dto"
	"github.com/squirll/receiptd/internal/models"
	"github.com/squirll/receiptd/internal/service"
)

type EmailHandler struct {
	emailService *service.EmailService
	emails       service.EmailStore
	logger       *zap.Logger
}

func NewEmailHandler(emailService *service.EmailService, emails service.EmailStore, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		emailService: emailService,
		emails:       emails,
		logger:       logger,
	}
}

// InboundEmail handles the email gateway's parse webhook. The gateway posts
// multipart form data with the parsed MIME parts; heavier receipt extraction
// is deferred so the webhook can acknowledge quickly.
func (h *EmailHandler) InboundEmail(c *fiber.Ctx) error {
	to := c.FormValue("to")
	if to == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing 'to' field in request data",
		})
	}

	form := service.InboundEmailForm{
		To:          to,
		From:        c.FormValue("from"),
		Subject:     c.FormValue("subject"),
		HTML:        c.FormValue("html"),
		Text:        c.FormValue("text"),
		Headers:     c.FormValue("headers"),
		Raw:         c.FormValue("email"),
		Attachments: map[string]models.Attachment{},
	}

	if multipart, err := c.MultipartForm(); err == nil {
		for _, files := range multipart.File {
			for _, file := range files {
				src, err := file.Open()
				if err != nil {
					h.logger.Warn("Failed to open attachment", zap.String("name", file.Filename), zap.Error(err))
					continue
				}
				content, err := io.ReadAll(src)
				src.Close()
				if err != nil {
					h.logger.Warn("Failed to read attachment", zap.String("name", file.Filename), zap.Error(err))
					continue
				}
				form.Attachments[file.Filename] = models.Attachment{
					Type:    file.Header.Get("Content-Type"),
					Size:    len(content),
					Content: base64.StdEncoding.EncodeToString(content),
				}
			}
		}
	}

	email, isReceipt, err := h.emailService.ProcessInbound(c.Context(), form)
	if err != nil {
		h.logger.Error("Inbound email rejected", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.InboundEmailResponse{
		Status:    "success",
		Message:   "Email processed successfully",
		EmailID:   email.ID,
		IsReceipt: isReceipt,
		Category:  string(email.Category),
	})
}

func (h *EmailHandler) ListEmails(c *fiber.Ctx) error {
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

	emails, err := h.emails.ListByUser(c.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list emails", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list emails",
		})
	}

	responses := make([]*dto.EmailResponse, 0, len(emails))
	for _, email := range emails {
		responses = append(responses, dto.NewEmailResponse(email))
	}
	return c.JSON(responses)
}
