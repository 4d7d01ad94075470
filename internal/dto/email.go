package dto

import (
	"time"

	"github.com/squirll/receiptd/internal/models"
)

type EmailResponse struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Company   string `json:"company"`
	Category  string `json:"category"`
	CreatedAt string `json:"created_at"`
}

type InboundEmailResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	EmailID   int64  `json:"email_id"`
	IsReceipt bool   `json:"is_receipt"`
	Category  string `json:"category"`
}

func NewEmailResponse(email *models.Email) *EmailResponse {
	return &EmailResponse{
		ID:        email.ID,
		Sender:    email.Sender,
		Subject:   email.Subject,
		Company:   email.Company,
		Category:  string(email.Category),
		CreatedAt: email.CreatedAt.Format(time.RFC3339),
	}
}
