package models

import "time"

// EmailCategory buckets inbound mail for inbox organization.
type EmailCategory string

const (
	EmailCategoryMarketing EmailCategory = "marketing"
	EmailCategoryMessage   EmailCategory = "message"
)

// Attachment holds metadata and base64-encoded content of a MIME attachment.
type Attachment struct {
	Type    string `json:"type"`
	Size    int    `json:"size"`
	Content string `json:"content"`
}

// Email is a message received through the inbound-parse webhook. Both the
// parsed parts and the complete raw payload are kept for archival.
type Email struct {
	ID          int64                 `db:"id"`
	UserID      int64                 `db:"user_id"`
	Sender      string                `db:"sender"`
	Subject     string                `db:"subject"`
	Company     string                `db:"company"`
	HTML        string                `db:"html"`
	TextContent string                `db:"text_content"`
	Headers     string                `db:"headers"`
	RawEmail    string                `db:"raw_email"`
	Attachments map[string]Attachment `db:"attachments"`
	Category    EmailCategory         `db:"category"`
	CreatedAt   time.Time             `db:"created_at"`
}
