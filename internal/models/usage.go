package models

import "time"

// UsageKind identifies the action being tallied.
type UsageKind string

const (
	UsageReceiptUpload  UsageKind = "receipt_upload"
	UsageChatbotUse     UsageKind = "chatbot_use"
	UsageReportDownload UsageKind = "report_download"
)

// UsageTracker counts how many times a user performed an action on a calendar
// day. Unique on (user, usage_type, date); increments happen under row-level
// locking so concurrent uploads never lose counts.
type UsageTracker struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	UsageType UsageKind `db:"usage_type"`
	Date      time.Time `db:"date"`
	Count     int       `db:"count"`
}
