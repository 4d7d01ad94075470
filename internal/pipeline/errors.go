package pipeline

import "fmt"

// ExtractionError means the extraction backend was unreachable, timed out, or
// returned a malformed response. It always aborts ingestion before any
// database write.
type ExtractionError struct {
	Backend string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (backend=%s): %v", e.Backend, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ValidationError means the normalized record violates schema constraints,
// e.g. a missing total or a negative monetary field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid receipt: %s %s", e.Field, e.Reason)
}

// CategorizationError is non-fatal: the receipt stays persisted and item
// categories keep their prior values.
type CategorizationError struct {
	ReceiptID int64
	Err       error
}

func (e *CategorizationError) Error() string {
	return fmt.Sprintf("categorization failed for receipt %d: %v", e.ReceiptID, e.Err)
}

func (e *CategorizationError) Unwrap() error { return e.Err }

// NotificationError is always non-fatal and only logged.
type NotificationError struct {
	UserID int64
	Err    error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification delivery failed for user %d: %v", e.UserID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
