package notify

import "encoding/json"

const (
	EventReceiptUploaded = "new_receipt_notification"
	EventEmailReceived   = "new_email_notification"
)

// Event is a message for one user's channel. Payload carries the
// event-specific fields alongside the type discriminator.
type Event struct {
	UserID  int64
	Type    string
	Payload map[string]any
}

// ReceiptUploaded is emitted once per successfully ingested receipt.
func ReceiptUploaded(userID, receiptID int64) Event {
	return Event{
		UserID: userID,
		Type:   EventReceiptUploaded,
		Payload: map[string]any{
			"receipt_id": receiptID,
		},
	}
}

// EmailReceived is emitted when an inbound email is stored.
func EmailReceived(userID, emailID int64, subject, category, company string) Event {
	return Event{
		UserID: userID,
		Type:   EventEmailReceived,
		Payload: map[string]any{
			"email_id": emailID,
			"subject":  subject,
			"category": category,
			"company":  company,
		},
	}
}

// Marshal renders the wire form sent to clients.
func (e Event) Marshal() ([]byte, error) {
	msg := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		msg[k] = v
	}
	msg["type"] = e.Type
	return json.Marshal(msg)
}
