package pipeline

import "time"

func parseDate(s string) (time.Time, error) {
	if s == "" {
		// Extraction backends sometimes cannot read a date; fall back to
		// the ingestion day so the receipt still lands in the ledger.
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return time.Parse("2006-01-02", s)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ValidationError{Field: "time", Reason: "is not a valid HH:MM:SS time"}
}
