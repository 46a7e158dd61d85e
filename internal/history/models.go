package history

import "time"

// Outcomes recorded for a delivery. They double as metric label values.
const (
	OutcomeTest     = "test"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeIgnored  = "ignored"
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
)

// DeliveryRecord represents a single webhook delivery in the database
type DeliveryRecord struct {
	ID              int64     `json:"id"`
	DeliveryID      string    `json:"delivery_id"`
	Event           string    `json:"event"`
	Ref             string    `json:"ref,omitempty"`
	Branch          string    `json:"branch,omitempty"`
	Outcome         string    `json:"outcome"`
	StatusCode      int       `json:"status_code"`
	ReceivedAt      time.Time `json:"received_at"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"` // nullable
	CommitHash      *string   `json:"commit_hash,omitempty"`      // nullable
	ErrorMessage    *string   `json:"error_message,omitempty"`    // nullable
}

// Summary is what the status endpoint serves.
type Summary struct {
	Latest   *DeliveryRecord  `json:"latest_delivery,omitempty"`
	Recent   []DeliveryRecord `json:"recent_deliveries"`
	Outcomes map[string]int   `json:"outcomes"`
}
