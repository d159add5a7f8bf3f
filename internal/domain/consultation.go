package domain

import "time"

type ConsultationCategory string

const (
	ConsultationAudioCall      ConsultationCategory = "AUDIO_CALL"
	ConsultationDocumentReview ConsultationCategory = "DOCUMENT_REVIEW"
)

// ConsultationType is immutable reference data: seeded once, read-only
// at runtime. Amount is in minor units (paise, cents).
type ConsultationType struct {
	ID              string               `json:"id"`
	Category        ConsultationCategory `json:"category"`
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	DurationMinutes int                  `json:"durationMinutes"`
	Amount          int64                `json:"amount"`
	Currency        string               `json:"currency"`
	CreatedAt       time.Time            `json:"createdAt"`
}

// Duration returns the consultation length. A zero DurationMinutes
// marks a non-time-based service (document review); its booking still
// blocks the chosen start time.
func (c *ConsultationType) Duration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}
