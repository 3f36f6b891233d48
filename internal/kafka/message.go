package kafka

import (
	"time"

	"skypost/internal/models"
)

// Event types carried on the letter topic. The consumer only acts on
// delivered events today; the rest exist for downstream subscribers.
const (
	EventLetterScheduled = "letter.scheduled"
	EventLetterInTransit = "letter.in_transit"
	EventLetterDelivered = "letter.delivered"
	EventLetterRead      = "letter.read"
)

// LetterEvent is the wire DTO for lifecycle transitions. It carries enough
// of the letter that consumers never need a DB round trip.
type LetterEvent struct {
	Type            string    `json:"type"`
	LetterID        string    `json:"letter_id"`
	SenderFlight    string    `json:"sender_flight"`
	RecipientFlight string    `json:"recipient_flight"`
	Status          string    `json:"status"`
	Progress        float64   `json:"progress"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func NewLetterEvent(eventType string, l *models.Letter, occurredAt time.Time) *LetterEvent {
	return &LetterEvent{
		Type:            eventType,
		LetterID:        l.ID,
		SenderFlight:    l.SenderFlight,
		RecipientFlight: l.RecipientFlight,
		Status:          l.Status,
		Progress:        l.Progress,
		OccurredAt:      occurredAt,
	}
}
