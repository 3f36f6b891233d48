package models

import "time"

const NotificationKindDelivered = "delivered"

// Notification is written by the Kafka consumer when a letter reaches the
// recipient. Unique on (letter_id, kind) so event redelivery is harmless.
type Notification struct {
	ID              int       `db:"id" json:"id"`
	LetterID        string    `db:"letter_id" json:"letter_id"`
	RecipientFlight string    `db:"recipient_flight" json:"recipient_flight"`
	Kind            string    `db:"kind" json:"kind"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
