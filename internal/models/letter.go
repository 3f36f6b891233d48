package models

import "time"

// Letter statuses. Order matters: a letter only moves forward through
// scheduled -> in_transit -> delivered -> read, never back.
const (
	LetterStatusScheduled = "scheduled"
	LetterStatusInTransit = "in_transit"
	LetterStatusDelivered = "delivered"
	LetterStatusRead      = "read"
)

type Letter struct {
	ID              string     `db:"id"` // UUID
	Body            string     `db:"body"`
	SenderFlight    string     `db:"sender_flight"`
	RecipientFlight string     `db:"recipient_flight"`
	Status          string     `db:"status"`
	Progress        float64    `db:"progress"` // [0,1], meaningful while in_transit
	CreatedAt       time.Time  `db:"created_at"`
	ScheduledSendAt time.Time  `db:"scheduled_send_at"`
	DeliveredAt     *time.Time `db:"delivered_at"` // NULL until delivered
	ReadAt          *time.Time `db:"read_at"`      // NULL until acknowledged
}

// LetterRequest is the compose payload.
type LetterRequest struct {
	Body            string    `json:"body" validate:"required,max=10000"`
	SenderFlight    string    `json:"sender_flight" validate:"required,max=16"`
	RecipientFlight string    `json:"recipient_flight" validate:"required,max=16"`
	ScheduledSendAt time.Time `json:"scheduled_send_at" validate:"required"`
}

type LetterResponse struct {
	ID              string     `json:"id"`
	Body            string     `json:"body"`
	SenderFlight    string     `json:"sender_flight"`
	RecipientFlight string     `json:"recipient_flight"`
	Status          string     `json:"status"`
	Progress        float64    `json:"progress"`
	Position        *Waypoint  `json:"position,omitempty"` // along the sender flight route, if known
	CreatedAt       time.Time  `json:"created_at"`
	ScheduledSendAt time.Time  `json:"scheduled_send_at"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
}

type LetterListResponse struct {
	Letters    []LetterResponse `json:"letters"`
	Pagination Pagination       `json:"pagination"`
}

type Pagination struct {
	Total int `json:"total"`
	Limit int `json:"limit"`
}
