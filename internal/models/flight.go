package models

import "time"

type Flight struct {
	FlightNumber string    `db:"flight_number"`
	Origin       string    `db:"origin"`
	Destination  string    `db:"destination"`
	DepartureAt  time.Time `db:"departure_at"`
	ArrivalAt    time.Time `db:"arrival_at"`
	Route        Route     `db:"route"` // JSONB
	UpdatedAt    time.Time `db:"updated_at"`
}

type FlightRequest struct {
	FlightNumber string    `json:"flight_number" validate:"required,max=16"`
	Origin       string    `json:"origin" validate:"required,max=64"`
	Destination  string    `json:"destination" validate:"required,max=64"`
	DepartureAt  time.Time `json:"departure_at" validate:"required"`
	ArrivalAt    time.Time `json:"arrival_at" validate:"required"`
	Route        Route     `json:"route" validate:"required,min=2,dive"`
}

type FlightResponse struct {
	FlightNumber string    `json:"flight_number"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	DepartureAt  time.Time `json:"departure_at"`
	ArrivalAt    time.Time `json:"arrival_at"`
	Route        Route     `json:"route"`
	Progress     float64   `json:"progress"`
	Position     Waypoint  `json:"position"`
}
