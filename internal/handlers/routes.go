package handlers

import "github.com/go-chi/chi/v5"

func RegisterLetterRoutes(r chi.Router, h *LetterHandler) {
	r.Route("/api/letters", func(r chi.Router) {
		r.Post("/", h.ComposeLetter)
		r.Get("/", h.ListLetters)
		r.Get("/{letter_id}", h.GetLetter)
		r.Post("/{letter_id}/read", h.MarkLetterRead)
		r.Delete("/{letter_id}", h.DeleteLetter)
	})
}

func RegisterFlightRoutes(r chi.Router, h *FlightHandler) {
	r.Route("/api/flights", func(r chi.Router) {
		r.Post("/", h.UpsertFlight)
		r.Get("/{flight_number}", h.GetFlight)
		r.Get("/{flight_number}/notifications", h.ListNotifications)
	})
}
