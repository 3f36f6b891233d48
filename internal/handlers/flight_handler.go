package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"skypost/internal/cache"
	"skypost/internal/metrics"
	"skypost/internal/models"
	"skypost/internal/repository"
	"skypost/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type FlightHandler struct {
	service  LetterService
	cache    cache.Cache
	ttl      time.Duration
	validate *validator.Validate
}

func NewFlightHandler(svc LetterService, c cache.Cache, ttl time.Duration) *FlightHandler {
	return &FlightHandler{
		service:  svc,
		cache:    c,
		ttl:      ttl,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// POST /api/flights
// 201: flight registered (repeat posts replace the route)
// 400: invalid input
func (h *FlightHandler) UpsertFlight(w http.ResponseWriter, r *http.Request) {
	var req models.FlightRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if err := h.service.UpsertFlight(r.Context(), &req); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// the route changed, cached positions derived from it are stale
	if h.cache != nil {
		_ = h.cache.Del(r.Context(), cache.FlightKey(req.FlightNumber))
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"flight_number": req.FlightNumber,
	})
}

// GET /api/flights/{flight_number}
// 200: flight with live progress and interpolated position
// 404: unknown flight
func (h *FlightHandler) GetFlight(w http.ResponseWriter, r *http.Request) {
	flightNumber := strings.TrimSpace(chi.URLParam(r, "flight_number"))
	if flightNumber == "" {
		writeError(w, http.StatusBadRequest, "flight_number is required")
		return
	}

	// 1) cache lookup
	if h.cache != nil {
		if b, ok, err := h.cache.Get(r.Context(), cache.FlightKey(flightNumber)); err == nil && ok {
			metrics.IncRedisHit()
			w.Header().Set("X-Cache", "HIT")
			writeRawJSON(w, http.StatusOK, b)
			return
		}
	}

	// 2) DB via service
	flight, err := h.service.GetFlight(r.Context(), flightNumber)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "flight not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	b, _ := json.Marshal(flight)

	// 3) cache store; a short TTL because progress is time-derived
	if h.cache != nil {
		ttl := h.ttl
		if ttl > 5*time.Second {
			ttl = 5 * time.Second
		}
		_ = h.cache.Set(r.Context(), cache.FlightKey(flightNumber), b, ttl)
	}

	metrics.IncRedisMiss()
	w.Header().Set("X-Cache", "MISS")
	writeRawJSON(w, http.StatusOK, b)
}

// GET /api/flights/{flight_number}/notifications?limit=
// 200: { "notifications": [...] }
func (h *FlightHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	flightNumber := strings.TrimSpace(chi.URLParam(r, "flight_number"))
	if flightNumber == "" {
		writeError(w, http.StatusBadRequest, "flight_number is required")
		return
	}

	limit := 50
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		n, err := strconv.Atoi(limitRaw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	notifications, err := h.service.ListNotifications(r.Context(), flightNumber, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if notifications == nil {
		notifications = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}
