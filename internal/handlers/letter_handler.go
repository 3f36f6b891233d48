package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
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

// LetterService lists the service-layer methods the handlers call.
type LetterService interface {
	ComposeLetter(ctx context.Context, req *models.LetterRequest) (string, error)
	GetLetter(ctx context.Context, id string) (*models.LetterResponse, error)
	ListLetters(ctx context.Context, flight, status string, limit, offset int) (*models.LetterListResponse, error)
	MarkLetterRead(ctx context.Context, id string) (*models.LetterResponse, error)
	DeleteLetter(ctx context.Context, id string) error
	UpsertFlight(ctx context.Context, req *models.FlightRequest) error
	GetFlight(ctx context.Context, flightNumber string) (*models.FlightResponse, error)
	ListNotifications(ctx context.Context, flight string, limit int) ([]*models.Notification, error)
}

type LetterHandler struct {
	service  LetterService
	cache    cache.Cache
	ttl      time.Duration
	validate *validator.Validate
}

func NewLetterHandler(svc LetterService, c cache.Cache, ttl time.Duration) *LetterHandler {
	return &LetterHandler{
		service:  svc,
		cache:    c,
		ttl:      ttl,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// POST /api/letters
// 201: { "id": uuid, "status": "scheduled" }
// 400: invalid input
// 500: internal error
func (h *LetterHandler) ComposeLetter(w http.ResponseWriter, r *http.Request) {
	var req models.LetterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	id, err := h.service.ComposeLetter(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     id,
		"status": models.LetterStatusScheduled,
	})
}

// GET /api/letters/{letter_id}
// 200: letter with progress and position
// 404: not found
func (h *LetterHandler) GetLetter(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "letter_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "letter_id is required")
		return
	}

	// 1) cache lookup
	if h.cache != nil {
		if b, ok, err := h.cache.Get(r.Context(), cache.LetterKey(id)); err == nil && ok {
			metrics.IncRedisHit()
			w.Header().Set("X-Cache", "HIT")
			writeRawJSON(w, http.StatusOK, b)
			return
		}
	}

	// 2) DB via service
	letter, err := h.service.GetLetter(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "letter not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	b, _ := json.Marshal(letter)

	// 3) cache store
	if h.cache != nil {
		_ = h.cache.Set(r.Context(), cache.LetterKey(id), b, h.ttl)
	}

	metrics.IncRedisMiss()
	w.Header().Set("X-Cache", "MISS")
	writeRawJSON(w, http.StatusOK, b)
}

// GET /api/letters?flight=&status=&limit=&offset=
// 200: { "letters": [...], "pagination": {...} }
func (h *LetterHandler) ListLetters(w http.ResponseWriter, r *http.Request) {
	flight := strings.TrimSpace(r.URL.Query().Get("flight"))
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))

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

	offset := 0
	if offsetRaw := strings.TrimSpace(r.URL.Query().Get("offset")); offsetRaw != "" {
		n, err := strconv.Atoi(offsetRaw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	// 1) cache lookup
	var cacheKey string
	if h.cache != nil {
		cacheKey = cache.LetterListKey(flight, status, limit, offset)
		if b, ok, err := h.cache.Get(r.Context(), cacheKey); err == nil && ok {
			metrics.IncRedisHit()
			w.Header().Set("X-Cache", "HIT")
			writeRawJSON(w, http.StatusOK, b)
			return
		}
	}

	// 2) DB via service
	resp, err := h.service.ListLetters(r.Context(), flight, status, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	b, _ := json.Marshal(resp)

	// 3) cache store + remember the key for invalidation
	if h.cache != nil {
		_ = h.cache.Set(r.Context(), cacheKey, b, h.ttl)

		setKey := cache.LetterListKeysSetKey(flight)
		_ = h.cache.SAdd(r.Context(), setKey, cacheKey)
		_ = h.cache.Expire(r.Context(), setKey, h.ttl)
	}

	metrics.IncRedisMiss()
	w.Header().Set("X-Cache", "MISS")
	writeRawJSON(w, http.StatusOK, b)
}

// POST /api/letters/{letter_id}/read
// 200: the letter, now read (idempotent for already-read letters)
// 404: not found
// 409: letter is not delivered yet
func (h *LetterHandler) MarkLetterRead(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "letter_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "letter_id is required")
		return
	}

	letter, err := h.service.MarkLetterRead(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "letter not found")
		case errors.Is(err, service.ErrConflict):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.invalidateLetter(r.Context(), letter)
	writeJSON(w, http.StatusOK, letter)
}

// DELETE /api/letters/{letter_id}
// 204 on success, 404 when the letter never existed
func (h *LetterHandler) DeleteLetter(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "letter_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "letter_id is required")
		return
	}

	// fetched first so the flight tags are known for list invalidation
	letter, getErr := h.service.GetLetter(r.Context(), id)

	if err := h.service.DeleteLetter(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "letter not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if getErr == nil {
		h.invalidateLetter(r.Context(), letter)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LetterHandler) invalidateLetter(ctx context.Context, l *models.LetterResponse) {
	if h.cache == nil || l == nil {
		return
	}

	_ = h.cache.Del(ctx, cache.LetterKey(l.ID))

	for _, flight := range []string{l.SenderFlight, l.RecipientFlight, ""} {
		setKey := cache.LetterListKeysSetKey(flight)
		keys, err := h.cache.SMembers(ctx, setKey)
		if err == nil && len(keys) > 0 {
			_ = h.cache.Del(ctx, keys...)
		}
		_ = h.cache.Del(ctx, setKey)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	// reject a second JSON document in the body
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("only one JSON object is allowed")
	}

	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeRawJSON(w http.ResponseWriter, status int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
