package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skypost/internal/models"
	"skypost/internal/repository"
	"skypost/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLetterService struct {
	composeID  string
	composeErr error

	letter    *models.LetterResponse
	letterErr error

	list    *models.LetterListResponse
	listErr error

	readResp *models.LetterResponse
	readErr  error

	deleteErr error

	upsertErr error

	flight    *models.FlightResponse
	flightErr error

	notifications []*models.Notification
	notifErr      error

	lastListFlight string
	lastListStatus string
	lastListLimit  int
	lastListOffset int
}

func (f *fakeLetterService) ComposeLetter(_ context.Context, _ *models.LetterRequest) (string, error) {
	return f.composeID, f.composeErr
}

func (f *fakeLetterService) GetLetter(_ context.Context, _ string) (*models.LetterResponse, error) {
	return f.letter, f.letterErr
}

func (f *fakeLetterService) ListLetters(_ context.Context, flight, status string, limit, offset int) (*models.LetterListResponse, error) {
	f.lastListFlight = flight
	f.lastListStatus = status
	f.lastListLimit = limit
	f.lastListOffset = offset
	return f.list, f.listErr
}

func (f *fakeLetterService) MarkLetterRead(_ context.Context, _ string) (*models.LetterResponse, error) {
	return f.readResp, f.readErr
}

func (f *fakeLetterService) DeleteLetter(_ context.Context, _ string) error {
	return f.deleteErr
}

func (f *fakeLetterService) UpsertFlight(_ context.Context, _ *models.FlightRequest) error {
	return f.upsertErr
}

func (f *fakeLetterService) GetFlight(_ context.Context, _ string) (*models.FlightResponse, error) {
	return f.flight, f.flightErr
}

func (f *fakeLetterService) ListNotifications(_ context.Context, _ string, _ int) ([]*models.Notification, error) {
	return f.notifications, f.notifErr
}

func newTestRouter(svc LetterService) chi.Router {
	r := chi.NewRouter()
	RegisterLetterRoutes(r, NewLetterHandler(svc, nil, time.Minute))
	RegisterFlightRoutes(r, NewFlightHandler(svc, nil, time.Minute))
	return r
}

func composeBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(models.LetterRequest{
		Body:            "see you over the Atlantic",
		SenderFlight:    "SP101",
		RecipientFlight: "SP202",
		ScheduledSendAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func TestComposeLetter_Created(t *testing.T) {
	svc := &fakeLetterService{composeID: "11111111-2222-3333-4444-555555555555"}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/letters", composeBody(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, svc.composeID, resp["id"])
	assert.Equal(t, models.LetterStatusScheduled, resp["status"])
}

func TestComposeLetter_InvalidJSON(t *testing.T) {
	r := newTestRouter(&fakeLetterService{})

	req := httptest.NewRequest(http.MethodPost, "/api/letters", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComposeLetter_UnknownField(t *testing.T) {
	r := newTestRouter(&fakeLetterService{})

	body := `{"body":"x","sender_flight":"A","recipient_flight":"B","scheduled_send_at":"2025-06-01T12:00:00Z","bogus":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/letters", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComposeLetter_MissingFields(t *testing.T) {
	r := newTestRouter(&fakeLetterService{})

	req := httptest.NewRequest(http.MethodPost, "/api/letters", bytes.NewBufferString(`{"body":"hi"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComposeLetter_ServiceRejects(t *testing.T) {
	svc := &fakeLetterService{composeErr: service.ErrInvalidInput}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/letters", composeBody(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLetter_OK(t *testing.T) {
	svc := &fakeLetterService{
		letter: &models.LetterResponse{
			ID:       "abc",
			Status:   models.LetterStatusInTransit,
			Progress: 0.5,
			Position: &models.Waypoint{Lat: 2.5, Lon: 2.5},
		},
	}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/letters/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var resp models.LetterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.LetterStatusInTransit, resp.Status)
	assert.InDelta(t, 0.5, resp.Progress, 1e-9)
	require.NotNil(t, resp.Position)
	assert.InDelta(t, 2.5, resp.Position.Lat, 1e-9)
}

func TestGetLetter_NotFound(t *testing.T) {
	svc := &fakeLetterService{letterErr: repository.ErrNotFound}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/letters/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListLetters_ClampsLimit(t *testing.T) {
	svc := &fakeLetterService{
		list: &models.LetterListResponse{
			Letters:    []models.LetterResponse{},
			Pagination: models.Pagination{Total: 0, Limit: 100},
		},
	}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/letters?flight=SP101&status=delivered&limit=500&offset=10", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SP101", svc.lastListFlight)
	assert.Equal(t, "delivered", svc.lastListStatus)
	assert.Equal(t, 100, svc.lastListLimit)
	assert.Equal(t, 10, svc.lastListOffset)
}

func TestListLetters_BadLimit(t *testing.T) {
	r := newTestRouter(&fakeLetterService{})

	req := httptest.NewRequest(http.MethodGet, "/api/letters?limit=nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkLetterRead_OK(t *testing.T) {
	readAt := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	svc := &fakeLetterService{
		readResp: &models.LetterResponse{
			ID:     "abc",
			Status: models.LetterStatusRead,
			ReadAt: &readAt,
		},
	}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/letters/abc/read", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.LetterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.LetterStatusRead, resp.Status)
	require.NotNil(t, resp.ReadAt)
}

func TestMarkLetterRead_Conflict(t *testing.T) {
	svc := &fakeLetterService{readErr: service.ErrConflict}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/letters/abc/read", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteLetter_NoContent(t *testing.T) {
	svc := &fakeLetterService{letter: &models.LetterResponse{ID: "abc"}}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/letters/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteLetter_NotFound(t *testing.T) {
	svc := &fakeLetterService{
		letterErr: repository.ErrNotFound,
		deleteErr: repository.ErrNotFound,
	}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/letters/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
