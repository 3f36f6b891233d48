package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skypost/internal/models"
	"skypost/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flightBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(models.FlightRequest{
		FlightNumber: "SP101",
		Origin:       "JFK",
		Destination:  "LHR",
		DepartureAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		ArrivalAt:    time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC),
		Route: models.Route{
			{Lat: 40.64, Lon: -73.78},
			{Lat: 51.47, Lon: -0.45},
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func TestUpsertFlight_Created(t *testing.T) {
	r := newTestRouter(&fakeLetterService{})

	req := httptest.NewRequest(http.MethodPost, "/api/flights", flightBody(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"flight_number":"SP101"}`, w.Body.String())
}

func TestUpsertFlight_ShortRoute(t *testing.T) {
	r := newTestRouter(&fakeLetterService{})

	b, err := json.Marshal(models.FlightRequest{
		FlightNumber: "SP101",
		Origin:       "JFK",
		Destination:  "LHR",
		DepartureAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		ArrivalAt:    time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC),
		Route:        models.Route{{Lat: 40.64, Lon: -73.78}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/flights", bytes.NewBuffer(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpsertFlight_BadCoordinates(t *testing.T) {
	r := newTestRouter(&fakeLetterService{})

	b, err := json.Marshal(models.FlightRequest{
		FlightNumber: "SP101",
		Origin:       "JFK",
		Destination:  "LHR",
		DepartureAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		ArrivalAt:    time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC),
		Route: models.Route{
			{Lat: 91, Lon: 0},
			{Lat: 0, Lon: 0},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/flights", bytes.NewBuffer(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetFlight_OK(t *testing.T) {
	svc := &fakeLetterService{
		flight: &models.FlightResponse{
			FlightNumber: "SP101",
			Progress:     0.25,
			Position:     models.Waypoint{Lat: 2.5, Lon: 2.5},
		},
	}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/flights/SP101", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var resp models.FlightResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SP101", resp.FlightNumber)
	assert.InDelta(t, 0.25, resp.Progress, 1e-9)
}

func TestGetFlight_NotFound(t *testing.T) {
	svc := &fakeLetterService{flightErr: repository.ErrNotFound}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/flights/NOPE", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListNotifications_OK(t *testing.T) {
	svc := &fakeLetterService{
		notifications: []*models.Notification{
			{ID: 1, LetterID: "abc", RecipientFlight: "SP202", Kind: models.NotificationKindDelivered},
		},
	}
	r := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/flights/SP202/notifications", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, models.NotificationKindDelivered, resp.Notifications[0].Kind)
}

func TestListNotifications_EmptyIsArray(t *testing.T) {
	r := newTestRouter(&fakeLetterService{})

	req := httptest.NewRequest(http.MethodGet, "/api/flights/SP202/notifications", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notifications":[]}`, w.Body.String())
}
