package service

import (
	"testing"
	"time"

	"skypost/internal/kafka"
	"skypost/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCompose() *models.LetterRequest {
	return &models.LetterRequest{
		Body:            "meet me at the gate",
		SenderFlight:    "SP101",
		RecipientFlight: "SP202",
		ScheduledSendAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestValidateComposeRequest(t *testing.T) {
	require.NoError(t, validateComposeRequest(validCompose()))

	req := validCompose()
	req.Body = "   "
	assert.Error(t, validateComposeRequest(req))

	req = validCompose()
	req.RecipientFlight = req.SenderFlight
	assert.Error(t, validateComposeRequest(req))

	req = validCompose()
	req.ScheduledSendAt = time.Time{}
	assert.Error(t, validateComposeRequest(req))

	assert.Error(t, validateComposeRequest(nil))
}

func validFlight() *models.FlightRequest {
	return &models.FlightRequest{
		FlightNumber: "SP101",
		Origin:       "JFK",
		Destination:  "LHR",
		DepartureAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		ArrivalAt:    time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC),
		Route: models.Route{
			{Lat: 40.64, Lon: -73.78},
			{Lat: 51.47, Lon: -0.45},
		},
	}
}

func TestValidateFlightRequest(t *testing.T) {
	require.NoError(t, validateFlightRequest(validFlight()))

	req := validFlight()
	req.ArrivalAt = req.DepartureAt
	assert.Error(t, validateFlightRequest(req), "arrival must be strictly after departure")

	req = validFlight()
	req.Route = req.Route[:1]
	assert.Error(t, validateFlightRequest(req))

	req = validFlight()
	req.FlightNumber = ""
	assert.Error(t, validateFlightRequest(req))
}

func TestTransitionEvent(t *testing.T) {
	cases := []struct {
		prev, next, want string
	}{
		{models.LetterStatusScheduled, models.LetterStatusInTransit, kafka.EventLetterInTransit},
		{models.LetterStatusInTransit, models.LetterStatusDelivered, kafka.EventLetterDelivered},
		{models.LetterStatusScheduled, models.LetterStatusDelivered, kafka.EventLetterDelivered},
		// progress-only pass, no event
		{models.LetterStatusInTransit, models.LetterStatusInTransit, ""},
		{models.LetterStatusDelivered, models.LetterStatusDelivered, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, transitionEvent(c.prev, c.next), "%s -> %s", c.prev, c.next)
	}
}

func TestExtractLetterID(t *testing.T) {
	id, err := extractLetterID([]byte(`{"type":"letter.delivered","letter_id":"abc-123"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)

	_, err = extractLetterID([]byte(`{"type":"letter.delivered"}`))
	assert.Error(t, err, "missing letter_id")

	_, err = extractLetterID([]byte(`not json`))
	assert.Error(t, err)
}
