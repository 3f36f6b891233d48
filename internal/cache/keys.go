package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// GET /api/letters/{id}
// letter:data:{id}
func LetterKey(id string) string {
	return fmt.Sprintf("letter:data:%s", url.PathEscape(strings.TrimSpace(id)))
}

// GET /api/letters?flight=&status=&limit=&offset=
// letter:list:flight={flight}:status={status}:limit={limit}:offset={offset}
func LetterListKey(flight, status string, limit, offset int) string {
	f := url.PathEscape(strings.TrimSpace(flight))
	if f == "" {
		f = "all"
	}
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		s = "all"
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf("letter:list:flight=%s:status=%s:limit=%d:offset=%d", f, s, limit, offset)
}

// Set of list keys that mention a flight, so a letter change can invalidate
// every cached listing without SCAN.
func LetterListKeysSetKey(flight string) string {
	f := url.PathEscape(strings.TrimSpace(flight))
	if f == "" {
		f = "all"
	}
	return fmt.Sprintf("letter:list:%s:keys", f)
}

// GET /api/flights/{flight_number}
// flight:data:{flight_number}
func FlightKey(flightNumber string) string {
	return fmt.Sprintf("flight:data:%s", url.PathEscape(strings.TrimSpace(flightNumber)))
}
