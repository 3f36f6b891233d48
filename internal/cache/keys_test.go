package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLetterKey(t *testing.T) {
	assert.Equal(t, "letter:data:abc-123", LetterKey(" abc-123 "))
}

func TestLetterListKey(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert.Equal(t,
			"letter:list:flight=all:status=all:limit=50:offset=0",
			LetterListKey("", "", 0, -1),
		)
	})

	t.Run("caps limit", func(t *testing.T) {
		assert.Equal(t,
			"letter:list:flight=SP101:status=in_transit:limit=100:offset=20",
			LetterListKey("SP101", "IN_TRANSIT", 500, 20),
		)
	})

	t.Run("escapes the flight tag", func(t *testing.T) {
		assert.Equal(t,
			"letter:list:flight=SP%2F101:status=all:limit=50:offset=0",
			LetterListKey("SP/101", "", 50, 0),
		)
	})
}

func TestFlightKey(t *testing.T) {
	assert.Equal(t, "flight:data:SP202", FlightKey("SP202"))
}
