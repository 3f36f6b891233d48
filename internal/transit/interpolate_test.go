package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"skypost/internal/models"
)

func TestPositionAt(t *testing.T) {
	route := models.Route{
		{Lat: 0, Lon: 0},
		{Lat: 10, Lon: 10},
	}

	t.Run("endpoints are exact", func(t *testing.T) {
		long := models.Route{
			{Lat: 51.47, Lon: -0.45},
			{Lat: 48.35, Lon: 11.78},
			{Lat: 40.08, Lon: 116.58},
			{Lat: 35.55, Lon: 139.78},
		}
		assert.Equal(t, long[0], PositionAt(long, 0))
		assert.Equal(t, long[len(long)-1], PositionAt(long, 1))
	})

	t.Run("two point midpoint", func(t *testing.T) {
		mid := PositionAt(route, 0.5)
		assert.InDelta(t, 5.0, mid.Lat, 1e-9)
		assert.InDelta(t, 5.0, mid.Lon, 1e-9)
	})

	t.Run("quarter of the diagonal", func(t *testing.T) {
		p := PositionAt(route, 0.25)
		assert.InDelta(t, 2.5, p.Lat, 1e-9)
		assert.InDelta(t, 2.5, p.Lon, 1e-9)
	})

	t.Run("clamps outside the unit interval", func(t *testing.T) {
		assert.Equal(t, route[0], PositionAt(route, -3))
		assert.Equal(t, route[1], PositionAt(route, 7))
	})

	t.Run("multi segment interpolation", func(t *testing.T) {
		three := models.Route{
			{Lat: 0, Lon: 0},
			{Lat: 10, Lon: 0},
			{Lat: 10, Lon: 10},
		}
		// 0.75 lands in the middle of the second segment
		p := PositionAt(three, 0.75)
		assert.InDelta(t, 10.0, p.Lat, 1e-9)
		assert.InDelta(t, 5.0, p.Lon, 1e-9)
	})

	t.Run("single point route", func(t *testing.T) {
		one := models.Route{{Lat: 4, Lon: 2}}
		assert.Equal(t, one[0], PositionAt(one, 0))
		assert.Equal(t, one[0], PositionAt(one, 0.5))
		assert.Equal(t, one[0], PositionAt(one, 1))
	})

	t.Run("empty route is the zero point", func(t *testing.T) {
		assert.Equal(t, models.Waypoint{}, PositionAt(nil, 0.5))
	})

	t.Run("no out of bounds near one", func(t *testing.T) {
		assert.NotPanics(t, func() {
			PositionAt(route, 0.9999999999)
			PositionAt(route, 1)
		})
	})
}
