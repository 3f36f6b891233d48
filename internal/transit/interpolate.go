package transit

import (
	"math"

	"skypost/internal/models"
)

// PositionAt returns the point progress of the way along route, treating the
// route as len-1 equal-length segments with linear interpolation inside the
// located segment. Endpoints are returned exactly at progress <= 0 and >= 1.
// A single-point route returns that point for any progress; an empty route
// returns the zero Waypoint.
func PositionAt(route models.Route, progress float64) models.Waypoint {
	switch len(route) {
	case 0:
		return models.Waypoint{}
	case 1:
		return route[0]
	}

	if progress <= 0 {
		return route[0]
	}
	if progress >= 1 {
		return route[len(route)-1]
	}

	segments := len(route) - 1
	idx := int(math.Floor(progress * float64(segments)))
	if idx >= segments { // progress just below 1 can still round up
		idx = segments - 1
	}

	within := progress*float64(segments) - float64(idx)
	a, b := route[idx], route[idx+1]

	return models.Waypoint{
		Lat: a.Lat + (b.Lat-a.Lat)*within,
		Lon: a.Lon + (b.Lon-a.Lon)*within,
	}
}
