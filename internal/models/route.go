package models

// Waypoint is one geographic coordinate of a route.
type Waypoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Route is an ordered waypoint list. Static once set, never mutated at runtime.
type Route []Waypoint
