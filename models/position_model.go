package models

import "time"

type Position struct {
	Email       string    `json:"email" bson:"email"`
	Name        string    `json:"name" bson:"name"`
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
	Location    GeoPoint  `json:"location" bson:"location"`
}

// Lon and Lat read the GeoJSON coordinates back out.
func (p Position) Lon() float64 {
	if len(p.Location.Coordinates) < 2 {
		return 0
	}
	return p.Location.Coordinates[0]
}

func (p Position) Lat() float64 {
	if len(p.Location.Coordinates) < 2 {
		return 0
	}
	return p.Location.Coordinates[1]
}
