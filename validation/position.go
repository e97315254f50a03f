package validation

import (
	"fmt"
	"math"

	"geofriends/utils/errors"
)

// ValidateCoordinates checks longitude and latitude ranges.
func ValidateCoordinates(lon, lat float64) error {
	var problems []string
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		problems = append(problems, fmt.Sprintf("longitude must be between -180 and 180, got %v", lon))
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		problems = append(problems, fmt.Sprintf("latitude must be between -90 and 90, got %v", lat))
	}
	if len(problems) > 0 {
		return errors.NewValidationError(problems)
	}
	return nil
}

// ValidateDistance checks a search radius in meters.
func ValidateDistance(meters float64) error {
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters <= 0 {
		return errors.NewValidationError([]string{"distance must be a positive number of meters"})
	}
	return nil
}
