// Package units provides shared constants and validation for area units
package units

import "strings"

// Unit constants
const (
	SquareMeters = "sqm"
	SquareFeet   = "sqft"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{SquareMeters, SquareFeet}

const sqftPerSqm = 10.76391041671

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, u := range ValidUnits {
		if u == unit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated list of valid units
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertArea converts an area in square meters to the target unit.
// Unknown units fall back to square meters.
func ConvertArea(areaSqM float64, targetUnits string) float64 {
	switch targetUnits {
	case SquareFeet:
		return areaSqM * sqftPerSqm
	default:
		return areaSqM
	}
}
