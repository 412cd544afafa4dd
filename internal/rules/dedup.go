// Package rules holds the place, rating and friendship decisions that the
// services apply to data fetched from the store. Nothing in here does I/O.
package rules

import (
	"math"
	"strings"

	"github.com/pinify/pinify-backend/internal/models"
)

// DuplicateTolerance is the per-axis distance, in degrees, under which two
// locations are treated as the same physical place (about 22 meters).
const DuplicateTolerance = 0.0002

// PlaceCandidate is what a user submits when adding a place.
type PlaceCandidate struct {
	Name     string
	City     string
	District string
	Location models.Location
}

// NormalizePlaceName trims surrounding whitespace. Case and accents are kept,
// so "Mikel Coffee" and "mikel coffee" are different names.
func NormalizePlaceName(name string) string {
	return strings.TrimSpace(name)
}

// WithinTolerance is a bounding-box check: each axis is compared on its own.
func WithinTolerance(a, b models.Location) bool {
	return math.Abs(a.Lat-b.Lat) < DuplicateTolerance && math.Abs(a.Lng-b.Lng) < DuplicateTolerance
}

// SameIdentity reports whether p has exactly the candidate's name, city and
// district. Empty strings match empty strings.
func SameIdentity(p models.Place, c PlaceCandidate) bool {
	return p.Name == NormalizePlaceName(c.Name) && p.City == c.City && p.District == c.District
}

// ResolveDuplicate picks the existing place the candidate duplicates, if any.
// existing is expected to be the result of an equality query on
// (name, city, district); the identity is checked again here so callers can
// pass a broader set. The first match in slice order wins.
func ResolveDuplicate(c PlaceCandidate, existing []models.Place) (*models.Place, bool) {
	for i := range existing {
		if SameIdentity(existing[i], c) && WithinTolerance(existing[i].Location, c.Location) {
			return &existing[i], true
		}
	}
	return nil, false
}
