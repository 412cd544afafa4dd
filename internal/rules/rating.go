package rules

import "github.com/pinify/pinify-backend/internal/models"

const (
	MinRating = 1
	MaxRating = 5
)

// Aggregate is the derived rating of a place.
type Aggregate struct {
	AvgRating   float64 `json:"avg_rating"`
	RatingCount int     `json:"rating_count"`
}

// AggregateRatings recomputes the aggregate from the full review set. An
// empty set yields a zero average, never NaN.
func AggregateRatings(reviews []models.Review) Aggregate {
	if len(reviews) == 0 {
		return Aggregate{}
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return Aggregate{
		AvgRating:   float64(sum) / float64(len(reviews)),
		RatingCount: len(reviews),
	}
}

// SeedAggregate is the aggregate a freshly created place starts with: the
// creator's own rating, counted once.
func SeedAggregate(rating int) Aggregate {
	return Aggregate{AvgRating: float64(rating), RatingCount: 1}
}

func IsValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}
