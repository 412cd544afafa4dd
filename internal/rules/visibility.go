package rules

import (
	"strings"

	"github.com/pinify/pinify-backend/internal/models"
)

type OwnerFilter string

const (
	OwnerAll     OwnerFilter = "all"
	OwnerMine    OwnerFilter = "my"
	OwnerFriends OwnerFilter = "friends"
)

func ParseOwnerFilter(s string) (OwnerFilter, bool) {
	switch OwnerFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", OwnerAll:
		return OwnerAll, true
	case OwnerMine:
		return OwnerMine, true
	case OwnerFriends:
		return OwnerFriends, true
	}
	return "", false
}

// MapFilter is what the map view lets a user narrow places by.
type MapFilter struct {
	City       string
	District   string
	Categories []string
	Owner      OwnerFilter
}

// Viewer is the caller of a map query. FriendsLoaded is false when the friend
// set could not be read; the friends filter then shows nothing.
type Viewer struct {
	ID            string
	Friends       []string
	FriendsLoaded bool
}

// VisibleToFriend reports whether p shows up under the friends filter.
func VisibleToFriend(p models.Place, v Viewer) bool {
	if !v.FriendsLoaded || p.OwnerID == v.ID {
		return false
	}
	for _, f := range v.Friends {
		if f == p.OwnerID {
			return true
		}
	}
	return false
}

// FilterPlaces applies f to places for viewer v.
func FilterPlaces(places []models.Place, f MapFilter, v Viewer) []models.Place {
	if f.Owner == OwnerFriends && !v.FriendsLoaded {
		return []models.Place{}
	}

	city := strings.ToLower(strings.TrimSpace(f.City))
	district := strings.ToLower(strings.TrimSpace(f.District))

	out := make([]models.Place, 0, len(places))
	for _, p := range places {
		if city != "" && !strings.Contains(strings.ToLower(p.City), city) {
			continue
		}
		if district != "" && !strings.Contains(strings.ToLower(p.District), district) {
			continue
		}
		if len(f.Categories) > 0 && !hasAnyCategory(p, f.Categories) {
			continue
		}
		switch f.Owner {
		case OwnerMine:
			if p.OwnerID != v.ID {
				continue
			}
		case OwnerFriends:
			if !VisibleToFriend(p, v) {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func hasAnyCategory(p models.Place, categories []string) bool {
	for _, c := range categories {
		if p.HasCategory(c) {
			return true
		}
	}
	return false
}

// ProfileFilter narrows the places listed on a profile.
type ProfileFilter struct {
	City      string
	District  string
	Category  string
	MinRating int
}

// FilterUserPlaces matches exactly on city, district and category. The rating
// threshold is checked against the user's own rating when they have one.
func FilterUserPlaces(places []models.UserPlace, f ProfileFilter) []models.UserPlace {
	out := make([]models.UserPlace, 0, len(places))
	for _, p := range places {
		if f.City != "" && p.City != f.City {
			continue
		}
		if f.District != "" && p.District != f.District {
			continue
		}
		if f.Category != "" && !p.HasCategory(f.Category) {
			continue
		}
		if f.MinRating > 0 {
			rating := p.AvgRating
			if p.UserRating != nil {
				rating = float64(*p.UserRating)
			}
			if rating < float64(f.MinRating) {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}
