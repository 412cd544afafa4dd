package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinify/pinify-backend/internal/models"
)

func cafeX(id string, lat, lng float64) models.Place {
	return models.Place{
		ID:       id,
		Name:     "Cafe X",
		City:     "Istanbul",
		District: "Fatih",
		Location: models.Location{Lat: lat, Lng: lng},
	}
}

func TestResolveDuplicate(t *testing.T) {
	existing := []models.Place{cafeX("p1", 41.0082, 28.9784)}

	tests := []struct {
		name      string
		candidate PlaceCandidate
		wantID    string
	}{
		{
			name:      "jitter inside tolerance",
			candidate: PlaceCandidate{Name: "Cafe X", City: "Istanbul", District: "Fatih", Location: models.Location{Lat: 41.0083, Lng: 28.9785}},
			wantID:    "p1",
		},
		{
			name:      "surrounding whitespace is trimmed",
			candidate: PlaceCandidate{Name: "  Cafe X\t", City: "Istanbul", District: "Fatih", Location: models.Location{Lat: 41.0082, Lng: 28.9784}},
			wantID:    "p1",
		},
		{
			name:      "latitude too far",
			candidate: PlaceCandidate{Name: "Cafe X", City: "Istanbul", District: "Fatih", Location: models.Location{Lat: 41.0085, Lng: 28.9784}},
		},
		{
			name:      "longitude too far",
			candidate: PlaceCandidate{Name: "Cafe X", City: "Istanbul", District: "Fatih", Location: models.Location{Lat: 41.0082, Lng: 28.9787}},
		},
		{
			name:      "name is case sensitive",
			candidate: PlaceCandidate{Name: "cafe x", City: "Istanbul", District: "Fatih", Location: models.Location{Lat: 41.0082, Lng: 28.9784}},
		},
		{
			name:      "different district",
			candidate: PlaceCandidate{Name: "Cafe X", City: "Istanbul", District: "Beyoglu", Location: models.Location{Lat: 41.0082, Lng: 28.9784}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveDuplicate(tc.candidate, existing)
			if tc.wantID == "" {
				assert.False(t, ok)
				assert.Nil(t, got)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.wantID, got.ID)
		})
	}
}

func TestResolveDuplicateEmptyCityAndDistrict(t *testing.T) {
	existing := []models.Place{{ID: "p1", Name: "Viewpoint", Location: models.Location{Lat: 1, Lng: 1}}}

	got, ok := ResolveDuplicate(PlaceCandidate{Name: "Viewpoint", Location: models.Location{Lat: 1.0001, Lng: 1}}, existing)
	require.True(t, ok)
	assert.Equal(t, "p1", got.ID)
}

func TestResolveDuplicateFirstMatchWins(t *testing.T) {
	existing := []models.Place{
		cafeX("far", 41.1, 28.9784),
		cafeX("first", 41.0082, 28.9784),
		cafeX("second", 41.0083, 28.9784),
	}

	got, ok := ResolveDuplicate(PlaceCandidate{Name: "Cafe X", City: "Istanbul", District: "Fatih", Location: models.Location{Lat: 41.0082, Lng: 28.9784}}, existing)
	require.True(t, ok)
	assert.Equal(t, "first", got.ID)
}

func TestAggregateRatings(t *testing.T) {
	assert.Equal(t, Aggregate{}, AggregateRatings(nil))

	got := AggregateRatings([]models.Review{{Rating: 4}, {Rating: 2}})
	assert.Equal(t, 2, got.RatingCount)
	assert.InDelta(t, 3.0, got.AvgRating, 1e-9)

	got = AggregateRatings([]models.Review{{Rating: 5}, {Rating: 4}, {Rating: 4}})
	assert.InDelta(t, 13.0/3.0, got.AvgRating, 1e-9)

	assert.Equal(t, Aggregate{AvgRating: 4, RatingCount: 1}, SeedAggregate(4))
}

func TestIsValidRating(t *testing.T) {
	for _, r := range []int{1, 3, 5} {
		assert.True(t, IsValidRating(r), r)
	}
	for _, r := range []int{0, 6, -1} {
		assert.False(t, IsValidRating(r), r)
	}
}

func TestRelationshipAndGuards(t *testing.T) {
	pending := &models.FriendRequest{ID: "r1", Status: models.FriendRequestPending}

	tests := []struct {
		name    string
		pair    PairState
		state   RelationshipState
		wantErr error
	}{
		{"self", PairState{ViewerID: "a", TargetID: "a"}, RelationshipSelf, ErrSelfRequest},
		{"none", PairState{ViewerID: "a", TargetID: "b"}, RelationshipNone, nil},
		{"friends", PairState{ViewerID: "a", TargetID: "b", Friends: true}, RelationshipFriends, ErrAlreadyFriends},
		{"sent", PairState{ViewerID: "a", TargetID: "b", Sent: pending}, RelationshipPendingSent, ErrRequestAlreadySent},
		{"received", PairState{ViewerID: "a", TargetID: "b", Received: pending}, RelationshipPendingReceived, ErrRequestAlreadyReceived},
		{"friends wins over stale request", PairState{ViewerID: "a", TargetID: "b", Friends: true, Sent: pending}, RelationshipFriends, ErrAlreadyFriends},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.state, Relationship(tc.pair))
			assert.ErrorIs(t, CanSendRequest(tc.pair), tc.wantErr)
			if tc.wantErr == nil {
				assert.NoError(t, CanSendRequest(tc.pair))
			}
		})
	}
}

func TestAddRemoveFriend(t *testing.T) {
	friends := AddFriend(nil, "b")
	friends = AddFriend(friends, "b")
	friends = AddFriend(friends, "c")
	assert.Equal(t, []string{"b", "c"}, friends)

	assert.Equal(t, []string{"c"}, RemoveFriend(friends, "b"))
	assert.Empty(t, RemoveFriend([]string{"b"}, "b"))
}

func TestFilterPlacesFriends(t *testing.T) {
	places := []models.Place{
		{ID: "mine", OwnerID: "me"},
		{ID: "friend", OwnerID: "f1"},
		{ID: "stranger", OwnerID: "s1"},
	}

	t.Run("friend set not loaded shows nothing", func(t *testing.T) {
		got := FilterPlaces(places, MapFilter{Owner: OwnerFriends}, Viewer{ID: "me"})
		assert.Empty(t, got)
		assert.NotNil(t, got)
	})

	t.Run("own places excluded even when self-listed", func(t *testing.T) {
		v := Viewer{ID: "me", Friends: []string{"f1", "me"}, FriendsLoaded: true}
		got := FilterPlaces(places, MapFilter{Owner: OwnerFriends}, v)
		require.Len(t, got, 1)
		assert.Equal(t, "friend", got[0].ID)
	})

	t.Run("my places", func(t *testing.T) {
		got := FilterPlaces(places, MapFilter{Owner: OwnerMine}, Viewer{ID: "me"})
		require.Len(t, got, 1)
		assert.Equal(t, "mine", got[0].ID)
	})

	t.Run("all", func(t *testing.T) {
		assert.Len(t, FilterPlaces(places, MapFilter{Owner: OwnerAll}, Viewer{ID: "me"}), 3)
	})
}

func TestFilterPlacesFields(t *testing.T) {
	places := []models.Place{
		{ID: "1", City: "Istanbul", District: "Kadikoy", Categories: []string{"Coffee"}},
		{ID: "2", City: "Istanbul", District: "Fatih", Categories: []string{"Historical", "View"}},
		{ID: "3", City: "Ankara", District: "Cankaya", Categories: []string{"Food"}},
	}

	got := FilterPlaces(places, MapFilter{City: "istan", Owner: OwnerAll}, Viewer{})
	assert.Len(t, got, 2)

	got = FilterPlaces(places, MapFilter{City: "istanbul", District: "FAT"}, Viewer{})
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	got = FilterPlaces(places, MapFilter{Categories: []string{"Food", "View"}}, Viewer{})
	assert.Len(t, got, 2)
}

func TestParseOwnerFilter(t *testing.T) {
	f, ok := ParseOwnerFilter("")
	assert.True(t, ok)
	assert.Equal(t, OwnerAll, f)

	f, ok = ParseOwnerFilter("Friends")
	assert.True(t, ok)
	assert.Equal(t, OwnerFriends, f)

	_, ok = ParseOwnerFilter("everyone")
	assert.False(t, ok)
}

func TestFilterUserPlaces(t *testing.T) {
	two := 2
	places := []models.UserPlace{
		{Place: models.Place{ID: "rated-low", City: "Izmir", AvgRating: 5}, UserRating: &two},
		{Place: models.Place{ID: "unrated", City: "Izmir", AvgRating: 4}},
	}

	got := FilterUserPlaces(places, ProfileFilter{MinRating: 3})
	require.Len(t, got, 1)
	assert.Equal(t, "unrated", got[0].ID)

	assert.Empty(t, FilterUserPlaces(places, ProfileFilter{City: "izmir"}))
}
