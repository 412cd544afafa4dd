package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/repository"
	"github.com/pinify/pinify-backend/internal/rules"
	"github.com/pinify/pinify-backend/internal/utils"
)

type testEnv struct {
	store   *repository.InMemoryStore
	places  *PlaceService
	reviews *ReviewService
	friends *FriendService
	auth    *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewInMemoryStore()
	return newTestEnvWithStore(store, store)
}

func newTestEnvWithStore(mem *repository.InMemoryStore, store repository.Store) *testEnv {
	agg := NewRatingAggregator(store)
	return &testEnv{
		store:   mem,
		places:  NewPlaceService(store, agg, nil),
		reviews: NewReviewService(store, agg),
		friends: NewFriendService(store, nil),
		auth:    NewAuthService(store, "test-secret", nil, nil),
	}
}

func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, DisplayName: username, Email: username + "@example.com"}
	require.NoError(t, u.SetPassword("password1"))
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func cafeX(lat, lng float64, rating int) models.AddPlaceRequest {
	return models.AddPlaceRequest{
		Name:       "Cafe X",
		City:       "Istanbul",
		District:   "Fatih",
		Categories: []string{models.CategoryCoffee},
		Location:   &models.Location{Lat: lat, Lng: lng},
		Rating:     rating,
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), "error: %v", err)
}

func TestAddPlaceCafeXScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")
	b := env.user(t, "burak")

	first, err := env.places.AddPlace(ctx, a.ID, a.Username, cafeX(41.0082, 28.9784, 4))
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.True(t, first.ReviewCreated)
	assert.Equal(t, 4.0, first.Place.AvgRating)
	assert.Equal(t, 1, first.Place.RatingCount)

	second, err := env.places.AddPlace(ctx, b.ID, b.Username, cafeX(41.0083, 28.9785, 2))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.True(t, second.ReviewCreated)
	assert.Equal(t, first.Place.ID, second.Place.ID)

	place, err := env.store.GetPlace(ctx, first.Place.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, place.AvgRating)
	assert.Equal(t, 2, place.RatingCount)
	assert.Equal(t, a.ID, place.OwnerID)

	added, err := env.store.ListAddedPlaces(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 2, *added[0].Rating)
}

func TestAddPlaceOutsideToleranceCreatesTwo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")

	first, err := env.places.AddPlace(ctx, a.ID, a.Username, cafeX(41.0082, 28.9784, 4))
	require.NoError(t, err)
	second, err := env.places.AddPlace(ctx, a.ID, a.Username, cafeX(41.0085, 28.9784, 4))
	require.NoError(t, err)

	assert.True(t, second.Created)
	assert.NotEqual(t, first.Place.ID, second.Place.ID)
}

func TestAddPlaceAlreadyReviewedSyncsRating(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")

	first, err := env.places.AddPlace(ctx, a.ID, a.Username, cafeX(41.0082, 28.9784, 4))
	require.NoError(t, err)

	again, err := env.places.AddPlace(ctx, a.ID, a.Username, cafeX(41.0082, 28.9784, 1))
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.False(t, again.ReviewCreated)
	assert.Equal(t, first.Review.ID, again.Review.ID)

	reviews, err := env.store.ListReviews(ctx, first.Place.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)

	added, err := env.store.ListAddedPlaces(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 4, *added[0].Rating)
}

func TestAddPlaceValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")

	tests := []struct {
		name   string
		mutate func(*models.AddPlaceRequest)
	}{
		{"blank name", func(r *models.AddPlaceRequest) { r.Name = "   " }},
		{"no categories", func(r *models.AddPlaceRequest) { r.Categories = nil }},
		{"unknown category", func(r *models.AddPlaceRequest) { r.Categories = []string{"Bar"} }},
		{"rating too high", func(r *models.AddPlaceRequest) { r.Rating = 6 }},
		{"rating zero", func(r *models.AddPlaceRequest) { r.Rating = 0 }},
		{"latitude out of range", func(r *models.AddPlaceRequest) { r.Location.Lat = 95 }},
		{"missing location", func(r *models.AddPlaceRequest) { r.Location = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := cafeX(41.0082, 28.9784, 4)
			tc.mutate(&req)
			_, err := env.places.AddPlace(ctx, a.ID, a.Username, req)
			requireKind(t, err, KindValidation)
		})
	}

	places, err := env.store.ListPlaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestReviewLifecycleKeepsAggregate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")
	b := env.user(t, "burak")

	res, err := env.places.AddPlace(ctx, a.ID, a.Username, cafeX(41.0082, 28.9784, 5))
	require.NoError(t, err)
	placeID := res.Place.ID

	_, err = env.reviews.CreateReview(ctx, a.ID, a.Username, placeID, models.CreateReviewRequest{Rating: 3})
	requireKind(t, err, KindValidation)

	rb, err := env.reviews.CreateReview(ctx, b.ID, b.Username, placeID, models.CreateReviewRequest{Rating: 2, Comment: "  too loud  "})
	require.NoError(t, err)
	assert.Equal(t, "too loud", rb.Comment)

	place, _ := env.store.GetPlace(ctx, placeID)
	assert.Equal(t, 3.5, place.AvgRating)
	assert.Equal(t, 2, place.RatingCount)

	_, err = env.reviews.UpdateReview(ctx, a.ID, placeID, rb.ID, models.UpdateReviewRequest{Rating: 5})
	requireKind(t, err, KindForbidden)

	_, err = env.reviews.UpdateReview(ctx, b.ID, placeID, rb.ID, models.UpdateReviewRequest{Rating: 3})
	require.NoError(t, err)
	place, _ = env.store.GetPlace(ctx, placeID)
	assert.Equal(t, 4.0, place.AvgRating)

	added, _ := env.store.ListAddedPlaces(ctx, b.ID)
	require.Len(t, added, 1)
	assert.Equal(t, 3, *added[0].Rating)

	require.NoError(t, env.reviews.DeleteReview(ctx, b.ID, placeID, rb.ID))
	added, _ = env.store.ListAddedPlaces(ctx, b.ID)
	require.Len(t, added, 1)
	assert.Nil(t, added[0].Rating)

	require.NoError(t, env.reviews.DeleteReview(ctx, a.ID, placeID, res.Review.ID))
	place, _ = env.store.GetPlace(ctx, placeID)
	assert.Equal(t, 0.0, place.AvgRating)
	assert.Equal(t, 0, place.RatingCount)

	err = env.reviews.DeleteReview(ctx, a.ID, placeID, res.Review.ID)
	requireKind(t, err, KindNotFound)
}

func TestReviewOnMissingPlace(t *testing.T) {
	env := newTestEnv(t)
	a := env.user(t, "ayse")
	_, err := env.reviews.CreateReview(context.Background(), a.ID, a.Username, "nope", models.CreateReviewRequest{Rating: 3})
	requireKind(t, err, KindNotFound)
}

type failingRatingStore struct {
	*repository.InMemoryStore
}

func (failingRatingStore) UpdatePlaceRating(context.Context, string, float64, int) error {
	return errors.New("write failed")
}

func TestRecomputeFailureDoesNotFailReview(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewInMemoryStore()
	env := newTestEnvWithStore(mem, failingRatingStore{mem})
	a := env.user(t, "ayse")
	b := env.user(t, "burak")

	res, err := env.places.AddPlace(ctx, a.ID, a.Username, cafeX(41.0082, 28.9784, 4))
	require.NoError(t, err)

	_, err = env.reviews.CreateReview(ctx, b.ID, b.Username, res.Place.ID, models.CreateReviewRequest{Rating: 2})
	require.NoError(t, err)

	reviews, _ := mem.ListReviews(ctx, res.Place.ID)
	assert.Len(t, reviews, 2)
}

func TestPlaceDetailsIncludesViewerReview(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")
	b := env.user(t, "burak")

	res, err := env.places.AddPlace(ctx, a.ID, a.Username, cafeX(41.0082, 28.9784, 4))
	require.NoError(t, err)

	details, err := env.places.GetPlaceDetails(ctx, a.ID, res.Place.ID)
	require.NoError(t, err)
	require.NotNil(t, details.MyReview)
	assert.Equal(t, 4, details.MyReview.Rating)

	details, err = env.places.GetPlaceDetails(ctx, b.ID, res.Place.ID)
	require.NoError(t, err)
	assert.Nil(t, details.MyReview)
	assert.Len(t, details.Reviews, 1)
}

func TestFriendRequestFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")
	b := env.user(t, "burak")

	_, err := env.friends.SendRequest(ctx, a.ID, models.SendFriendRequest{Username: "ayse"})
	requireKind(t, err, KindValidation)
	assert.Equal(t, rules.ErrSelfRequest.Error(), MessageOf(err))

	_, err = env.friends.SendRequest(ctx, a.ID, models.SendFriendRequest{Username: "nobody"})
	requireKind(t, err, KindNotFound)

	req, err := env.friends.SendRequest(ctx, a.ID, models.SendFriendRequest{Username: " Burak "})
	require.NoError(t, err)

	_, err = env.friends.SendRequest(ctx, a.ID, models.SendFriendRequest{UserID: b.ID})
	assert.Equal(t, rules.ErrRequestAlreadySent.Error(), MessageOf(err))

	_, err = env.friends.SendRequest(ctx, b.ID, models.SendFriendRequest{UserID: a.ID})
	assert.Equal(t, rules.ErrRequestAlreadyReceived.Error(), MessageOf(err))

	rel, err := env.friends.Relationship(ctx, b.ID, "ayse")
	require.NoError(t, err)
	assert.Equal(t, rules.RelationshipPendingReceived, rel.State)
	assert.Equal(t, req.ID, rel.RequestID)

	incoming, err := env.friends.IncomingRequests(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, "ayse", incoming[0].Sender.Username)

	requireKind(t, env.friends.AcceptRequest(ctx, a.ID, req.ID), KindForbidden)
	require.NoError(t, env.friends.AcceptRequest(ctx, b.ID, req.ID))
	requireKind(t, env.friends.AcceptRequest(ctx, b.ID, req.ID), KindValidation)

	ua, _ := env.store.GetUser(ctx, a.ID)
	ub, _ := env.store.GetUser(ctx, b.ID)
	assert.True(t, ua.HasFriend(b.ID))
	assert.True(t, ub.HasFriend(a.ID))

	_, err = env.friends.SendRequest(ctx, b.ID, models.SendFriendRequest{UserID: a.ID})
	assert.Equal(t, rules.ErrAlreadyFriends.Error(), MessageOf(err))

	friends, err := env.friends.ListFriends(ctx, "burak")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "ayse", friends[0].Username)

	require.NoError(t, env.friends.RemoveFriend(ctx, b.ID, a.ID))
	ua, _ = env.store.GetUser(ctx, a.ID)
	ub, _ = env.store.GetUser(ctx, b.ID)
	assert.False(t, ua.HasFriend(b.ID))
	assert.False(t, ub.HasFriend(a.ID))
	requireKind(t, env.friends.RemoveFriend(ctx, b.ID, a.ID), KindNotFound)

	rel, err = env.friends.Relationship(ctx, a.ID, "burak")
	require.NoError(t, err)
	assert.Equal(t, rules.RelationshipNone, rel.State)
}

func TestRejectAllowsReRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")
	b := env.user(t, "burak")

	req, err := env.friends.SendRequest(ctx, a.ID, models.SendFriendRequest{UserID: b.ID})
	require.NoError(t, err)
	require.NoError(t, env.friends.RejectRequest(ctx, b.ID, req.ID))

	stored, err := env.store.GetFriendRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestRejected, stored.Status)

	rel, err := env.friends.Relationship(ctx, a.ID, "burak")
	require.NoError(t, err)
	assert.Equal(t, rules.RelationshipNone, rel.State)

	_, err = env.friends.SendRequest(ctx, a.ID, models.SendFriendRequest{UserID: b.ID})
	assert.NoError(t, err)
}

func TestMapFriendsFilter(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")
	b := env.user(t, "burak")
	c := env.user(t, "cem")

	_, err := env.places.AddPlace(ctx, b.ID, b.Username, cafeX(41.0, 29.0, 4))
	require.NoError(t, err)
	_, err = env.places.AddPlace(ctx, c.ID, c.Username, cafeX(40.0, 29.0, 4))
	require.NoError(t, err)
	_, err = env.places.AddPlace(ctx, a.ID, a.Username, cafeX(39.0, 29.0, 4))
	require.NoError(t, err)

	filter := rules.MapFilter{Owner: rules.OwnerFriends}

	places, err := env.places.ListMapPlaces(ctx, rules.Viewer{ID: a.ID}, filter)
	require.NoError(t, err)
	assert.NotNil(t, places)
	assert.Empty(t, places)

	viewer := rules.Viewer{ID: a.ID, Friends: []string{b.ID, a.ID}, FriendsLoaded: true}
	places, err = env.places.ListMapPlaces(ctx, viewer, filter)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, b.ID, places[0].OwnerID)

	places, err = env.places.ListMapPlaces(ctx, viewer, rules.MapFilter{Owner: rules.OwnerMine})
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, a.ID, places[0].OwnerID)

	places, err = env.places.ListMapPlaces(ctx, viewer, rules.MapFilter{Owner: rules.OwnerAll, City: "istan"})
	require.NoError(t, err)
	assert.Len(t, places, 3)
}

func TestListUserPlacesAndRemove(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")

	coffee, err := env.places.AddPlace(ctx, a.ID, a.Username, cafeX(41.0, 29.0, 2))
	require.NoError(t, err)
	view := models.AddPlaceRequest{
		Name: "Galata Tower", City: "Istanbul", District: "Beyoglu",
		Categories: []string{models.CategoryView, models.CategoryHistorical},
		Location:   &models.Location{Lat: 41.0256, Lng: 28.9741}, Rating: 5,
	}
	_, err = env.places.AddPlace(ctx, a.ID, a.Username, view)
	require.NoError(t, err)

	all, err := env.places.ListUserPlaces(ctx, "ayse", rules.ProfileFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	high, err := env.places.ListUserPlaces(ctx, "ayse", rules.ProfileFilter{MinRating: 4})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "Galata Tower", high[0].Name)
	require.NotNil(t, high[0].UserRating)

	require.NoError(t, env.places.RemoveAddedPlace(ctx, a.ID, coffee.Place.ID))
	requireKind(t, env.places.RemoveAddedPlace(ctx, a.ID, coffee.Place.ID), KindNotFound)

	all, err = env.places.ListUserPlaces(ctx, "ayse", rules.ProfileFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// the shared place survives
	_, err = env.store.GetPlace(ctx, coffee.Place.ID)
	assert.NoError(t, err)

	_, err = env.places.ListUserPlaces(ctx, "ghost", rules.ProfileFilter{})
	requireKind(t, err, KindNotFound)
}

func TestUploadPhotosWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.places.UploadPhotos(context.Background(), "u1", "p1", nil)
	requireKind(t, err, KindUnavailable)
}

type recordingNotifier struct {
	mu      sync.Mutex
	welcome []string
}

func (n *recordingNotifier) SendWelcomeEmail(to, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcome = append(n.welcome, to)
	return nil
}

func (n *recordingNotifier) SendFriendRequestEmail(string, string, string) error { return nil }

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.welcome)
}

func TestRegisterLoginRefresh(t *testing.T) {
	ctx := context.Background()
	store := repository.NewInMemoryStore()
	notifier := &recordingNotifier{}
	auth := NewAuthService(store, "test-secret", nil, notifier)

	_, err := auth.Register(ctx, RegisterRequest{Username: "Ayse", Email: "ayse@example.com", Password: "password1"})
	requireKind(t, err, KindValidation)
	_, err = auth.Register(ctx, RegisterRequest{Username: "ayse", Email: "ayse@example.com", Password: "password"})
	requireKind(t, err, KindValidation)

	resp, err := auth.Register(ctx, RegisterRequest{Username: "ayse", Email: "Ayse@Example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "ayse", resp.User.DisplayName)
	assert.Equal(t, "ayse@example.com", resp.User.Email)
	assert.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 10*time.Millisecond)

	_, err = auth.Register(ctx, RegisterRequest{Username: "ayse", Email: "other@example.com", Password: "password1"})
	requireKind(t, err, KindValidation)

	_, err = auth.Login(ctx, LoginRequest{Username: "nobody", Password: "password1"})
	requireKind(t, err, KindNotFound)
	_, err = auth.Login(ctx, LoginRequest{Username: "ayse", Password: "wrong-pass1"})
	requireKind(t, err, KindUnauthorized)

	login, err := auth.Login(ctx, LoginRequest{Username: "ayse", Password: "password1"})
	require.NoError(t, err)

	refreshed, err := auth.Refresh(ctx, login.Token.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.Token.RefreshToken, refreshed.Token.RefreshToken)

	// rotated tokens cannot be reused
	_, err = auth.Refresh(ctx, login.Token.RefreshToken)
	requireKind(t, err, KindUnauthorized)

	claims, err := utils.ValidateToken(refreshed.Token.AccessToken, "test-secret")
	require.NoError(t, err)
	loginClaims, err := utils.ValidateToken(login.Token.AccessToken, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, loginClaims.SessionID, claims.SessionID)

	active, err := store.SessionActive(ctx, resp.User.ID, claims.SessionID)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, auth.Logout(ctx, resp.User.ID, claims.SessionID, LogoutRequest{}))
	_, err = auth.Refresh(ctx, refreshed.Token.RefreshToken)
	requireKind(t, err, KindUnauthorized)
	active, err = store.SessionActive(ctx, resp.User.ID, claims.SessionID)
	require.NoError(t, err)
	assert.False(t, active)

	// the registration session is separate and still live
	_, err = auth.Refresh(ctx, resp.Token.RefreshToken)
	assert.NoError(t, err)
}

func TestRegisterRejectsPaddedUsername(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(repository.NewInMemoryStore(), "test-secret", nil, nil)

	_, err := auth.Register(ctx, RegisterRequest{Username: " ayse ", Email: "ayse@example.com", Password: "password1"})
	requireKind(t, err, KindValidation)
	_, err = auth.Register(ctx, RegisterRequest{Username: "ay se", Email: "ayse@example.com", Password: "password1"})
	requireKind(t, err, KindValidation)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "ayse")

	requireKind(t, env.auth.ChangePassword(ctx, a.ID, ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "newpass12"}), KindValidation)
	requireKind(t, env.auth.ChangePassword(ctx, a.ID, ChangePasswordRequest{CurrentPassword: "password1", NewPassword: "short"}), KindValidation)
	require.NoError(t, env.auth.ChangePassword(ctx, a.ID, ChangePasswordRequest{CurrentPassword: "password1", NewPassword: "newpass12"}))

	_, err := env.auth.Login(ctx, LoginRequest{Username: "ayse", Password: "newpass12"})
	assert.NoError(t, err)
}
