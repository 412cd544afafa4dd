package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/rules"
)

type addedPlaceKey struct {
	userID  string
	placeID string
}

// InMemoryStore keeps everything in maps. It backs local development and the
// service tests.
type InMemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*models.User
	tokens      map[string]*models.RefreshToken // by token string
	places      map[string]*models.Place
	placeOrder  []string
	photos      map[string][]models.PlacePhoto
	reviews     map[string]map[string]*models.Review // placeID -> reviewID
	addedPlaces map[addedPlaceKey]*models.AddedPlace
	requests    map[string]*models.FriendRequest
	now         func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:       make(map[string]*models.User),
		tokens:      make(map[string]*models.RefreshToken),
		places:      make(map[string]*models.Place),
		photos:      make(map[string][]models.PlacePhoto),
		reviews:     make(map[string]map[string]*models.Review),
		addedPlaces: make(map[addedPlaceKey]*models.AddedPlace),
		requests:    make(map[string]*models.FriendRequest),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) Close() error { return nil }

func copyUser(u *models.User) *models.User {
	c := *u
	c.Friends = append(pq.StringArray{}, u.Friends...)
	return &c
}

func copyPlace(p *models.Place) models.Place {
	c := *p
	c.Categories = append(pq.StringArray{}, p.Categories...)
	c.Photos = nil
	return c
}

// Users

func (s *InMemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Friends == nil {
		user.Friends = pq.StringArray{}
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *InMemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (s *InMemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) GetUsers(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *copyUser(u))
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	return nil
}

// Refresh tokens

func (s *InMemoryStore) StoreRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeToken(token)
	return nil
}

func (s *InMemoryStore) storeToken(token *models.RefreshToken) {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = s.now()
	c := *token
	s.tokens[token.Token] = &c
}

func (s *InMemoryStore) GetActiveRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[token]
	if !ok || t.IsRevoked || !t.ExpiresAt.After(s.now()) {
		return nil, ErrNotFound
	}
	c := *t
	return &c, nil
}

func (s *InMemoryStore) RotateRefreshToken(_ context.Context, old, next *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[old.Token]; ok {
		t.IsRevoked = true
	}
	s.storeToken(next)
	return nil
}

func (s *InMemoryStore) RevokeRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[token]; ok && t.UserID == userID {
		t.IsRevoked = true
	}
	return nil
}

func (s *InMemoryStore) RevokeSession(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if t.UserID == userID && t.SessionID == sessionID {
			t.IsRevoked = true
		}
	}
	return nil
}

func (s *InMemoryStore) SessionActive(_ context.Context, userID, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if t.UserID == userID && t.SessionID == sessionID && !t.IsRevoked && t.ExpiresAt.After(s.now()) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) RevokeUserTokens(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if t.UserID == userID {
			t.IsRevoked = true
		}
	}
	return nil
}

// Places

func (s *InMemoryStore) CreatePlace(_ context.Context, place *models.Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if place.ID == "" {
		place.ID = uuid.NewString()
	}
	now := s.now()
	place.CreatedAt, place.UpdatedAt = now, now
	c := copyPlace(place)
	s.places[place.ID] = &c
	s.placeOrder = append(s.placeOrder, place.ID)
	return nil
}

func (s *InMemoryStore) GetPlace(_ context.Context, id string) (*models.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.places[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyPlace(p)
	c.Photos = append([]models.PlacePhoto(nil), s.photos[id]...)
	return &c, nil
}

func (s *InMemoryStore) GetPlaces(_ context.Context, ids []string) ([]models.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Place, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.places[id]; ok {
			out = append(out, copyPlace(p))
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListPlaces(_ context.Context) ([]models.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Place, 0, len(s.placeOrder))
	for _, id := range s.placeOrder {
		out = append(out, copyPlace(s.places[id]))
	}
	return out, nil
}

func (s *InMemoryStore) FindPlacesByIdentity(_ context.Context, name, city, district string) ([]models.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Place
	for _, id := range s.placeOrder {
		p := s.places[id]
		if p.Name == name && p.City == city && p.District == district {
			out = append(out, copyPlace(p))
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdatePlaceRating(_ context.Context, id string, avgRating float64, ratingCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.places[id]
	if !ok {
		return ErrNotFound
	}
	p.AvgRating = avgRating
	p.RatingCount = ratingCount
	p.UpdatedAt = s.now()
	return nil
}

func (s *InMemoryStore) AddPlacePhotos(_ context.Context, photos []models.PlacePhoto) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, photo := range photos {
		if photo.ID == "" {
			photo.ID = uuid.NewString()
		}
		photo.CreatedAt = s.now()
		s.photos[photo.PlaceID] = append(s.photos[photo.PlaceID], photo)
	}
	return nil
}

func (s *InMemoryStore) ListPlacePhotos(_ context.Context, placeID string) ([]models.PlacePhoto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.PlacePhoto(nil), s.photos[placeID]...), nil
}

// Reviews

func (s *InMemoryStore) CreateReview(_ context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := s.now()
	review.CreatedAt, review.UpdatedAt = now, now
	if s.reviews[review.PlaceID] == nil {
		s.reviews[review.PlaceID] = make(map[string]*models.Review)
	}
	c := *review
	s.reviews[review.PlaceID][review.ID] = &c
	return nil
}

func (s *InMemoryStore) GetReview(_ context.Context, placeID, reviewID string) (*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[placeID][reviewID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *r
	return &c, nil
}

func (s *InMemoryStore) FindUserReview(_ context.Context, placeID, userID string) (*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reviews[placeID] {
		if r.UserID == userID {
			c := *r
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) ListReviews(_ context.Context, placeID string) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Review, 0, len(s.reviews[placeID]))
	for _, r := range s.reviews[placeID] {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateReview(_ context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[review.PlaceID][review.ID]
	if !ok {
		return ErrNotFound
	}
	r.Rating = review.Rating
	r.Comment = review.Comment
	r.UpdatedAt = s.now()
	review.UpdatedAt = r.UpdatedAt
	return nil
}

func (s *InMemoryStore) DeleteReview(_ context.Context, placeID, reviewID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[placeID][reviewID]; !ok {
		return ErrNotFound
	}
	delete(s.reviews[placeID], reviewID)
	return nil
}

// Added places

func (s *InMemoryStore) SetAddedPlaceRating(_ context.Context, userID, placeID string, rating int, touch bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := addedPlaceKey{userID, placeID}
	ap, ok := s.addedPlaces[key]
	if !ok {
		ap = &models.AddedPlace{UserID: userID, PlaceID: placeID, AddedAt: s.now()}
		s.addedPlaces[key] = ap
	}
	r := rating
	ap.Rating = &r
	if touch {
		ap.AddedAt = s.now()
	}
	return nil
}

func (s *InMemoryStore) ClearAddedPlaceRating(_ context.Context, userID, placeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ap, ok := s.addedPlaces[addedPlaceKey{userID, placeID}]; ok {
		ap.Rating = nil
	}
	return nil
}

func (s *InMemoryStore) ListAddedPlaces(_ context.Context, userID string) ([]models.AddedPlace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AddedPlace
	for key, ap := range s.addedPlaces {
		if key.userID != userID {
			continue
		}
		c := *ap
		if ap.Rating != nil {
			r := *ap.Rating
			c.Rating = &r
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteAddedPlace(_ context.Context, userID, placeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := addedPlaceKey{userID, placeID}
	if _, ok := s.addedPlaces[key]; !ok {
		return ErrNotFound
	}
	delete(s.addedPlaces, key)
	return nil
}

// Friends

func (s *InMemoryStore) CreateFriendRequest(_ context.Context, req *models.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := s.now()
	req.CreatedAt, req.UpdatedAt = now, now
	c := *req
	s.requests[req.ID] = &c
	return nil
}

func (s *InMemoryStore) GetFriendRequest(_ context.Context, id string) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *r
	return &c, nil
}

func (s *InMemoryStore) FindPendingRequest(_ context.Context, senderID, receiverID string) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.requests {
		if r.SenderID == senderID && r.ReceiverID == receiverID && r.Status == models.FriendRequestPending {
			c := *r
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) ListPendingRequestsFor(_ context.Context, receiverID string) ([]models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.FriendRequest
	for _, r := range s.requests {
		if r.ReceiverID == receiverID && r.Status == models.FriendRequestPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) RejectFriendRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = models.FriendRequestRejected
	r.UpdatedAt = s.now()
	return nil
}

// AcceptFriendRequest holds the write lock for the whole change, so readers
// never see one side of the friendship without the other.
func (s *InMemoryStore) AcceptFriendRequest(_ context.Context, req *models.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[req.ID]
	if !ok {
		return ErrNotFound
	}
	sender, ok := s.users[r.SenderID]
	if !ok {
		return ErrNotFound
	}
	receiver, ok := s.users[r.ReceiverID]
	if !ok {
		return ErrNotFound
	}

	now := s.now()
	r.Status = models.FriendRequestAccepted
	r.UpdatedAt = now
	sender.Friends = rules.AddFriend(sender.Friends, receiver.ID)
	receiver.Friends = rules.AddFriend(receiver.Friends, sender.ID)
	sender.UpdatedAt, receiver.UpdatedAt = now, now
	return nil
}

func (s *InMemoryStore) RemoveFriendship(_ context.Context, userID, friendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	friend, ok := s.users[friendID]
	if !ok {
		return ErrNotFound
	}

	user.Friends = rules.RemoveFriend(user.Friends, friendID)
	friend.Friends = rules.RemoveFriend(friend.Friends, userID)
	return nil
}
