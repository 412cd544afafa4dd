package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pinify/pinify-backend/internal/models"
)

const (
	usersCollection         = "users"
	placesCollection        = "places"
	reviewsCollection       = "reviews"
	photosCollection        = "photos"
	addedPlacesCollection   = "addedPlaces"
	friendRequestCollection = "friend_requests"
	refreshTokenCollection  = "refresh_tokens"
)

type userDoc struct {
	Username     string    `firestore:"username"`
	DisplayName  string    `firestore:"displayName"`
	Email        string    `firestore:"email"`
	PasswordHash string    `firestore:"passwordHash"`
	Friends      []string  `firestore:"friends"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

type placeDoc struct {
	OwnerID       string    `firestore:"ownerId"`
	Name          string    `firestore:"name"`
	City          string    `firestore:"city"`
	District      string    `firestore:"district"`
	Categories    []string  `firestore:"categories"`
	GooglePlaceID string    `firestore:"googlePlaceId,omitempty"`
	Location      geoDoc    `firestore:"location"`
	AvgRating     float64   `firestore:"avgRating"`
	RatingCount   int       `firestore:"ratingCount"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

type geoDoc struct {
	Lat float64 `firestore:"lat"`
	Lng float64 `firestore:"lng"`
}

type reviewDoc struct {
	PlaceID   string    `firestore:"placeId"`
	UserID    string    `firestore:"userId"`
	Username  string    `firestore:"username"`
	Rating    int       `firestore:"rating"`
	Comment   string    `firestore:"comment"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type photoDoc struct {
	PlaceID     string    `firestore:"placeId"`
	UploadedBy  string    `firestore:"uploadedBy"`
	FileName    string    `firestore:"fileName"`
	S3Key       string    `firestore:"s3Key"`
	S3URL       string    `firestore:"s3Url"`
	ContentType string    `firestore:"contentType"`
	Size        int64     `firestore:"size"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type addedPlaceDoc struct {
	Rating  *int      `firestore:"rating,omitempty"`
	AddedAt time.Time `firestore:"addedAt"`
}

type friendRequestDoc struct {
	SenderID   string    `firestore:"senderId"`
	ReceiverID string    `firestore:"receiverId"`
	Status     string    `firestore:"status"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

type refreshTokenDoc struct {
	UserID    string    `firestore:"userId"`
	SessionID string    `firestore:"sessionId"`
	Token     string    `firestore:"token"`
	ExpiresAt time.Time `firestore:"expiresAt"`
	IsRevoked bool      `firestore:"isRevoked"`
	CreatedAt time.Time `firestore:"createdAt"`
}

var errMalformedDoc = errors.New("malformed document")

// Documents are checked on the way out so a hand-edited record cannot push a
// zero-value user or an out-of-range rating into the services.

func (d userDoc) toModel(id string) (*models.User, error) {
	if d.Username == "" {
		return nil, fmt.Errorf("%w: user %s has no username", errMalformedDoc, id)
	}
	friends := pq.StringArray(d.Friends)
	if friends == nil {
		friends = pq.StringArray{}
	}
	return &models.User{
		ID:           id,
		Username:     d.Username,
		DisplayName:  d.DisplayName,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Friends:      friends,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func (d placeDoc) toModel(id string) (models.Place, error) {
	if d.Name == "" || d.OwnerID == "" {
		return models.Place{}, fmt.Errorf("%w: place %s", errMalformedDoc, id)
	}
	categories := pq.StringArray(d.Categories)
	if categories == nil {
		categories = pq.StringArray{}
	}
	return models.Place{
		ID:            id,
		OwnerID:       d.OwnerID,
		Name:          d.Name,
		City:          d.City,
		District:      d.District,
		Categories:    categories,
		GooglePlaceID: d.GooglePlaceID,
		Location:      models.Location{Lat: d.Location.Lat, Lng: d.Location.Lng},
		AvgRating:     d.AvgRating,
		RatingCount:   d.RatingCount,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

func (d reviewDoc) toModel(id string) (models.Review, error) {
	if d.Rating < 1 || d.Rating > 5 {
		return models.Review{}, fmt.Errorf("%w: review %s has rating %d", errMalformedDoc, id, d.Rating)
	}
	return models.Review{
		ID:        id,
		PlaceID:   d.PlaceID,
		UserID:    d.UserID,
		Username:  d.Username,
		Rating:    d.Rating,
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (d friendRequestDoc) toModel(id string) *models.FriendRequest {
	return &models.FriendRequest{
		ID:         id,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Status:     models.FriendRequestStatus(d.Status),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// FirestoreStore keeps users and friend requests in top-level collections and
// hangs reviews and photos under their place. Places carry their coordinates
// as a nested location map.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	if client == nil {
		panic("firestore client cannot be nil")
	}
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) users() *firestore.CollectionRef {
	return s.client.Collection(usersCollection)
}

func (s *FirestoreStore) places() *firestore.CollectionRef {
	return s.client.Collection(placesCollection)
}

func (s *FirestoreStore) reviews(placeID string) *firestore.CollectionRef {
	return s.places().Doc(placeID).Collection(reviewsCollection)
}

func (s *FirestoreStore) addedPlaces(userID string) *firestore.CollectionRef {
	return s.users().Doc(userID).Collection(addedPlacesCollection)
}

// getDoc maps a missing document to ErrNotFound.
func getDoc(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	snap, err := ref.Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, firestoreNotFound(err)
	}
	return snap, nil
}

// firestoreNotFound maps Firestore's NOT_FOUND, returned when updating a missing
// document, to ErrNotFound.
func firestoreNotFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func update(ctx context.Context, ref *firestore.DocumentRef, updates []firestore.Update) error {
	_, err := ref.Update(ctx, updates)
	return firestoreNotFound(err)
}

// each runs fn over every document of the query.
func each(ctx context.Context, q firestore.Query, fn func(*firestore.DocumentSnapshot) error) error {
	iter := q.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}

// Users

func (s *FirestoreStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Friends == nil {
		user.Friends = pq.StringArray{}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	_, err := s.users().Doc(user.ID).Create(ctx, userDoc{
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Friends:      user.Friends,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return err
}

func (s *FirestoreStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	snap, err := getDoc(ctx, s.users().Doc(id))
	if err != nil {
		return nil, err
	}
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toModel(snap.Ref.ID)
}

func (s *FirestoreStore) findUser(ctx context.Context, field, value string) (*models.User, error) {
	docs, err := s.users().Where(field, "==", value).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	var doc userDoc
	if err := docs[0].DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toModel(docs[0].Ref.ID)
}

func (s *FirestoreStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "username", username)
}

func (s *FirestoreStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email", email)
}

func (s *FirestoreStore) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	users := make([]models.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = s.users().Doc(id)
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		user, err := doc.toModel(snap.Ref.ID)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

func (s *FirestoreStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return update(ctx, s.users().Doc(id), []firestore.Update{
		{Path: "passwordHash", Value: hash},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
}

// Refresh tokens

func (s *FirestoreStore) tokenDoc(token *models.RefreshToken) refreshTokenDoc {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = time.Now().UTC()
	return refreshTokenDoc{
		UserID:    token.UserID,
		SessionID: token.SessionID,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		IsRevoked: token.IsRevoked,
		CreatedAt: token.CreatedAt,
	}
}

func (s *FirestoreStore) StoreRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	doc := s.tokenDoc(token)
	_, err := s.client.Collection(refreshTokenCollection).Doc(token.ID).Set(ctx, doc)
	return err
}

func (s *FirestoreStore) GetActiveRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	docs, err := s.client.Collection(refreshTokenCollection).
		Where("token", "==", token).
		Where("isRevoked", "==", false).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	var doc refreshTokenDoc
	if err := docs[0].DataTo(&doc); err != nil {
		return nil, err
	}
	if !doc.ExpiresAt.After(time.Now()) {
		return nil, ErrNotFound
	}
	return &models.RefreshToken{
		ID:        docs[0].Ref.ID,
		UserID:    doc.UserID,
		SessionID: doc.SessionID,
		Token:     doc.Token,
		ExpiresAt: doc.ExpiresAt,
		IsRevoked: doc.IsRevoked,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *FirestoreStore) RotateRefreshToken(ctx context.Context, old, next *models.RefreshToken) error {
	tokens := s.client.Collection(refreshTokenCollection)
	doc := s.tokenDoc(next)
	batch := s.client.Batch()
	batch.Update(tokens.Doc(old.ID), []firestore.Update{{Path: "isRevoked", Value: true}})
	batch.Set(tokens.Doc(next.ID), doc)
	_, err := batch.Commit(ctx)
	return err
}

// liveTokens matches the user's unrevoked tokens. Expiry is checked by the caller.
func (s *FirestoreStore) liveTokens(userID string) firestore.Query {
	return s.client.Collection(refreshTokenCollection).
		Where("userId", "==", userID).
		Where("isRevoked", "==", false)
}

func (s *FirestoreStore) revoke(ctx context.Context, q firestore.Query) error {
	return each(ctx, q, func(doc *firestore.DocumentSnapshot) error {
		_, err := doc.Ref.Update(ctx, []firestore.Update{{Path: "isRevoked", Value: true}})
		return err
	})
}

func (s *FirestoreStore) RevokeRefreshToken(ctx context.Context, userID, token string) error {
	return s.revoke(ctx, s.liveTokens(userID).Where("token", "==", token))
}

func (s *FirestoreStore) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return s.revoke(ctx, s.liveTokens(userID).Where("sessionId", "==", sessionID))
}

func (s *FirestoreStore) RevokeUserTokens(ctx context.Context, userID string) error {
	return s.revoke(ctx, s.liveTokens(userID))
}

func (s *FirestoreStore) SessionActive(ctx context.Context, userID, sessionID string) (bool, error) {
	active := false
	now := time.Now()
	err := each(ctx, s.liveTokens(userID).Where("sessionId", "==", sessionID), func(snap *firestore.DocumentSnapshot) error {
		var doc refreshTokenDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.ExpiresAt.After(now) {
			active = true
		}
		return nil
	})
	return active, err
}

// Places

func (s *FirestoreStore) CreatePlace(ctx context.Context, place *models.Place) error {
	if place.ID == "" {
		place.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	place.CreatedAt, place.UpdatedAt = now, now
	_, err := s.places().Doc(place.ID).Create(ctx, placeDoc{
		OwnerID:       place.OwnerID,
		Name:          place.Name,
		City:          place.City,
		District:      place.District,
		Categories:    place.Categories,
		GooglePlaceID: place.GooglePlaceID,
		Location:      geoDoc{Lat: place.Location.Lat, Lng: place.Location.Lng},
		AvgRating:     place.AvgRating,
		RatingCount:   place.RatingCount,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	return err
}

func decodePlace(snap *firestore.DocumentSnapshot) (models.Place, error) {
	var doc placeDoc
	if err := snap.DataTo(&doc); err != nil {
		return models.Place{}, err
	}
	return doc.toModel(snap.Ref.ID)
}

func (s *FirestoreStore) GetPlace(ctx context.Context, id string) (*models.Place, error) {
	snap, err := getDoc(ctx, s.places().Doc(id))
	if err != nil {
		return nil, err
	}
	place, err := decodePlace(snap)
	if err != nil {
		return nil, err
	}
	photos, err := s.ListPlacePhotos(ctx, id)
	if err != nil {
		return nil, err
	}
	place.Photos = photos
	return &place, nil
}

func (s *FirestoreStore) GetPlaces(ctx context.Context, ids []string) ([]models.Place, error) {
	places := make([]models.Place, 0, len(ids))
	if len(ids) == 0 {
		return places, nil
	}
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = s.places().Doc(id)
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		place, err := decodePlace(snap)
		if err != nil {
			return nil, err
		}
		places = append(places, place)
	}
	return places, nil
}

func (s *FirestoreStore) queryPlaces(ctx context.Context, q firestore.Query) ([]models.Place, error) {
	var places []models.Place
	err := each(ctx, q, func(snap *firestore.DocumentSnapshot) error {
		place, err := decodePlace(snap)
		if err != nil {
			return err
		}
		places = append(places, place)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return places, nil
}

func (s *FirestoreStore) ListPlaces(ctx context.Context) ([]models.Place, error) {
	return s.queryPlaces(ctx, s.places().OrderBy("createdAt", firestore.Asc))
}

func (s *FirestoreStore) FindPlacesByIdentity(ctx context.Context, name, city, district string) ([]models.Place, error) {
	places, err := s.queryPlaces(ctx, s.places().
		Where("name", "==", name).
		Where("city", "==", city).
		Where("district", "==", district))
	if err != nil {
		return nil, err
	}
	// sorted here so the query does not need a composite index
	sort.SliceStable(places, func(i, j int) bool { return places[i].CreatedAt.Before(places[j].CreatedAt) })
	return places, nil
}

func (s *FirestoreStore) UpdatePlaceRating(ctx context.Context, id string, avgRating float64, ratingCount int) error {
	return update(ctx, s.places().Doc(id), []firestore.Update{
		{Path: "avgRating", Value: avgRating},
		{Path: "ratingCount", Value: ratingCount},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
}

func (s *FirestoreStore) AddPlacePhotos(ctx context.Context, photos []models.PlacePhoto) error {
	if len(photos) == 0 {
		return nil
	}
	batch := s.client.Batch()
	now := time.Now().UTC()
	for i := range photos {
		p := &photos[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.CreatedAt = now
		batch.Set(s.places().Doc(p.PlaceID).Collection(photosCollection).Doc(p.ID), photoDoc{
			PlaceID:     p.PlaceID,
			UploadedBy:  p.UploadedBy,
			FileName:    p.FileName,
			S3Key:       p.S3Key,
			S3URL:       p.S3URL,
			ContentType: p.ContentType,
			Size:        p.Size,
			CreatedAt:   now,
		})
	}
	_, err := batch.Commit(ctx)
	return err
}

func (s *FirestoreStore) ListPlacePhotos(ctx context.Context, placeID string) ([]models.PlacePhoto, error) {
	var photos []models.PlacePhoto
	q := s.places().Doc(placeID).Collection(photosCollection).OrderBy("createdAt", firestore.Asc)
	err := each(ctx, q, func(snap *firestore.DocumentSnapshot) error {
		var doc photoDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		photos = append(photos, models.PlacePhoto{
			ID:          snap.Ref.ID,
			PlaceID:     placeID,
			UploadedBy:  doc.UploadedBy,
			FileName:    doc.FileName,
			S3Key:       doc.S3Key,
			S3URL:       doc.S3URL,
			ContentType: doc.ContentType,
			Size:        doc.Size,
			CreatedAt:   doc.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

// Reviews

func decodeReview(snap *firestore.DocumentSnapshot) (models.Review, error) {
	var doc reviewDoc
	if err := snap.DataTo(&doc); err != nil {
		return models.Review{}, err
	}
	return doc.toModel(snap.Ref.ID)
}

func (s *FirestoreStore) CreateReview(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	review.CreatedAt, review.UpdatedAt = now, now
	_, err := s.reviews(review.PlaceID).Doc(review.ID).Create(ctx, reviewDoc{
		PlaceID:   review.PlaceID,
		UserID:    review.UserID,
		Username:  review.Username,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return err
}

func (s *FirestoreStore) GetReview(ctx context.Context, placeID, reviewID string) (*models.Review, error) {
	snap, err := getDoc(ctx, s.reviews(placeID).Doc(reviewID))
	if err != nil {
		return nil, err
	}
	review, err := decodeReview(snap)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *FirestoreStore) FindUserReview(ctx context.Context, placeID, userID string) (*models.Review, error) {
	docs, err := s.reviews(placeID).Where("userId", "==", userID).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	review, err := decodeReview(docs[0])
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *FirestoreStore) ListReviews(ctx context.Context, placeID string) ([]models.Review, error) {
	var reviews []models.Review
	err := each(ctx, s.reviews(placeID).OrderBy("createdAt", firestore.Desc), func(snap *firestore.DocumentSnapshot) error {
		review, err := decodeReview(snap)
		if err != nil {
			return err
		}
		reviews = append(reviews, review)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *FirestoreStore) UpdateReview(ctx context.Context, review *models.Review) error {
	review.UpdatedAt = time.Now().UTC()
	return update(ctx, s.reviews(review.PlaceID).Doc(review.ID), []firestore.Update{
		{Path: "rating", Value: review.Rating},
		{Path: "comment", Value: review.Comment},
		{Path: "updatedAt", Value: review.UpdatedAt},
	})
}

func (s *FirestoreStore) DeleteReview(ctx context.Context, placeID, reviewID string) error {
	ref := s.reviews(placeID).Doc(reviewID)
	if _, err := getDoc(ctx, ref); err != nil {
		return err
	}
	_, err := ref.Delete(ctx)
	return err
}

// Added places

func (s *FirestoreStore) SetAddedPlaceRating(ctx context.Context, userID, placeID string, rating int, touch bool) error {
	data := map[string]interface{}{"rating": rating}
	ref := s.addedPlaces(userID).Doc(placeID)
	if !touch {
		// a fresh link still needs addedAt
		if _, err := getDoc(ctx, ref); errors.Is(err, ErrNotFound) {
			touch = true
		} else if err != nil {
			return err
		}
	}
	if touch {
		data["addedAt"] = time.Now().UTC()
	}
	_, err := ref.Set(ctx, data, firestore.MergeAll)
	return err
}

func (s *FirestoreStore) ClearAddedPlaceRating(ctx context.Context, userID, placeID string) error {
	err := update(ctx, s.addedPlaces(userID).Doc(placeID), []firestore.Update{{Path: "rating", Value: firestore.Delete}})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (s *FirestoreStore) ListAddedPlaces(ctx context.Context, userID string) ([]models.AddedPlace, error) {
	var added []models.AddedPlace
	err := each(ctx, s.addedPlaces(userID).OrderBy("addedAt", firestore.Desc), func(snap *firestore.DocumentSnapshot) error {
		var doc addedPlaceDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		added = append(added, models.AddedPlace{
			UserID:  userID,
			PlaceID: snap.Ref.ID,
			Rating:  doc.Rating,
			AddedAt: doc.AddedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (s *FirestoreStore) DeleteAddedPlace(ctx context.Context, userID, placeID string) error {
	ref := s.addedPlaces(userID).Doc(placeID)
	if _, err := getDoc(ctx, ref); err != nil {
		return err
	}
	_, err := ref.Delete(ctx)
	return err
}

// Friends

func (s *FirestoreStore) CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now
	_, err := s.client.Collection(friendRequestCollection).Doc(req.ID).Create(ctx, friendRequestDoc{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Status:     string(req.Status),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	return err
}

func (s *FirestoreStore) GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	snap, err := getDoc(ctx, s.client.Collection(friendRequestCollection).Doc(id))
	if err != nil {
		return nil, err
	}
	var doc friendRequestDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toModel(snap.Ref.ID), nil
}

func (s *FirestoreStore) FindPendingRequest(ctx context.Context, senderID, receiverID string) (*models.FriendRequest, error) {
	docs, err := s.client.Collection(friendRequestCollection).
		Where("senderId", "==", senderID).
		Where("receiverId", "==", receiverID).
		Where("status", "==", string(models.FriendRequestPending)).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	var doc friendRequestDoc
	if err := docs[0].DataTo(&doc); err != nil {
		return nil, err
	}
	return doc.toModel(docs[0].Ref.ID), nil
}

func (s *FirestoreStore) ListPendingRequestsFor(ctx context.Context, receiverID string) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	q := s.client.Collection(friendRequestCollection).
		Where("receiverId", "==", receiverID).
		Where("status", "==", string(models.FriendRequestPending))
	err := each(ctx, q, func(snap *firestore.DocumentSnapshot) error {
		var doc friendRequestDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		reqs = append(reqs, *doc.toModel(snap.Ref.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
	return reqs, nil
}

func (s *FirestoreStore) RejectFriendRequest(ctx context.Context, id string) error {
	return update(ctx, s.client.Collection(friendRequestCollection).Doc(id), []firestore.Update{
		{Path: "status", Value: string(models.FriendRequestRejected)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
}

func (s *FirestoreStore) AcceptFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	reqRef := s.client.Collection(friendRequestCollection).Doc(req.ID)
	senderRef := s.users().Doc(req.SenderID)
	receiverRef := s.users().Doc(req.ReceiverID)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now().UTC()
		if err := tx.Update(reqRef, []firestore.Update{
			{Path: "status", Value: string(models.FriendRequestAccepted)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		if err := tx.Update(receiverRef, []firestore.Update{
			{Path: "friends", Value: firestore.ArrayUnion(req.SenderID)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		return tx.Update(senderRef, []firestore.Update{
			{Path: "friends", Value: firestore.ArrayUnion(req.ReceiverID)},
			{Path: "updatedAt", Value: now},
		})
	})
}

func (s *FirestoreStore) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	userRef := s.users().Doc(userID)
	friendRef := s.users().Doc(friendID)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Update(userRef, []firestore.Update{{Path: "friends", Value: firestore.ArrayRemove(friendID)}}); err != nil {
			return err
		}
		return tx.Update(friendRef, []firestore.Update{{Path: "friends", Value: firestore.ArrayRemove(userID)}})
	})
}
