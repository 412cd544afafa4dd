package repository

import (
	"context"
	"errors"

	"github.com/pinify/pinify-backend/internal/models"
)

// ErrNotFound is returned when a record cannot be located.
var ErrNotFound = errors.New("record not found")

// UserRepository stores user profiles.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUsers(ctx context.Context, ids []string) ([]models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// TokenRepository stores refresh tokens.
type TokenRepository interface {
	StoreRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// GetActiveRefreshToken only returns tokens that are neither revoked nor expired.
	GetActiveRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	// RotateRefreshToken revokes old and stores next in one write.
	RotateRefreshToken(ctx context.Context, old, next *models.RefreshToken) error
	// RevokeRefreshToken only touches the token when it belongs to userID.
	RevokeRefreshToken(ctx context.Context, userID, token string) error
	// RevokeSession revokes every refresh token issued under sessionID.
	RevokeSession(ctx context.Context, userID, sessionID string) error
	RevokeUserTokens(ctx context.Context, userID string) error
	// SessionActive reports whether sessionID still holds a live refresh token.
	SessionActive(ctx context.Context, userID, sessionID string) (bool, error)
}

// PlaceRepository stores shared places.
type PlaceRepository interface {
	CreatePlace(ctx context.Context, place *models.Place) error
	GetPlace(ctx context.Context, id string) (*models.Place, error)
	GetPlaces(ctx context.Context, ids []string) ([]models.Place, error)
	ListPlaces(ctx context.Context) ([]models.Place, error)
	// FindPlacesByIdentity is an equality-only query on name, city and
	// district, oldest first.
	FindPlacesByIdentity(ctx context.Context, name, city, district string) ([]models.Place, error)
	UpdatePlaceRating(ctx context.Context, id string, avgRating float64, ratingCount int) error
	AddPlacePhotos(ctx context.Context, photos []models.PlacePhoto) error
	ListPlacePhotos(ctx context.Context, placeID string) ([]models.PlacePhoto, error)
}

// ReviewRepository stores reviews. Reviews are always addressed through
// their place.
type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, placeID, reviewID string) (*models.Review, error)
	FindUserReview(ctx context.Context, placeID, userID string) (*models.Review, error)
	ListReviews(ctx context.Context, placeID string) ([]models.Review, error)
	UpdateReview(ctx context.Context, review *models.Review) error
	DeleteReview(ctx context.Context, placeID, reviewID string) error
}

// AddedPlaceRepository stores the per-user place links.
type AddedPlaceRepository interface {
	// SetAddedPlaceRating creates the link if needed and sets the rating.
	// touch also refreshes AddedAt.
	SetAddedPlaceRating(ctx context.Context, userID, placeID string, rating int, touch bool) error
	// ClearAddedPlaceRating removes the rating but keeps the link. Missing
	// links are left alone.
	ClearAddedPlaceRating(ctx context.Context, userID, placeID string) error
	ListAddedPlaces(ctx context.Context, userID string) ([]models.AddedPlace, error)
	DeleteAddedPlace(ctx context.Context, userID, placeID string) error
}

// FriendRepository stores friend requests and applies friendship changes.
type FriendRepository interface {
	CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error
	GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error)
	// FindPendingRequest returns ErrNotFound when there is no pending request
	// from sender to receiver.
	FindPendingRequest(ctx context.Context, senderID, receiverID string) (*models.FriendRequest, error)
	ListPendingRequestsFor(ctx context.Context, receiverID string) ([]models.FriendRequest, error)
	RejectFriendRequest(ctx context.Context, id string) error
	// AcceptFriendRequest marks the request accepted and adds each user to the
	// other's friends in a single atomic write.
	AcceptFriendRequest(ctx context.Context, req *models.FriendRequest) error
	// RemoveFriendship drops each user from the other's friends atomically.
	RemoveFriendship(ctx context.Context, userID, friendID string) error
}

// Store is everything the services need from persistence.
type Store interface {
	UserRepository
	TokenRepository
	PlaceRepository
	ReviewRepository
	AddedPlaceRepository
	FriendRepository
	Close() error
}
