package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pinify/pinify-backend/internal/models"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		panic("database connection cannot be nil")
	}
	return &GormStore{db: db}
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Users

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	users := make([]models.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *GormStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh tokens

func (s *GormStore) StoreRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *GormStore) GetActiveRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := s.db.WithContext(ctx).
		Where("token = ? AND is_revoked = ? AND expires_at > ?", token, false, time.Now()).
		First(&rt).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

func (s *GormStore) RotateRefreshToken(ctx context.Context, old, next *models.RefreshToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RefreshToken{}).Where("id = ?", old.ID).Update("is_revoked", true).Error; err != nil {
			return fmt.Errorf("revoke old token: %w", err)
		}
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("store new token: %w", err)
		}
		return nil
	})
}

func (s *GormStore) RevokeRefreshToken(ctx context.Context, userID, token string) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND user_id = ?", token, userID).
		Update("is_revoked", true).Error
}

func (s *GormStore) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Update("is_revoked", true).Error
}

func (s *GormStore) SessionActive(ctx context.Context, userID, sessionID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("session_id = ? AND user_id = ? AND is_revoked = ? AND expires_at > ?", sessionID, userID, false, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) RevokeUserTokens(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ?", userID).
		Update("is_revoked", true).Error
}

// Places

func (s *GormStore) CreatePlace(ctx context.Context, place *models.Place) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(place).Error
}

func (s *GormStore) GetPlace(ctx context.Context, id string) (*models.Place, error) {
	var place models.Place
	if err := s.db.WithContext(ctx).Preload("Photos").Where("id = ?", id).First(&place).Error; err != nil {
		return nil, notFound(err)
	}
	return &place, nil
}

func (s *GormStore) GetPlaces(ctx context.Context, ids []string) ([]models.Place, error) {
	places := make([]models.Place, 0, len(ids))
	if len(ids) == 0 {
		return places, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&places).Error; err != nil {
		return nil, err
	}
	return places, nil
}

func (s *GormStore) ListPlaces(ctx context.Context) ([]models.Place, error) {
	var places []models.Place
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&places).Error; err != nil {
		return nil, err
	}
	return places, nil
}

func (s *GormStore) FindPlacesByIdentity(ctx context.Context, name, city, district string) ([]models.Place, error) {
	var places []models.Place
	err := s.db.WithContext(ctx).
		Where("name = ? AND city = ? AND district = ?", name, city, district).
		Order("created_at ASC").
		Find(&places).Error
	if err != nil {
		return nil, err
	}
	return places, nil
}

func (s *GormStore) UpdatePlaceRating(ctx context.Context, id string, avgRating float64, ratingCount int) error {
	res := s.db.WithContext(ctx).Model(&models.Place{}).Where("id = ?", id).Updates(map[string]interface{}{
		"avg_rating":   avgRating,
		"rating_count": ratingCount,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AddPlacePhotos(ctx context.Context, photos []models.PlacePhoto) error {
	if len(photos) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&photos).Error
}

func (s *GormStore) ListPlacePhotos(ctx context.Context, placeID string) ([]models.PlacePhoto, error) {
	var photos []models.PlacePhoto
	if err := s.db.WithContext(ctx).Where("place_id = ?", placeID).Order("created_at ASC").Find(&photos).Error; err != nil {
		return nil, err
	}
	return photos, nil
}

// Reviews

func (s *GormStore) CreateReview(ctx context.Context, review *models.Review) error {
	return s.db.WithContext(ctx).Create(review).Error
}

func (s *GormStore) GetReview(ctx context.Context, placeID, reviewID string) (*models.Review, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).Where("id = ? AND place_id = ?", reviewID, placeID).First(&review).Error; err != nil {
		return nil, notFound(err)
	}
	return &review, nil
}

func (s *GormStore) FindUserReview(ctx context.Context, placeID, userID string) (*models.Review, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).Where("place_id = ? AND user_id = ?", placeID, userID).First(&review).Error; err != nil {
		return nil, notFound(err)
	}
	return &review, nil
}

func (s *GormStore) ListReviews(ctx context.Context, placeID string) ([]models.Review, error) {
	var reviews []models.Review
	if err := s.db.WithContext(ctx).Where("place_id = ?", placeID).Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *GormStore) UpdateReview(ctx context.Context, review *models.Review) error {
	res := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("id = ? AND place_id = ?", review.ID, review.PlaceID).
		Updates(map[string]interface{}{
			"rating":  review.Rating,
			"comment": review.Comment,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteReview(ctx context.Context, placeID, reviewID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND place_id = ?", reviewID, placeID).Delete(&models.Review{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Added places

func (s *GormStore) SetAddedPlaceRating(ctx context.Context, userID, placeID string, rating int, touch bool) error {
	ap := models.AddedPlace{UserID: userID, PlaceID: placeID, Rating: &rating, AddedAt: time.Now()}
	updates := []string{"rating"}
	if touch {
		updates = append(updates, "added_at")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "place_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&ap).Error
}

func (s *GormStore) ClearAddedPlaceRating(ctx context.Context, userID, placeID string) error {
	return s.db.WithContext(ctx).Model(&models.AddedPlace{}).
		Where("user_id = ? AND place_id = ?", userID, placeID).
		Update("rating", gorm.Expr("NULL")).Error
}

func (s *GormStore) ListAddedPlaces(ctx context.Context, userID string) ([]models.AddedPlace, error) {
	var added []models.AddedPlace
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("added_at DESC").Find(&added).Error; err != nil {
		return nil, err
	}
	return added, nil
}

func (s *GormStore) DeleteAddedPlace(ctx context.Context, userID, placeID string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND place_id = ?", userID, placeID).Delete(&models.AddedPlace{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Friends

func (s *GormStore) CreateFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	return s.db.WithContext(ctx).Create(req).Error
}

func (s *GormStore) GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func (s *GormStore) FindPendingRequest(ctx context.Context, senderID, receiverID string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := s.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiverID, models.FriendRequestPending).
		First(&req).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func (s *GormStore) ListPendingRequestsFor(ctx context.Context, receiverID string) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := s.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", receiverID, models.FriendRequestPending).
		Order("created_at ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (s *GormStore) RejectFriendRequest(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.FriendRequest{}).Where("id = ?", id).Update("status", models.FriendRequestRejected)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// addFriendExpr appends id to the friends array unless it is already there.
func addFriendExpr(id string) clause.Expr {
	return gorm.Expr("array_append(array_remove(COALESCE(friends, '{}'), ?::text), ?::text)", id, id)
}

func removeFriendExpr(id string) clause.Expr {
	return gorm.Expr("array_remove(COALESCE(friends, '{}'), ?::text)", id)
}

func (s *GormStore) AcceptFriendRequest(ctx context.Context, req *models.FriendRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FriendRequest{}).Where("id = ?", req.ID).
			Update("status", models.FriendRequestAccepted).Error; err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", req.ReceiverID).
			Update("friends", addFriendExpr(req.SenderID)).Error; err != nil {
			return fmt.Errorf("update receiver: %w", err)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", req.SenderID).
			Update("friends", addFriendExpr(req.ReceiverID)).Error; err != nil {
			return fmt.Errorf("update sender: %w", err)
		}
		return nil
	})
}

func (s *GormStore) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("friends", removeFriendExpr(friendID)).Error; err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", friendID).
			Update("friends", removeFriendExpr(userID)).Error; err != nil {
			return fmt.Errorf("update friend: %w", err)
		}
		return nil
	})
}
