package services

import (
	"context"
	"errors"

	"github.com/pinify/pinify-backend/internal/metrics"
	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/repository"
	"github.com/pinify/pinify-backend/internal/rules"
	"github.com/pinify/pinify-backend/internal/utils"
	"github.com/pinify/pinify-backend/pkg/logger"
)

// RatingAggregator re-derives a place's aggregate from its full review set.
type RatingAggregator struct {
	places  repository.PlaceRepository
	reviews repository.ReviewRepository
}

func NewRatingAggregator(store repository.Store) *RatingAggregator {
	return &RatingAggregator{places: store, reviews: store}
}

func (a *RatingAggregator) Recompute(ctx context.Context, placeID string) (rules.Aggregate, error) {
	reviews, err := a.reviews.ListReviews(ctx, placeID)
	if err != nil {
		return rules.Aggregate{}, err
	}
	agg := rules.AggregateRatings(reviews)
	if err := a.places.UpdatePlaceRating(ctx, placeID, agg.AvgRating, agg.RatingCount); err != nil {
		return rules.Aggregate{}, err
	}
	return agg, nil
}

// RecomputeAfterMutation never fails the review write that triggered it.
func (a *RatingAggregator) RecomputeAfterMutation(ctx context.Context, placeID string) {
	if _, err := a.Recompute(ctx, placeID); err != nil {
		metrics.RatingRecomputeFailures.Inc()
		logger.WithFields(logger.Fields{"place_id": placeID}).WithError(err).Error("failed to recompute place rating")
	}
}

type ReviewService struct {
	store      repository.Store
	aggregator *RatingAggregator
}

func NewReviewService(store repository.Store, aggregator *RatingAggregator) *ReviewService {
	return &ReviewService{store: store, aggregator: aggregator}
}

func (s *ReviewService) loadPlace(ctx context.Context, placeID string) (*models.Place, error) {
	place, err := s.store.GetPlace(ctx, placeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("place not found")
	}
	if err != nil {
		return nil, externalError("failed to load place", err)
	}
	return place, nil
}

func (s *ReviewService) CreateReview(ctx context.Context, userID, username, placeID string, req models.CreateReviewRequest) (*models.Review, error) {
	if !rules.IsValidRating(req.Rating) {
		return nil, validationError("rating must be between 1 and 5")
	}

	if _, err := s.loadPlace(ctx, placeID); err != nil {
		return nil, err
	}

	if _, err := s.store.FindUserReview(ctx, placeID, userID); err == nil {
		return nil, validationError("you have already reviewed this place")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, externalError("failed to create review", err)
	}

	review := &models.Review{
		PlaceID:  placeID,
		UserID:   userID,
		Username: username,
		Rating:   req.Rating,
		Comment:  utils.SanitizeString(req.Comment),
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		return nil, externalError("failed to create review", err)
	}

	s.syncAddedPlace(ctx, userID, placeID, review.Rating, true)
	s.aggregator.RecomputeAfterMutation(ctx, placeID)

	return review, nil
}

func (s *ReviewService) authorReview(ctx context.Context, userID, placeID, reviewID string) (*models.Review, error) {
	review, err := s.store.GetReview(ctx, placeID, reviewID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("review not found")
	}
	if err != nil {
		return nil, externalError("failed to load review", err)
	}
	if review.UserID != userID {
		return nil, forbiddenError("you can only change your own review")
	}
	return review, nil
}

func (s *ReviewService) UpdateReview(ctx context.Context, userID, placeID, reviewID string, req models.UpdateReviewRequest) (*models.Review, error) {
	if !rules.IsValidRating(req.Rating) {
		return nil, validationError("rating must be between 1 and 5")
	}

	review, err := s.authorReview(ctx, userID, placeID, reviewID)
	if err != nil {
		return nil, err
	}

	review.Rating = req.Rating
	review.Comment = utils.SanitizeString(req.Comment)
	if err := s.store.UpdateReview(ctx, review); err != nil {
		return nil, externalError("failed to update review", err)
	}

	s.syncAddedPlace(ctx, userID, placeID, review.Rating, false)
	s.aggregator.RecomputeAfterMutation(ctx, placeID)

	return review, nil
}

func (s *ReviewService) DeleteReview(ctx context.Context, userID, placeID, reviewID string) error {
	if _, err := s.authorReview(ctx, userID, placeID, reviewID); err != nil {
		return err
	}

	if err := s.store.DeleteReview(ctx, placeID, reviewID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("review not found")
		}
		return externalError("failed to delete review", err)
	}

	if err := s.store.ClearAddedPlaceRating(ctx, userID, placeID); err != nil {
		logger.WithFields(logger.Fields{"user_id": userID, "place_id": placeID}).WithError(err).Warn("failed to clear added place rating")
	}
	s.aggregator.RecomputeAfterMutation(ctx, placeID)

	return nil
}

func (s *ReviewService) ListReviews(ctx context.Context, placeID string) ([]models.Review, error) {
	if _, err := s.loadPlace(ctx, placeID); err != nil {
		return nil, err
	}
	reviews, err := s.store.ListReviews(ctx, placeID)
	if err != nil {
		return nil, externalError("failed to load reviews", err)
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}

// syncAddedPlace mirrors the user's review rating onto their AddedPlace.
func (s *ReviewService) syncAddedPlace(ctx context.Context, userID, placeID string, rating int, touch bool) {
	if err := s.store.SetAddedPlaceRating(ctx, userID, placeID, rating, touch); err != nil {
		logger.WithFields(logger.Fields{"user_id": userID, "place_id": placeID}).WithError(err).Warn("failed to sync added place rating")
	}
}
