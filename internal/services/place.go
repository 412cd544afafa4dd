package services

import (
	"context"
	"errors"
	"mime/multipart"

	"github.com/lib/pq"

	"github.com/pinify/pinify-backend/internal/metrics"
	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/repository"
	"github.com/pinify/pinify-backend/internal/rules"
	"github.com/pinify/pinify-backend/internal/utils"
	"github.com/pinify/pinify-backend/pkg/logger"
)

const maxPhotosPerUpload = 10

type PlaceService struct {
	store      repository.Store
	aggregator *RatingAggregator
	photos     PhotoStorage
}

// NewPlaceService accepts a nil photos storage; uploads then report
// unavailable.
func NewPlaceService(store repository.Store, aggregator *RatingAggregator, photos PhotoStorage) *PlaceService {
	return &PlaceService{store: store, aggregator: aggregator, photos: photos}
}

type AddPlaceResult struct {
	Place         *models.Place  `json:"place"`
	Created       bool           `json:"created"`
	ReviewCreated bool           `json:"review_created"`
	Review        *models.Review `json:"review,omitempty"`
}

type PlaceDetails struct {
	Place    *models.Place   `json:"place"`
	Reviews  []models.Review `json:"reviews"`
	MyReview *models.Review  `json:"my_review,omitempty"`
}

func validateAddPlace(req *models.AddPlaceRequest) error {
	if rules.NormalizePlaceName(req.Name) == "" {
		return validationError("place name is required")
	}
	if len(req.Categories) == 0 {
		return validationError("select at least one category")
	}
	for _, c := range req.Categories {
		if !utils.IsValidCategory(c) {
			return validationError("unknown category: " + c)
		}
	}
	if !rules.IsValidRating(req.Rating) {
		return validationError("rating must be between 1 and 5")
	}
	if req.Location == nil {
		return validationError("location is required")
	}
	if !utils.IsValidLocation(*req.Location) {
		return validationError("location is out of range")
	}
	return nil
}

// AddPlace resolves the submission against existing places, links it to the
// user and records their review. The steps are not atomic: a failure part way
// leaves the earlier writes in place.
func (s *PlaceService) AddPlace(ctx context.Context, userID, username string, req models.AddPlaceRequest) (*AddPlaceResult, error) {
	if err := validateAddPlace(&req); err != nil {
		return nil, err
	}

	candidate := rules.PlaceCandidate{
		Name:     rules.NormalizePlaceName(req.Name),
		City:     req.City,
		District: req.District,
		Location: *req.Location,
	}
	log := logger.WithFields(logger.Fields{"user_id": userID, "name": candidate.Name})

	existing, err := s.store.FindPlacesByIdentity(ctx, candidate.Name, candidate.City, candidate.District)
	if err != nil {
		return nil, externalError("failed to add place", err)
	}

	result := &AddPlaceResult{}
	if dup, ok := rules.ResolveDuplicate(candidate, existing); ok {
		result.Place = dup
		metrics.PlacesResolved.WithLabelValues("linked").Inc()
		log.WithField("place_id", dup.ID).Info("linked submission to existing place")
	} else {
		seed := rules.SeedAggregate(req.Rating)
		place := &models.Place{
			OwnerID:       userID,
			Name:          candidate.Name,
			City:          candidate.City,
			District:      candidate.District,
			Categories:    pq.StringArray(dedupeStrings(req.Categories)),
			GooglePlaceID: utils.SanitizeString(req.GooglePlaceID),
			Location:      candidate.Location,
			AvgRating:     seed.AvgRating,
			RatingCount:   seed.RatingCount,
		}
		if err := s.store.CreatePlace(ctx, place); err != nil {
			return nil, externalError("failed to add place", err)
		}
		result.Place = place
		result.Created = true
		metrics.PlacesResolved.WithLabelValues("created").Inc()
		log.WithField("place_id", place.ID).Info("created place")
	}
	placeID := result.Place.ID

	existingReview, err := s.store.FindUserReview(ctx, placeID, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, externalError("failed to add place", err)
	}

	rating := req.Rating
	if existingReview != nil {
		// keep the profile consistent with the review already on record
		rating = existingReview.Rating
	}
	if err := s.store.SetAddedPlaceRating(ctx, userID, placeID, rating, true); err != nil {
		return nil, externalError("failed to save place to your profile", err)
	}

	if existingReview != nil {
		result.Review = existingReview
		return result, nil
	}

	review := &models.Review{
		PlaceID:  placeID,
		UserID:   userID,
		Username: username,
		Rating:   req.Rating,
		Comment:  utils.SanitizeString(req.Comment),
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		return nil, externalError("failed to save your review", err)
	}
	result.Review = review
	result.ReviewCreated = true

	if agg, err := s.aggregator.Recompute(ctx, placeID); err != nil {
		metrics.RatingRecomputeFailures.Inc()
		log.WithField("place_id", placeID).WithError(err).Error("failed to recompute place rating")
	} else {
		result.Place.AvgRating = agg.AvgRating
		result.Place.RatingCount = agg.RatingCount
	}

	return result, nil
}

func (s *PlaceService) GetPlaceDetails(ctx context.Context, viewerID, placeID string) (*PlaceDetails, error) {
	place, err := s.store.GetPlace(ctx, placeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("place not found")
	}
	if err != nil {
		return nil, externalError("failed to load place", err)
	}

	reviews, err := s.store.ListReviews(ctx, placeID)
	if err != nil {
		return nil, externalError("failed to load reviews", err)
	}
	if reviews == nil {
		reviews = []models.Review{}
	}

	details := &PlaceDetails{Place: place, Reviews: reviews}
	for i := range reviews {
		if reviews[i].UserID == viewerID {
			details.MyReview = &reviews[i]
			break
		}
	}
	return details, nil
}

// ListMapPlaces returns the places shown on the map for viewer.
func (s *PlaceService) ListMapPlaces(ctx context.Context, viewer rules.Viewer, filter rules.MapFilter) ([]models.Place, error) {
	if filter.Owner == rules.OwnerFriends && !viewer.FriendsLoaded {
		return []models.Place{}, nil
	}

	places, err := s.store.ListPlaces(ctx)
	if err != nil {
		return nil, externalError("failed to load places", err)
	}
	return rules.FilterPlaces(places, filter, viewer), nil
}

// ListUserPlaces returns the places on a user's profile, most recently added
// first.
func (s *PlaceService) ListUserPlaces(ctx context.Context, username string, filter rules.ProfileFilter) ([]models.UserPlace, error) {
	user, err := s.store.GetUserByUsername(ctx, utils.NormalizeUsername(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, externalError("failed to load places", err)
	}

	added, err := s.store.ListAddedPlaces(ctx, user.ID)
	if err != nil {
		return nil, externalError("failed to load places", err)
	}
	if len(added) == 0 {
		return []models.UserPlace{}, nil
	}

	ids := make([]string, len(added))
	for i, ap := range added {
		ids[i] = ap.PlaceID
	}
	places, err := s.store.GetPlaces(ctx, ids)
	if err != nil {
		return nil, externalError("failed to load places", err)
	}
	byID := make(map[string]models.Place, len(places))
	for _, p := range places {
		byID[p.ID] = p
	}

	out := make([]models.UserPlace, 0, len(added))
	for _, ap := range added {
		place, ok := byID[ap.PlaceID]
		if !ok {
			continue
		}
		out = append(out, models.UserPlace{Place: place, UserRating: ap.Rating, AddedAt: ap.AddedAt})
	}
	return rules.FilterUserPlaces(out, filter), nil
}

// RemoveAddedPlace takes a place off the user's profile. The shared place and
// the user's review are left alone.
func (s *PlaceService) RemoveAddedPlace(ctx context.Context, userID, placeID string) error {
	err := s.store.DeleteAddedPlace(ctx, userID, placeID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundError("place is not on your profile")
	}
	if err != nil {
		return externalError("failed to remove place", err)
	}
	return nil
}

func (s *PlaceService) UploadPhotos(ctx context.Context, userID, placeID string, files []*multipart.FileHeader) ([]models.PlacePhoto, error) {
	if s.photos == nil {
		return nil, unavailableError("photo uploads are not configured")
	}
	if len(files) == 0 {
		return nil, validationError("no photos provided")
	}
	if len(files) > maxPhotosPerUpload {
		return nil, validationError("too many photos in one upload")
	}

	if _, err := s.store.GetPlace(ctx, placeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundError("place not found")
		}
		return nil, externalError("failed to load place", err)
	}

	results, err := s.photos.UploadPlacePhotos(placeID, files)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "failed to upload photos", Err: err}
	}

	photos := make([]models.PlacePhoto, len(results))
	keys := make([]string, len(results))
	for i, r := range results {
		photos[i] = models.PlacePhoto{
			PlaceID:     placeID,
			UploadedBy:  userID,
			FileName:    r.FileName,
			S3Key:       r.Key,
			S3URL:       r.URL,
			ContentType: r.ContentType,
			Size:        r.Size,
		}
		keys[i] = r.Key
	}

	if err := s.store.AddPlacePhotos(ctx, photos); err != nil {
		if delErr := s.photos.DeleteObjects(keys); delErr != nil {
			logger.WithFields(logger.Fields{"place_id": placeID}).WithError(delErr).Warn("failed to clean up uploaded photos")
		}
		return nil, externalError("failed to save photos", err)
	}
	return photos, nil
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
