package handlers

import (
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/rules"
	"github.com/pinify/pinify-backend/internal/services"
	"github.com/pinify/pinify-backend/internal/utils"
)

type PlaceHandler struct {
	placeService *services.PlaceService
}

func NewPlaceHandler(placeService *services.PlaceService) *PlaceHandler {
	return &PlaceHandler{placeService: placeService}
}

func (h *PlaceHandler) AddPlace(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var req models.AddPlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request data")
		return
	}

	result, err := h.placeService.AddPlace(c.Request.Context(), sess.UserID, sess.Username, req)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	if result.Created {
		utils.SendCreated(c, "Place added successfully", result)
		return
	}
	utils.SendSuccess(c, "Place already exists, added to your places", result)
}

func (h *PlaceHandler) GetPlace(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	details, err := h.placeService.GetPlaceDetails(c.Request.Context(), sess.UserID, c.Param("place_id"))
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Place retrieved successfully", details)
}

func (h *PlaceHandler) ListPlaces(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	owner, valid := rules.ParseOwnerFilter(c.Query("owner"))
	if !valid {
		utils.SendValidationError(c, "owner must be one of all, my, friends")
		return
	}
	filter := rules.MapFilter{
		City:       c.Query("city"),
		District:   c.Query("district"),
		Categories: c.QueryArray("category"),
		Owner:      owner,
	}

	viewer := rules.Viewer{ID: sess.UserID}
	if owner == rules.OwnerFriends {
		viewer = sess.Viewer(c.Request.Context())
	}

	places, err := h.placeService.ListMapPlaces(c.Request.Context(), viewer, filter)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Places retrieved successfully", gin.H{
		"places":         places,
		"count":          len(places),
		"friends_loaded": viewer.FriendsLoaded,
	})
}

func (h *PlaceHandler) ListUserPlaces(c *gin.Context) {
	filter := rules.ProfileFilter{
		City:     c.Query("city"),
		District: c.Query("district"),
		Category: c.Query("category"),
	}
	if raw := c.Query("min_rating"); raw != "" {
		minRating, err := strconv.Atoi(raw)
		if err != nil || minRating < 0 || minRating > rules.MaxRating {
			utils.SendValidationError(c, "min_rating must be between 0 and 5")
			return
		}
		filter.MinRating = minRating
	}

	places, err := h.placeService.ListUserPlaces(c.Request.Context(), c.Param("username"), filter)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Places retrieved successfully", gin.H{
		"places": places,
		"count":  len(places),
	})
}

func (h *PlaceHandler) RemoveMyPlace(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	if err := h.placeService.RemoveAddedPlace(c.Request.Context(), sess.UserID, c.Param("place_id")); err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Place removed from your profile", nil)
}

func (h *PlaceHandler) UploadPhotos(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["photos"]
	}

	photos, err := h.placeService.UploadPhotos(c.Request.Context(), sess.UserID, c.Param("place_id"), files)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendCreated(c, "Photos uploaded successfully", photos)
}
