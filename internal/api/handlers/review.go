package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/services"
	"github.com/pinify/pinify-backend/internal/utils"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

func (h *ReviewHandler) CreateReview(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request data")
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), sess.UserID, sess.Username, c.Param("place_id"), req)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendCreated(c, "Review created successfully", review)
}

func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var req models.UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request data")
		return
	}

	review, err := h.reviewService.UpdateReview(c.Request.Context(), sess.UserID, c.Param("place_id"), c.Param("review_id"), req)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Review updated successfully", review)
}

func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	if err := h.reviewService.DeleteReview(c.Request.Context(), sess.UserID, c.Param("place_id"), c.Param("review_id")); err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Review deleted successfully", nil)
}

func (h *ReviewHandler) ListReviews(c *gin.Context) {
	reviews, err := h.reviewService.ListReviews(c.Request.Context(), c.Param("place_id"))
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Reviews retrieved successfully", reviews)
}
