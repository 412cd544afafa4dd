package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/services"
	"github.com/pinify/pinify-backend/internal/utils"
)

type FriendHandler struct {
	friendService *services.FriendService
}

func NewFriendHandler(friendService *services.FriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var req models.SendFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request data")
		return
	}

	fr, err := h.friendService.SendRequest(c.Request.Context(), sess.UserID, req)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendCreated(c, "Friend request sent", fr)
}

func (h *FriendHandler) IncomingRequests(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	reqs, err := h.friendService.IncomingRequests(c.Request.Context(), sess.UserID)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Friend requests retrieved successfully", reqs)
}

func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	if err := h.friendService.AcceptRequest(c.Request.Context(), sess.UserID, c.Param("request_id")); err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Friend request accepted", nil)
}

func (h *FriendHandler) RejectRequest(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	if err := h.friendService.RejectRequest(c.Request.Context(), sess.UserID, c.Param("request_id")); err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Friend request rejected", nil)
}

func (h *FriendHandler) RemoveFriend(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	if err := h.friendService.RemoveFriend(c.Request.Context(), sess.UserID, c.Param("friend_id")); err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Friend removed", nil)
}

func (h *FriendHandler) ListFriends(c *gin.Context) {
	friends, err := h.friendService.ListFriends(c.Request.Context(), c.Param("username"))
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Friends retrieved successfully", friends)
}

func (h *FriendHandler) Relationship(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	rel, err := h.friendService.Relationship(c.Request.Context(), sess.UserID, c.Param("username"))
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Relationship retrieved successfully", rel)
}

func (h *FriendHandler) GetProfile(c *gin.Context) {
	profile, err := h.friendService.GetProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Profile retrieved successfully", profile)
}
