package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pinify/pinify-backend/internal/services"
	"github.com/pinify/pinify-backend/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request data")
		return
	}

	response, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendCreated(c, "User created successfully", response)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request data")
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Login successful", response)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req services.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request data")
		return
	}

	response, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Token refreshed successfully", response)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var req services.LogoutRequest
	// body is optional; without one only the current session ends
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.Logout(c.Request.Context(), sess.UserID, sess.ID, req); err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Logged out successfully", nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	user, err := h.authService.Me(c.Request.Context(), sess.UserID)
	if err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Profile retrieved successfully", user)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request data")
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), sess.UserID, req); err != nil {
		sendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, "Password changed successfully", nil)
}
