package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/repository"
	"github.com/pinify/pinify-backend/internal/types"
	"github.com/pinify/pinify-backend/internal/utils"
	"github.com/pinify/pinify-backend/pkg/logger"
)

type AuthService struct {
	store             repository.Store
	jwtSecret         string
	validationService *ValidationService
	notifier          Notifier
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	AllSessions  bool   `json:"all_sessions"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// NewAuthService accepts nil for validationService and notifier.
func NewAuthService(store repository.Store, jwtSecret string, validationService *ValidationService, notifier Notifier) *AuthService {
	return &AuthService{
		store:             store,
		jwtSecret:         jwtSecret,
		validationService: validationService,
		notifier:          notifier,
	}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*types.AuthResponse, error) {
	username := req.Username
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !utils.IsValidUsername(username) {
		return nil, validationError("username must be lowercase and contain no spaces")
	}
	if !utils.IsValidEmail(email) {
		return nil, validationError("invalid email format")
	}
	if !utils.IsValidPassword(req.Password) {
		return nil, validationError("password must be at least 8 characters and contain a letter and a digit")
	}

	if s.validationService != nil {
		ok, err := s.validationService.IsEmailValid(email)
		if err != nil {
			logger.WithError(err).Warn("email validation service unavailable, skipping deliverability check")
		} else if !ok {
			return nil, validationError("email address is not valid or deliverable")
		}
	}

	// check-then-write, two concurrent sign-ups can still race
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, validationError("username is already taken")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, externalError("failed to create user", err)
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, validationError("email is already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, externalError("failed to create user", err)
	}

	user := &models.User{
		Username:    username,
		DisplayName: username,
		Email:       email,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, externalError("failed to create user", err)
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, externalError("failed to create user", err)
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		notify("welcome", user.Email, func() error {
			return s.notifier.SendWelcomeEmail(user.Email, user.Username)
		})
	}

	logger.WithFields(logger.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return resp, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*types.AuthResponse, error) {
	username := utils.NormalizeUsername(req.Username)

	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, externalError("failed to sign in", err)
	}

	if !user.CheckPassword(req.Password) {
		return nil, unauthorizedError("invalid credentials")
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*types.AuthResponse, error) {
	claims, err := utils.ValidateToken(refreshToken, s.jwtSecret)
	if err != nil || claims.Type != string(utils.RefreshToken) {
		return nil, unauthorizedError("invalid refresh token")
	}

	stored, err := s.store.GetActiveRefreshToken(ctx, refreshToken)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, unauthorizedError("refresh token is revoked or expired")
	}
	if err != nil {
		return nil, externalError("failed to refresh token", err)
	}

	user, err := s.store.GetUser(ctx, stored.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, unauthorizedError("user no longer exists")
	}
	if err != nil {
		return nil, externalError("failed to refresh token", err)
	}

	sessionID := stored.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	pair, err := utils.GenerateTokenPair(user.ID, user.Username, user.Email, sessionID, s.jwtSecret)
	if err != nil {
		return nil, externalError("failed to generate tokens", err)
	}

	next := &models.RefreshToken{
		UserID:    user.ID,
		SessionID: sessionID,
		Token:     pair.RefreshToken,
		ExpiresAt: time.Unix(pair.RefreshTokenExpiresAt, 0),
	}
	if err := s.store.RotateRefreshToken(ctx, stored, next); err != nil {
		return nil, externalError("failed to store refresh token", err)
	}

	return authResponse(pair, user), nil
}

// Logout ends the session the access token belongs to. Access tokens of an
// ended session are refused by the auth middleware. AllSessions signs the
// user out everywhere.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string, req LogoutRequest) error {
	if req.AllSessions {
		if err := s.store.RevokeUserTokens(ctx, userID); err != nil {
			return externalError("failed to sign out", err)
		}
		return nil
	}

	if err := s.store.RevokeSession(ctx, userID, sessionID); err != nil {
		return externalError("failed to sign out", err)
	}
	if req.RefreshToken != "" {
		if err := s.store.RevokeRefreshToken(ctx, userID, req.RefreshToken); err != nil {
			return externalError("failed to sign out", err)
		}
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("user not found")
	}
	if err != nil {
		return nil, externalError("failed to load profile", err)
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}

	if !user.CheckPassword(req.CurrentPassword) {
		return validationError("current password is incorrect")
	}
	if !utils.IsValidPassword(req.NewPassword) {
		return validationError("password must be at least 8 characters and contain a letter and a digit")
	}
	if user.CheckPassword(req.NewPassword) {
		return validationError("new password must be different from the current one")
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		return externalError("failed to update password", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, user.ID, user.PasswordHash); err != nil {
		return externalError("failed to update password", err)
	}

	// Every session, this one included, has to sign in again.
	if err := s.store.RevokeUserTokens(ctx, user.ID); err != nil {
		logger.WithFields(logger.Fields{"user_id": user.ID}).WithError(err).Warn("failed to revoke tokens after password change")
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*types.AuthResponse, error) {
	sessionID := uuid.NewString()
	pair, err := utils.GenerateTokenPair(user.ID, user.Username, user.Email, sessionID, s.jwtSecret)
	if err != nil {
		return nil, externalError("failed to generate tokens", err)
	}

	refreshToken := &models.RefreshToken{
		UserID:    user.ID,
		SessionID: sessionID,
		Token:     pair.RefreshToken,
		ExpiresAt: time.Unix(pair.RefreshTokenExpiresAt, 0),
	}
	if err := s.store.StoreRefreshToken(ctx, refreshToken); err != nil {
		return nil, externalError("failed to store refresh token", err)
	}

	return authResponse(pair, user), nil
}

func authResponse(pair *utils.TokenPair, user *models.User) *types.AuthResponse {
	return &types.AuthResponse{
		Token: types.TokenPair{
			AccessToken:           pair.AccessToken,
			RefreshToken:          pair.RefreshToken,
			AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
			RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
		},
		User: *user,
	}
}
