package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pinify/pinify-backend/internal/config"
	"github.com/pinify/pinify-backend/internal/session"
	"github.com/pinify/pinify-backend/internal/utils"
	"github.com/pinify/pinify-backend/pkg/logger"
)

// SessionStore is what the auth middleware needs from persistence.
type SessionStore interface {
	session.UserLoader
	SessionActive(ctx context.Context, userID, sessionID string) (bool, error)
}

// AuthMiddleware verifies the access token, checks that its session has not
// been signed out and attaches a session for the signed-in user.
func AuthMiddleware(cfg *config.Config, store SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.SendUnauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			utils.SendUnauthorized(c, "Bearer token required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, cfg.JWTSecret)
		if err != nil || claims.Type != string(utils.AccessToken) || claims.SessionID == "" {
			utils.SendUnauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		active, err := store.SessionActive(c.Request.Context(), claims.UserID, claims.SessionID)
		if err != nil {
			logger.WithFields(logger.Fields{"user_id": claims.UserID}).WithError(err).Error("failed to check session")
			utils.SendError(c, http.StatusServiceUnavailable, "Service temporarily unavailable, please try again", nil)
			c.Abort()
			return
		}
		if !active {
			utils.SendUnauthorized(c, "Session has ended, please sign in again")
			c.Abort()
			return
		}

		session.Attach(c, session.New(claims.SessionID, claims.UserID, claims.Username, claims.Email, store))
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}
