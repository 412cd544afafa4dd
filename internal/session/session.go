// Package session carries the signed-in user through a single request.
//
// A Session is built by the auth middleware from a verified access token whose
// session is still live in the store, and lives in the gin context. The
// viewer's friend set is read lazily, at most once per request; if that read
// fails the session reports it as not loaded and friend-scoped views show
// nothing. Signing out revokes the session in the store, so later requests
// never get this far.
package session

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/pinify/pinify-backend/internal/models"
	"github.com/pinify/pinify-backend/internal/rules"
	"github.com/pinify/pinify-backend/pkg/logger"
)

const contextKey = "session"

// UserLoader is the part of the store a session reads from.
type UserLoader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type Session struct {
	ID       string
	UserID   string
	Username string
	Email    string

	users UserLoader

	once    sync.Once
	friends []string
	loaded  bool
}

func New(id, userID, username, email string, users UserLoader) *Session {
	return &Session{
		ID:       id,
		UserID:   userID,
		Username: username,
		Email:    email,
		users:    users,
	}
}

// Friends returns the viewer's friend ids and whether they could be read.
func (s *Session) Friends(ctx context.Context) ([]string, bool) {
	s.once.Do(func() {
		if s.users == nil {
			return
		}
		user, err := s.users.GetUser(ctx, s.UserID)
		if err != nil {
			logger.WithFields(logger.Fields{"user_id": s.UserID}).WithError(err).Warn("failed to load friend set")
			return
		}
		s.friends = append([]string{}, user.Friends...)
		s.loaded = true
	})
	return s.friends, s.loaded
}

// Viewer is the session as the visibility rules see it.
func (s *Session) Viewer(ctx context.Context) rules.Viewer {
	friends, loaded := s.Friends(ctx)
	return rules.Viewer{ID: s.UserID, Friends: friends, FriendsLoaded: loaded}
}

func Attach(c *gin.Context, s *Session) {
	c.Set(contextKey, s)
}

// From returns the session attached by the auth middleware.
func From(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	if !ok {
		return nil, false
	}
	return s, true
}
