package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/pinify/pinify-backend/internal/models"
)

type countingLoader struct {
	calls int
	err   error
}

func (l *countingLoader) GetUser(_ context.Context, id string) (*models.User, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return &models.User{ID: id, Friends: pq.StringArray{"bob"}}, nil
}

func TestFriendsLoadedOnce(t *testing.T) {
	loader := &countingLoader{}
	s := New("s1", "alice", "alice", "alice@example.com", loader)

	friends, ok := s.Friends(context.Background())
	assert.True(t, ok)
	assert.Equal(t, []string{"bob"}, friends)

	s.Friends(context.Background())
	assert.Equal(t, 1, loader.calls)

	v := s.Viewer(context.Background())
	assert.True(t, v.FriendsLoaded)
	assert.Equal(t, "alice", v.ID)
}

func TestFriendsFailClosed(t *testing.T) {
	s := New("s1", "alice", "alice", "", &countingLoader{err: errors.New("unavailable")})

	friends, ok := s.Friends(context.Background())
	assert.False(t, ok)
	assert.Empty(t, friends)
	assert.False(t, s.Viewer(context.Background()).FriendsLoaded)
}

func TestAttach(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := From(c)
	assert.False(t, ok)

	s := New("s1", "alice", "alice", "", &countingLoader{})
	Attach(c, s)
	got, ok := From(c)
	assert.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, "s1", got.ID)

	c.Set(contextKey, "not a session")
	_, ok = From(c)
	assert.False(t, ok)
}
