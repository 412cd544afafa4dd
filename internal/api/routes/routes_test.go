package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinify/pinify-backend/internal/config"
	"github.com/pinify/pinify-backend/internal/repository"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Environment:        "test",
		JWTSecret:          "test-secret",
		RateLimitRPS:       1000,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
	router := gin.New()
	SetupRoutes(router, repository.NewInMemoryStore(), cfg)
	return router
}

func call(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

type signedIn struct {
	ID      string
	Token   string
	Refresh string
}

func signedInFrom(t *testing.T, env envelope) signedIn {
	t.Helper()
	var data struct {
		Token struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"token"`
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return signedIn{ID: data.User.ID, Token: data.Token.AccessToken, Refresh: data.Token.RefreshToken}
}

func register(t *testing.T, router *gin.Engine, username string) signedIn {
	t.Helper()
	w, env := call(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return signedInFrom(t, env)
}

func login(t *testing.T, router *gin.Engine, username string) signedIn {
	t.Helper()
	w, env := call(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": username,
		"password": "password1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return signedInFrom(t, env)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	w, _ := call(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	w, env := call(t, router, http.MethodGet, "/api/v1/places", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)

	w, _ = call(t, router, http.MethodGet, "/api/v1/places", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownUser(t *testing.T) {
	router := newTestRouter(t)

	w, env := call(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "ghost", "password": "password1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user not found", env.Message)
}

func TestPlaceAndFriendFlow(t *testing.T) {
	router := newTestRouter(t)
	ayse := register(t, router, "ayse")
	burak := register(t, router, "burak")

	w, env := call(t, router, http.MethodPost, "/api/v1/places", ayse.Token, gin.H{
		"name":       "Cafe X",
		"city":       "Istanbul",
		"district":   "Fatih",
		"categories": []string{"Coffee"},
		"location":   gin.H{"lat": 41.0082, "lng": 28.9784},
		"rating":     4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var added struct {
		Place struct {
			ID string `json:"id"`
		} `json:"place"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &added))

	w, env = call(t, router, http.MethodPost, "/api/v1/places", burak.Token, gin.H{
		"name":       " Cafe X ",
		"city":       "Istanbul",
		"district":   "Fatih",
		"categories": []string{"Coffee"},
		"location":   gin.H{"lat": 41.0083, "lng": 28.9785},
		"rating":     2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = call(t, router, http.MethodGet, "/api/v1/places/"+added.Place.ID, ayse.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var details struct {
		Place struct {
			AvgRating   float64 `json:"avg_rating"`
			RatingCount int     `json:"rating_count"`
		} `json:"place"`
		Reviews []json.RawMessage `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &details))
	assert.Equal(t, 3.0, details.Place.AvgRating)
	assert.Equal(t, 2, details.Place.RatingCount)
	assert.Len(t, details.Reviews, 2)

	// friends filter shows nothing before the friendship exists
	w, env = call(t, router, http.MethodGet, "/api/v1/places?owner=friends", burak.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Equal(t, 0, listed.Count)

	w, env = call(t, router, http.MethodPost, "/api/v1/friends/requests", ayse.Token, gin.H{"username": "ayse"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "you cannot add yourself", env.Message)

	w, env = call(t, router, http.MethodPost, "/api/v1/friends/requests", ayse.Token, gin.H{"username": "burak"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var fr struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fr))

	w, _ = call(t, router, http.MethodPost, "/api/v1/friends/requests/"+fr.ID+"/accept", ayse.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = call(t, router, http.MethodPost, "/api/v1/friends/requests/"+fr.ID+"/accept", burak.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = call(t, router, http.MethodGet, "/api/v1/places?owner=friends", burak.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Equal(t, 1, listed.Count)

	w, env = call(t, router, http.MethodGet, "/api/v1/users/ayse/relationship", burak.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rel struct {
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rel))
	assert.Equal(t, "friends", rel.State)

	w, _ = call(t, router, http.MethodGet, "/api/v1/places?owner=everyone", burak.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// no bucket configured
	w, _ = call(t, router, http.MethodPost, "/api/v1/places/"+added.Place.ID+"/photos", burak.Token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLogoutEndsSession(t *testing.T) {
	router := newTestRouter(t)
	phone := register(t, router, "ayse")
	laptop := login(t, router, "ayse")

	w, _ := call(t, router, http.MethodGet, "/api/v1/me", phone.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, router, http.MethodPost, "/api/v1/auth/logout", phone.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, router, http.MethodGet, "/api/v1/me", phone.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = call(t, router, http.MethodPost, "/api/v1/auth/refresh-token", "", gin.H{"refresh_token": phone.Refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the other session is untouched
	w, _ = call(t, router, http.MethodGet, "/api/v1/me", laptop.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshKeepsSessionAlive(t *testing.T) {
	router := newTestRouter(t)
	ayse := register(t, router, "ayse")

	w, env := call(t, router, http.MethodPost, "/api/v1/auth/refresh-token", "", gin.H{"refresh_token": ayse.Refresh})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	refreshed := signedInFrom(t, env)

	// the rotated pair belongs to the same session as the first access token
	w, _ = call(t, router, http.MethodGet, "/api/v1/me", ayse.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, router, http.MethodPost, "/api/v1/auth/logout", refreshed.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = call(t, router, http.MethodGet, "/api/v1/me", ayse.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAllSessions(t *testing.T) {
	router := newTestRouter(t)
	phone := register(t, router, "ayse")
	laptop := login(t, router, "ayse")

	w, _ := call(t, router, http.MethodPost, "/api/v1/auth/logout", phone.Token, gin.H{"all_sessions": true})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, router, http.MethodGet, "/api/v1/me", laptop.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutIgnoresOtherUsersToken(t *testing.T) {
	router := newTestRouter(t)
	ayse := register(t, router, "ayse")
	burak := register(t, router, "burak")

	w, _ := call(t, router, http.MethodPost, "/api/v1/auth/logout", burak.Token, gin.H{"refresh_token": ayse.Refresh})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, router, http.MethodPost, "/api/v1/auth/refresh-token", "", gin.H{"refresh_token": ayse.Refresh})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMissingPlace(t *testing.T) {
	router := newTestRouter(t)
	ayse := register(t, router, "ayse")

	w, env := call(t, router, http.MethodGet, "/api/v1/places/does-not-exist", ayse.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "place not found", env.Message)
}

func TestAddPlaceWithoutLocation(t *testing.T) {
	router := newTestRouter(t)
	ayse := register(t, router, "ayse")

	w, env := call(t, router, http.MethodPost, "/api/v1/places", ayse.Token, gin.H{
		"name":       "Cafe X",
		"city":       "Istanbul",
		"categories": []string{"Coffee"},
		"rating":     4,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "location is required", env.Message)

	w, env = call(t, router, http.MethodGet, "/api/v1/places", ayse.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Zero(t, list.Count)
}
