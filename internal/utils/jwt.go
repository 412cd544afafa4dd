package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Type     string `json:"type"`

	// SessionID is shared by both tokens of a pair and survives refresh.
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	AccessTokenExpiresAt  int64  `json:"access_token_expires_at"`
	RefreshTokenExpiresAt int64  `json:"refresh_token_expires_at"`
}

func generateToken(tokenType TokenType, ttl time.Duration, userID, username, email, sessionID, jwtSecret string) (string, time.Time, error) {
	now := time.Now()
	expirationTime := now.Add(ttl)

	// random ID keeps two tokens issued in the same second distinct
	jti, err := GenerateRandomString(8)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := &Claims{
		UserID:    userID,
		Username:  username,
		Email:     email,
		Type:      string(tokenType),
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expirationTime, nil
}

// Generate access token (short-lived: 15 minutes)
func GenerateAccessToken(userID, username, email, sessionID, jwtSecret string) (string, time.Time, error) {
	return generateToken(AccessToken, AccessTokenTTL, userID, username, email, sessionID, jwtSecret)
}

// Generate refresh token (long-lived: 7 days)
func GenerateRefreshToken(userID, username, email, sessionID, jwtSecret string) (string, time.Time, error) {
	return generateToken(RefreshToken, RefreshTokenTTL, userID, username, email, sessionID, jwtSecret)
}

func GenerateTokenPair(userID, username, email, sessionID, jwtSecret string) (*TokenPair, error) {
	accessToken, accessExp, err := GenerateAccessToken(userID, username, email, sessionID, jwtSecret)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshExp, err := GenerateRefreshToken(userID, username, email, sessionID, jwtSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  accessExp.Unix(),
		RefreshTokenExpiresAt: refreshExp.Unix(),
	}, nil
}

// Validate token and return claims
func ValidateToken(tokenString, jwtSecret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
