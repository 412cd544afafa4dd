package utils

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pinify/pinify-backend/internal/models"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPassword wants at least 8 characters with a letter and a digit.
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// NormalizeUsername lowercases and strips all whitespace.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.Join(strings.Fields(username), ""))
}

// IsValidUsername accepts usernames that are already normalized.
func IsValidUsername(username string) bool {
	return username != "" && NormalizeUsername(username) == username
}

func IsValidCategory(category string) bool {
	for _, c := range models.Categories {
		if c == category {
			return true
		}
	}
	return false
}

func IsValidLocation(loc models.Location) bool {
	return loc.Lat >= -90 && loc.Lat <= 90 && loc.Lng >= -180 && loc.Lng <= 180
}

func SanitizeString(input string) string {
	return strings.TrimSpace(input)
}
