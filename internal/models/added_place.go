package models

import "time"

// AddedPlace links a user to a place on their profile. Rating is the user's
// own rating and is nil once their review is deleted.
type AddedPlace struct {
	UserID  string    `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	PlaceID string    `json:"place_id" gorm:"primaryKey;type:varchar(36)"`
	Rating  *int      `json:"rating,omitempty"`
	AddedAt time.Time `json:"added_at"`
}
