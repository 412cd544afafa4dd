package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PlaceID   string    `json:"place_id" gorm:"not null;index;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"not null;index;type:varchar(36)"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating" gorm:"check:rating >= 1 AND rating <= 5"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

type UpdateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}
