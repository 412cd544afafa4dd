package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Categories a place can be tagged with.
const (
	CategoryFood       = "Food"
	CategoryDessert    = "Dessert"
	CategoryShisha     = "Shisha"
	CategoryHistorical = "Historical"
	CategoryCoffee     = "Coffee"
	CategoryView       = "View"
	CategoryMall       = "Mall"
)

var Categories = []string{
	CategoryFood,
	CategoryDessert,
	CategoryShisha,
	CategoryHistorical,
	CategoryCoffee,
	CategoryView,
	CategoryMall,
}

type Location struct {
	Lat float64 `json:"lat" gorm:"not null"`
	Lng float64 `json:"lng" gorm:"not null"`
}

type Place struct {
	ID            string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID       string         `json:"owner_id" gorm:"not null;index;type:varchar(36)"`
	Name          string         `json:"name" gorm:"not null;index:idx_place_identity"`
	City          string         `json:"city" gorm:"index:idx_place_identity"`
	District      string         `json:"district" gorm:"index:idx_place_identity"`
	Categories    pq.StringArray `json:"categories" gorm:"type:text[]"`
	GooglePlaceID string         `json:"google_place_id,omitempty"`
	Location      Location       `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	AvgRating     float64        `json:"avg_rating" gorm:"default:0"`
	RatingCount   int            `json:"rating_count" gorm:"default:0"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	Photos []PlacePhoto `json:"photos,omitempty" gorm:"foreignKey:PlaceID;constraint:OnDelete:CASCADE"`
}

func (p *Place) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Place) HasCategory(category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}

type PlacePhoto struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PlaceID     string    `json:"place_id" gorm:"not null;index;type:varchar(36)"`
	UploadedBy  string    `json:"uploaded_by" gorm:"not null;type:varchar(36)"`
	FileName    string    `json:"file_name" gorm:"not null"`
	S3Key       string    `json:"s3_key" gorm:"not null;unique"`
	S3URL       string    `json:"s3_url" gorm:"not null"`
	ContentType string    `json:"content_type" gorm:"not null"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *PlacePhoto) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// UserPlace is a place as it appears on a user's profile.
type UserPlace struct {
	Place
	UserRating *int      `json:"user_rating,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

type AddPlaceRequest struct {
	Name          string    `json:"name" binding:"required"`
	City          string    `json:"city"`
	District      string    `json:"district"`
	Categories    []string  `json:"categories"`
	GooglePlaceID string    `json:"google_place_id"`
	Location      *Location `json:"location"`
	Rating        int       `json:"rating" binding:"required"`
	Comment       string    `json:"comment"`
}
