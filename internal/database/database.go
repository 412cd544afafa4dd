package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pinify/pinify-backend/internal/models"
)

func Init(databaseURL string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate schemas
	err = db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Place{},
		&models.PlacePhoto{},
		&models.Review{},
		&models.AddedPlace{},
		&models.FriendRequest{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// InitFirestore connects using application default credentials.
func InitFirestore(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore backend")
	}
	return firestore.NewClient(ctx, projectID)
}
