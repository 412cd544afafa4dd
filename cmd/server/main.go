package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/pinify/pinify-backend/internal/api/routes"
	"github.com/pinify/pinify-backend/internal/config"
	"github.com/pinify/pinify-backend/internal/database"
	"github.com/pinify/pinify-backend/internal/repository"
	"github.com/pinify/pinify-backend/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Init(cfg.Environment)

	store, err := openStore(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store: ", err)
	}
	defer store.Close()

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()

	// Setup routes
	routes.SetupRoutes(router, store, cfg)

	logger.WithFields(logger.Fields{"port": cfg.Port, "store": cfg.StoreBackend}).Info("Server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server: ", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		db, err := database.Init(cfg.DatabaseURL, cfg.Environment != "production")
		if err != nil {
			return nil, err
		}
		return repository.NewGormStore(db), nil
	case config.StoreBackendFirestore:
		client, err := database.InitFirestore(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, err
		}
		return repository.NewFirestoreStore(client), nil
	case config.StoreBackendMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		return repository.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
