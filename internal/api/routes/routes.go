package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pinify/pinify-backend/internal/api/handlers"
	"github.com/pinify/pinify-backend/internal/api/middleware"
	"github.com/pinify/pinify-backend/internal/config"
	"github.com/pinify/pinify-backend/internal/repository"
	"github.com/pinify/pinify-backend/internal/services"
	"github.com/pinify/pinify-backend/pkg/logger"
)

func SetupRoutes(router *gin.Engine, store repository.Store, cfg *config.Config) {
	// Middleware
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RateLimitMiddleware(cfg))

	// Optional integrations stay nil when unconfigured.
	var notifier services.Notifier
	if emailService := services.NewEmailService(cfg); emailService != nil {
		notifier = emailService
	} else {
		logger.Info("SMTP not configured, e-mail notifications disabled")
	}

	var photoStorage services.PhotoStorage
	if s3Service := services.NewS3Service(cfg.S3Region, cfg.S3BucketName, cfg.S3AccessKey, cfg.S3SecretKey); s3Service != nil {
		photoStorage = s3Service
	} else {
		logger.Info("S3 bucket not configured, photo uploads disabled")
	}

	validationService := services.NewValidationService(cfg.AbstractEmailAPIKey)

	// Initialize services
	aggregator := services.NewRatingAggregator(store)
	authService := services.NewAuthService(store, cfg.JWTSecret, validationService, notifier)
	placeService := services.NewPlaceService(store, aggregator, photoStorage)
	reviewService := services.NewReviewService(store, aggregator)
	friendService := services.NewFriendService(store, notifier)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	placeHandler := handlers.NewPlaceHandler(placeService)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	friendHandler := handlers.NewFriendHandler(friendService)

	requireAuth := middleware.AuthMiddleware(cfg, store)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "message": "Server is running"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")

	// Auth routes (public)
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh-token", authHandler.RefreshToken)
		auth.POST("/logout", requireAuth, authHandler.Logout)
		auth.POST("/change-password", requireAuth, authHandler.ChangePassword)
	}

	me := api.Group("/me", requireAuth)
	{
		me.GET("", authHandler.Me)
		me.DELETE("/places/:place_id", placeHandler.RemoveMyPlace)
	}

	places := api.Group("/places", requireAuth)
	{
		places.GET("", placeHandler.ListPlaces)
		places.POST("", placeHandler.AddPlace)
		places.GET("/:place_id", placeHandler.GetPlace)
		places.POST("/:place_id/photos", placeHandler.UploadPhotos)

		places.GET("/:place_id/reviews", reviewHandler.ListReviews)
		places.POST("/:place_id/reviews", reviewHandler.CreateReview)
		places.PUT("/:place_id/reviews/:review_id", reviewHandler.UpdateReview)
		places.DELETE("/:place_id/reviews/:review_id", reviewHandler.DeleteReview)
	}

	friends := api.Group("/friends", requireAuth)
	{
		friends.POST("/requests", friendHandler.SendRequest)
		friends.GET("/requests/incoming", friendHandler.IncomingRequests)
		friends.POST("/requests/:request_id/accept", friendHandler.AcceptRequest)
		friends.POST("/requests/:request_id/reject", friendHandler.RejectRequest)
		friends.DELETE("/:friend_id", friendHandler.RemoveFriend)
	}

	users := api.Group("/users", requireAuth)
	{
		users.GET("/:username", friendHandler.GetProfile)
		users.GET("/:username/places", placeHandler.ListUserPlaces)
		users.GET("/:username/friends", friendHandler.ListFriends)
		users.GET("/:username/relationship", friendHandler.Relationship)
	}

	logger.Info("Routes initialized successfully")
}
